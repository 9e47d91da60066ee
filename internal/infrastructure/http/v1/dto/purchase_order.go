package dto

import (
	"encoding/json"
	"time"

	"purchasing/internal/core/types"
	"purchasing/internal/domain/audit"
	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/domain/receiving"
	"purchasing/internal/domain/returns"
)

// --- Request DTOs ---

// PurchaseItemRequest is one ordered line.
type PurchaseItemRequest struct {
	ProductID  string         `json:"productId" binding:"required,uuid"`
	Quantity   types.Quantity `json:"quantity" binding:"required"`
	UnitCost   types.Money    `json:"unitCost"`
	ExpiryDate *time.Time     `json:"expiryDate,omitempty"`
}

func toItemInputs(lines []PurchaseItemRequest) ([]po.ItemInput, error) {
	inputs := make([]po.ItemInput, 0, len(lines))
	for _, line := range lines {
		productID, err := ParseID("productId", line.ProductID)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, po.ItemInput{
			ProductID:  productID,
			Quantity:   line.Quantity,
			UnitCost:   line.UnitCost,
			ExpiryDate: line.ExpiryDate,
		})
	}
	return inputs, nil
}

// CreatePurchaseOrderRequest places a new order.
type CreatePurchaseOrderRequest struct {
	SupplierID string                `json:"supplierId" binding:"required,uuid"`
	Date       *time.Time            `json:"date,omitempty"`
	Notes      string                `json:"notes,omitempty"`
	Items      []PurchaseItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToInput converts request to service input.
func (r *CreatePurchaseOrderRequest) ToInput() (po.CreateInput, error) {
	supplierID, err := ParseID("supplierId", r.SupplierID)
	if err != nil {
		return po.CreateInput{}, err
	}
	items, err := toItemInputs(r.Items)
	if err != nil {
		return po.CreateInput{}, err
	}
	return po.CreateInput{
		SupplierID: supplierID,
		Date:       r.Date,
		Notes:      r.Notes,
		Items:      items,
	}, nil
}

// UpdatePurchaseOrderRequest replaces the items of a pending order.
type UpdatePurchaseOrderRequest struct {
	SupplierID *string               `json:"supplierId,omitempty" binding:"omitempty,uuid"`
	Notes      *string               `json:"notes,omitempty"`
	Items      []PurchaseItemRequest `json:"items" binding:"required,min=1,dive"`
	Version    int                   `json:"version,omitempty" binding:"omitempty,min=1"`
}

// ToInput converts request to service input.
func (r *UpdatePurchaseOrderRequest) ToInput() (po.UpdateInput, error) {
	in := po.UpdateInput{Notes: r.Notes, Version: r.Version}
	if r.SupplierID != nil {
		supplierID, err := ParseID("supplierId", *r.SupplierID)
		if err != nil {
			return in, err
		}
		in.SupplierID = &supplierID
	}
	items, err := toItemInputs(r.Items)
	if err != nil {
		return in, err
	}
	in.Items = items
	return in, nil
}

// CancelPurchaseOrderRequest cancels a pending order.
type CancelPurchaseOrderRequest struct {
	Reason string `json:"reason,omitempty" binding:"max=500"`
}

// ReceiveItemRequest is one explicitly received line.
type ReceiveItemRequest struct {
	ProductID  string         `json:"productId" binding:"required,uuid"`
	Quantity   types.Quantity `json:"quantity" binding:"required"`
	UnitCost   *types.Money   `json:"unitCost,omitempty"`
	ExpiryDate *time.Time     `json:"expiryDate,omitempty"`
}

// ReceiveGoodsRequest receives goods. Omitting items, or sending an empty
// list, receives every line's remaining quantity.
type ReceiveGoodsRequest struct {
	Items          []ReceiveItemRequest `json:"items,omitempty" binding:"omitempty,dive"`
	IdempotencyKey string               `json:"idempotencyKey,omitempty" binding:"max=255"`
}

// ToItems converts the request lines; nil means a full receive.
func (r *ReceiveGoodsRequest) ToItems() ([]receiving.ReceiveItem, error) {
	if len(r.Items) == 0 {
		return nil, nil
	}
	items := make([]receiving.ReceiveItem, 0, len(r.Items))
	for _, line := range r.Items {
		productID, err := ParseID("productId", line.ProductID)
		if err != nil {
			return nil, err
		}
		items = append(items, receiving.ReceiveItem{
			ProductID:  productID,
			Quantity:   line.Quantity,
			UnitCost:   line.UnitCost,
			ExpiryDate: line.ExpiryDate,
		})
	}
	return items, nil
}

// ReturnItemRequest is one returned line.
type ReturnItemRequest struct {
	ProductID string         `json:"productId" binding:"required,uuid"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	Reason    string         `json:"reason,omitempty" binding:"max=500"`
}

// ReturnGoodsRequest sends received goods back to the supplier.
type ReturnGoodsRequest struct {
	Items          []ReturnItemRequest `json:"items" binding:"required,min=1,dive"`
	IdempotencyKey string              `json:"idempotencyKey,omitempty" binding:"max=255"`
}

// ToItems converts the request lines.
func (r *ReturnGoodsRequest) ToItems() ([]returns.ReturnItem, error) {
	items := make([]returns.ReturnItem, 0, len(r.Items))
	for _, line := range r.Items {
		productID, err := ParseID("productId", line.ProductID)
		if err != nil {
			return nil, err
		}
		items = append(items, returns.ReturnItem{
			ProductID: productID,
			Quantity:  line.Quantity,
			Reason:    line.Reason,
		})
	}
	return items, nil
}

// PaymentStatusRequest records supplier payment progress.
type PaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required,oneof=unpaid partial paid"`
}

// PurchaseOrderQuery filters order lists.
type PurchaseOrderQuery struct {
	ListQuery
	Status     string `form:"status" binding:"omitempty,oneof=pending received cancelled"`
	SupplierID string `form:"supplierId" binding:"omitempty,uuid"`
}

// ToFilter converts query parameters into a domain filter.
func (q PurchaseOrderQuery) ToFilter() (po.ListFilter, error) {
	base, err := q.ListQuery.ToFilter()
	if err != nil {
		return po.ListFilter{}, err
	}
	filter := po.ListFilter{ListFilter: base}
	if q.Status != "" {
		status := po.Status(q.Status)
		filter.Status = &status
	}
	if q.SupplierID != "" {
		supplierID, err := ParseID("supplierId", q.SupplierID)
		if err != nil {
			return filter, err
		}
		filter.SupplierID = &supplierID
	}
	return filter, nil
}

// --- Response DTOs ---

// PurchaseItemResponse represents an order line.
type PurchaseItemResponse struct {
	ID         string         `json:"id"`
	LineNo     int            `json:"lineNo"`
	ProductID  string         `json:"productId"`
	Quantity   types.Quantity `json:"quantity"`
	UnitCost   types.Money    `json:"unitCost"`
	TotalCost  types.Money    `json:"totalCost"`
	ExpiryDate *time.Time     `json:"expiryDate,omitempty"`
}

// PurchaseOrderResponse represents an order in API responses.
// Items is omitted on list pages, where lines are not loaded.
type PurchaseOrderResponse struct {
	ID            string                 `json:"id"`
	Version       int                    `json:"version"`
	Number        string                 `json:"number"`
	Date          time.Time              `json:"date"`
	SupplierID    string                 `json:"supplierId"`
	Status        string                 `json:"status"`
	PaymentStatus string                 `json:"paymentStatus"`
	TotalAmount   types.Money            `json:"totalAmount"`
	ReturnTotal   types.Money            `json:"returnTotal"`
	Notes         string                 `json:"notes"`
	Items         []PurchaseItemResponse `json:"items,omitempty"`
	CreatedBy     string                 `json:"createdBy,omitempty"`
	UpdatedBy     string                 `json:"updatedBy,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// FromPurchaseOrder converts entity to response DTO.
func FromPurchaseOrder(o *po.PurchaseOrder) PurchaseOrderResponse {
	resp := PurchaseOrderResponse{
		ID:            o.ID.String(),
		Version:       o.Version,
		Number:        o.Number,
		Date:          o.Date,
		SupplierID:    o.SupplierID.String(),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		TotalAmount:   o.TotalAmount,
		ReturnTotal:   o.ReturnTotal,
		Notes:         o.Notes,
		CreatedBy:     o.CreatedBy,
		UpdatedBy:     o.UpdatedBy,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if len(o.Items) > 0 {
		resp.Items = make([]PurchaseItemResponse, 0, len(o.Items))
		for _, item := range o.Items {
			resp.Items = append(resp.Items, PurchaseItemResponse{
				ID:         item.ID.String(),
				LineNo:     item.LineNo,
				ProductID:  item.ProductID.String(),
				Quantity:   item.Quantity,
				UnitCost:   item.UnitCost,
				TotalCost:  item.TotalCost,
				ExpiryDate: item.ExpiryDate,
			})
		}
	}
	return resp
}

// ReceiveGoodsResponse reports what a receive call changed.
type ReceiveGoodsResponse struct {
	Order         PurchaseOrderResponse `json:"order"`
	Products      []ProductResponse     `json:"products"`
	Movements     []MovementResponse    `json:"movements"`
	LotsRecorded  int                   `json:"lotsRecorded"`
	FullyReceived bool                  `json:"fullyReceived"`
}

// FromReceiveResult converts an engine result.
func FromReceiveResult(res *receiving.Result) ReceiveGoodsResponse {
	resp := ReceiveGoodsResponse{
		Order:         FromPurchaseOrder(res.Order),
		Products:      make([]ProductResponse, 0, len(res.Products)),
		Movements:     make([]MovementResponse, 0, len(res.Movements)),
		LotsRecorded:  len(res.Batches),
		FullyReceived: res.FullyReceived,
	}
	for _, p := range res.Products {
		resp.Products = append(resp.Products, FromProduct(p))
	}
	for _, m := range res.Movements {
		resp.Movements = append(resp.Movements, FromMovement(m))
	}
	return resp
}

// ReturnEventResponse represents one returned line.
type ReturnEventResponse struct {
	ID         string         `json:"id"`
	ProductID  string         `json:"productId"`
	MovementID string         `json:"movementId"`
	Quantity   types.Quantity `json:"quantity"`
	UnitCost   types.Money    `json:"unitCost"`
	Amount     types.Money    `json:"amount"`
	Reason     string         `json:"reason,omitempty"`
	CreatedBy  string         `json:"createdBy,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// FromReturnEvent converts entity to response DTO.
func FromReturnEvent(ev *returns.Event) ReturnEventResponse {
	return ReturnEventResponse{
		ID:         ev.ID.String(),
		ProductID:  ev.ProductID.String(),
		MovementID: ev.MovementID.String(),
		Quantity:   ev.Quantity,
		UnitCost:   ev.UnitCost,
		Amount:     ev.Amount,
		Reason:     ev.Reason,
		CreatedBy:  ev.CreatedBy,
		CreatedAt:  ev.CreatedAt,
	}
}

// FromReturnEvents converts a slice of events.
func FromReturnEvents(events []returns.Event) []ReturnEventResponse {
	out := make([]ReturnEventResponse, 0, len(events))
	for i := range events {
		out = append(out, FromReturnEvent(&events[i]))
	}
	return out
}

// ReturnGoodsResponse reports what a return call changed.
type ReturnGoodsResponse struct {
	Order       PurchaseOrderResponse `json:"order"`
	Products    []ProductResponse     `json:"products"`
	Movements   []MovementResponse    `json:"movements"`
	Events      []ReturnEventResponse `json:"events"`
	ReturnTotal types.Money           `json:"returnTotal"`
}

// FromReturnResult converts an engine result.
func FromReturnResult(res *returns.Result) ReturnGoodsResponse {
	resp := ReturnGoodsResponse{
		Order:       FromPurchaseOrder(res.Order),
		Products:    make([]ProductResponse, 0, len(res.Products)),
		Movements:   make([]MovementResponse, 0, len(res.Movements)),
		Events:      make([]ReturnEventResponse, 0, len(res.Events)),
		ReturnTotal: res.ReturnTotal,
	}
	for _, p := range res.Products {
		resp.Products = append(resp.Products, FromProduct(p))
	}
	for _, m := range res.Movements {
		resp.Movements = append(resp.Movements, FromMovement(m))
	}
	for _, ev := range res.Events {
		resp.Events = append(resp.Events, FromReturnEvent(ev))
	}
	return resp
}

// AuditEntryResponse represents one audit record.
type AuditEntryResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	UserID    string          `json:"userId,omitempty"`
	Changes   json.RawMessage `json:"changes"`
	CreatedAt time.Time       `json:"createdAt"`
}

// FromAuditEntries converts audit records.
func FromAuditEntries(entries []audit.Entry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			UserID:    e.UserID,
			Changes:   e.Changes,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
