package dto

import (
	"time"

	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/catalogs/product"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
)

// --- Request DTOs ---

// CreateProductRequest registers a product. Stock always starts at zero.
type CreateProductRequest struct {
	SKU       string      `json:"sku" binding:"required,max=64"`
	Name      string      `json:"name" binding:"required,max=255"`
	CostPrice types.Money `json:"costPrice"`
}

// ToEntity converts request to domain entity.
func (r *CreateProductRequest) ToEntity() *product.Product {
	return product.New(r.SKU, r.Name, r.CostPrice)
}

// AdjustStockRequest writes a manual non-purchase movement.
type AdjustStockRequest struct {
	Type           string         `json:"type" binding:"required,oneof=adjustment damage sale"`
	QuantityChange types.Quantity `json:"quantityChange" binding:"required"`
	Remarks        string         `json:"remarks,omitempty" binding:"max=500"`
}

// MovementQuery filters the movement history of a product.
type MovementQuery struct {
	Type   string     `form:"type" binding:"omitempty,oneof=purchase return sale adjustment damage"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit  int        `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int        `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts query parameters into a ledger filter.
func (q MovementQuery) ToFilter() stock.MovementFilter {
	filter := stock.MovementFilter{
		FromDate: q.From,
		ToDate:   q.To,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if q.Type != "" {
		t := entity.MovementType(q.Type)
		filter.Type = &t
	}
	return filter
}

// --- Response DTOs ---

// ProductResponse represents a product in API responses.
type ProductResponse struct {
	ID            string         `json:"id"`
	Version       int            `json:"version"`
	SKU           string         `json:"sku"`
	Name          string         `json:"name"`
	StockQuantity types.Quantity `json:"stockQuantity"`
	CostPrice     types.Money    `json:"costPrice"`
	IsActive      bool           `json:"isActive"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// FromProduct converts entity to response DTO.
func FromProduct(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID.String(),
		Version:       p.Version,
		SKU:           p.SKU,
		Name:          p.Name,
		StockQuantity: p.StockQuantity,
		CostPrice:     p.CostPrice,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// MovementResponse represents a stock ledger entry.
type MovementResponse struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"productId"`
	Type           string         `json:"type"`
	QuantityChange types.Quantity `json:"quantityChange"`
	ReferenceID    string         `json:"referenceId,omitempty"`
	Remarks        string         `json:"remarks,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
	CreatedBy      string         `json:"createdBy,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// FromMovement converts entity to response DTO.
// Adjustments carry no order, so their reference is omitted.
func FromMovement(m *entity.StockMovement) MovementResponse {
	resp := MovementResponse{
		ID:             m.ID.String(),
		ProductID:      m.ProductID.String(),
		Type:           string(m.Type),
		QuantityChange: m.QuantityChange,
		Remarks:        m.Remarks,
		IdempotencyKey: m.IdempotencyKey,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
	if !id.IsNil(m.ReferenceID) {
		resp.ReferenceID = m.ReferenceID.String()
	}
	return resp
}

// FromMovements converts a slice of ledger entries.
func FromMovements(ms []entity.StockMovement) []MovementResponse {
	out := make([]MovementResponse, 0, len(ms))
	for i := range ms {
		out = append(out, FromMovement(&ms[i]))
	}
	return out
}

// LotResponse represents a lot record.
type LotResponse struct {
	ID                  string         `json:"id"`
	OrderID             string         `json:"orderId"`
	MovementID          string         `json:"movementId"`
	QuantityInitial     types.Quantity `json:"quantityInitial"`
	QuantityRemaining   types.Quantity `json:"quantityRemaining"`
	CostPriceAtPurchase types.Money    `json:"costPriceAtPurchase"`
	ExpiryDate          *time.Time     `json:"expiryDate,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
}

// FromLots converts lot records.
func FromLots(lots []batch.Batch) []LotResponse {
	out := make([]LotResponse, 0, len(lots))
	for _, b := range lots {
		out = append(out, LotResponse{
			ID:                  b.ID.String(),
			OrderID:             b.OrderID.String(),
			MovementID:          b.MovementID.String(),
			QuantityInitial:     b.QuantityInitial,
			QuantityRemaining:   b.QuantityRemaining,
			CostPriceAtPurchase: b.CostPriceAtPurchase,
			ExpiryDate:          b.ExpiryDate,
			CreatedAt:           b.CreatedAt,
		})
	}
	return out
}

// AdjustStockResponse is the movement written plus the product after it.
type AdjustStockResponse struct {
	Movement MovementResponse `json:"movement"`
	Product  ProductResponse  `json:"product"`
}
