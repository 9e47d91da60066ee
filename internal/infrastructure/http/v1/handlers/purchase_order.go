package handlers

import (
	"github.com/gin-gonic/gin"

	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/domain/receiving"
	"purchasing/internal/domain/returns"
	"purchasing/internal/infrastructure/http/v1/dto"
)

// PurchaseOrderHandler handles purchase order lifecycle, receiving and returns.
type PurchaseOrderHandler struct {
	*BaseHandler
	orders    *po.Service
	receiving *receiving.Engine
	returns   *returns.Engine
}

// NewPurchaseOrderHandler creates a new purchase order handler.
func NewPurchaseOrderHandler(
	base *BaseHandler,
	orders *po.Service,
	receivingEngine *receiving.Engine,
	returnEngine *returns.Engine,
) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		BaseHandler: base,
		orders:      orders,
		receiving:   receivingEngine,
		returns:     returnEngine,
	}
}

// Create handles POST /purchase-orders.
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	order, err := h.orders.Create(c.Request.Context(), in, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPurchaseOrder(order))
}

// List handles GET /purchase-orders.
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	var query dto.PurchaseOrderQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result, dto.FromPurchaseOrder))
}

// Get handles GET /purchase-orders/:id.
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPurchaseOrder(order))
}

// Update handles PUT /purchase-orders/:id.
func (h *PurchaseOrderHandler) Update(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	order, err := h.orders.Update(c.Request.Context(), orderID, in, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPurchaseOrder(order))
}

// Cancel handles POST /purchase-orders/:id/cancel. The body is optional.
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelPurchaseOrderRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	order, err := h.orders.Cancel(c.Request.Context(), orderID, req.Reason, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPurchaseOrder(order))
}

// Receive handles POST /purchase-orders/:id/receive.
// An empty body receives every line's remaining quantity.
func (h *PurchaseOrderHandler) Receive(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiveGoodsRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	items, err := req.ToItems()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.receiving.ReceiveGoods(c.Request.Context(), orderID, h.GetUserID(c), items, receiving.Options{
		IdempotencyKey: h.IdempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReceiveResult(res))
}

// Return handles POST /purchase-orders/:id/returns.
func (h *PurchaseOrderHandler) Return(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReturnGoodsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	items, err := req.ToItems()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.returns.ReturnGoodsToSupplier(c.Request.Context(), orderID, items, h.GetUserID(c), returns.Options{
		IdempotencyKey: h.IdempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReturnResult(res))
}

// ListReturns handles GET /purchase-orders/:id/returns.
func (h *PurchaseOrderHandler) ListReturns(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	events, err := h.returns.Events(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromReturnEvents(events)})
}

// UpdatePaymentStatus handles PUT /purchase-orders/:id/payment-status.
func (h *PurchaseOrderHandler) UpdatePaymentStatus(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.orders.UpdatePaymentStatus(c.Request.Context(), orderID, po.PaymentStatus(req.PaymentStatus), h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPurchaseOrder(order))
}

// History handles GET /purchase-orders/:id/history.
func (h *PurchaseOrderHandler) History(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	entries, err := h.orders.History(c.Request.Context(), orderID, h.ParseIntQuery(c, "limit", 100))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromAuditEntries(entries)})
}
