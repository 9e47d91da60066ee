package handlers

import (
	"github.com/gin-gonic/gin"

	"purchasing/internal/core/entity"
	"purchasing/internal/domain/catalogs/product"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
	"purchasing/internal/infrastructure/http/v1/dto"
)

// ProductHandler serves the inventory projection and its ledger.
type ProductHandler struct {
	*BaseHandler
	products *product.Service
	ledger   *stock.Service
	lots     *batch.Recorder
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, products *product.Service, ledger *stock.Service, lots *batch.Recorder) *ProductHandler {
	return &ProductHandler{
		BaseHandler: base,
		products:    products,
		ledger:      ledger,
		lots:        lots,
	}
}

// Create handles POST /products.
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := h.products.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromProduct(p))
}

// Get handles GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	p, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProduct(p))
}

// List handles GET /products.
func (h *ProductHandler) List(c *gin.Context) {
	var query dto.ListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result, dto.FromProduct))
}

// Movements handles GET /products/:id/movements.
func (h *ProductHandler) Movements(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var query dto.MovementQuery
	if !h.BindQuery(c, &query) {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.products.GetByID(ctx, productID); err != nil {
		h.Error(c, err)
		return
	}
	movements, err := h.ledger.History(ctx, productID, query.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromMovements(movements)})
}

// Lots handles GET /products/:id/lots.
func (h *ProductHandler) Lots(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.products.GetByID(ctx, productID); err != nil {
		h.Error(c, err)
		return
	}
	lots, err := h.lots.ListByProduct(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromLots(lots)})
}

// Adjust handles POST /products/:id/adjustments.
func (h *ProductHandler) Adjust(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	movement, updated, err := h.ledger.Adjust(c.Request.Context(), stock.AdjustInput{
		ProductID: productID,
		Type:      entity.MovementType(req.Type),
		Change:    req.QuantityChange,
		Remarks:   req.Remarks,
		UserID:    h.GetUserID(c),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.AdjustStockResponse{
		Movement: dto.FromMovement(movement),
		Product:  dto.FromProduct(updated),
	})
}
