// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// PurchaseOrderRouteHandler defines the purchase order endpoints.
type PurchaseOrderRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Cancel(c *gin.Context)
	Receive(c *gin.Context)
	Return(c *gin.Context)
	ListReturns(c *gin.Context)
	UpdatePaymentStatus(c *gin.Context)
	History(c *gin.Context)
}

// ProductRouteHandler defines the product and ledger endpoints.
type ProductRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Movements(c *gin.Context)
	Lots(c *gin.Context)
	Adjust(c *gin.Context)
}

// RegisterPurchaseOrderRoutes registers the order lifecycle, receiving and return routes.
// write runs before every mutating handler.
func RegisterPurchaseOrderRoutes(group *gin.RouterGroup, handler PurchaseOrderRouteHandler, write gin.HandlerFunc) {
	group.GET("", handler.List)
	group.POST("", write, handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", write, handler.Update)
	group.POST("/:id/cancel", write, handler.Cancel)
	group.POST("/:id/receive", write, handler.Receive)
	group.POST("/:id/returns", write, handler.Return)
	group.GET("/:id/returns", handler.ListReturns)
	group.PUT("/:id/payment-status", write, handler.UpdatePaymentStatus)
	group.GET("/:id/history", handler.History)
}

// RegisterProductRoutes registers product catalog and stock ledger routes.
func RegisterProductRoutes(group *gin.RouterGroup, handler ProductRouteHandler, write gin.HandlerFunc) {
	group.GET("", handler.List)
	group.POST("", write, handler.Create)
	group.GET("/:id", handler.Get)
	group.GET("/:id/movements", handler.Movements)
	group.GET("/:id/lots", handler.Lots)
	group.POST("/:id/adjustments", write, handler.Adjust)
}
