package v1

import (
	"github.com/gin-gonic/gin"

	"purchasing/internal/domain/catalogs/product"
	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/domain/receiving"
	"purchasing/internal/domain/reconcile"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
	"purchasing/internal/domain/returns"
	"purchasing/internal/infrastructure/http/v1/handlers"
	"purchasing/internal/infrastructure/http/v1/middleware"
	"purchasing/pkg/logger"
)

// Version is reported by the readiness probe.
const Version = "1.0.0"

// Services bundles the domain services the API exposes.
type Services struct {
	Products  *product.Service
	Ledger    *stock.Service
	Lots      *batch.Recorder
	Orders    *po.Service
	Receiving *receiving.Engine
	Returns   *returns.Engine
	Reconcile *reconcile.Service
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Store is pinged by the readiness probe; Backend names it
	Store   handlers.Pinger
	Backend string

	// JWTValidator for token validation; nil trusts the X-User-ID header
	JWTValidator middleware.JWTValidator

	// WriterRoles are required on mutating routes when set
	WriterRoles []string

	// Development keeps gin in debug mode
	Development bool

	Services Services
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Store, cfg.Backend, Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		v1.Use(middleware.Auth(cfg.JWTValidator))
	} else {
		v1.Use(middleware.HeaderIdentity())
	}

	var write gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if len(cfg.WriterRoles) > 0 {
		write = middleware.RequireRole(cfg.WriterRoles...)
	}

	base := handlers.NewBaseHandler()
	svc := cfg.Services

	RegisterPurchaseOrderRoutes(v1.Group("/purchase-orders"),
		handlers.NewPurchaseOrderHandler(base, svc.Orders, svc.Receiving, svc.Returns), write)
	RegisterProductRoutes(v1.Group("/products"),
		handlers.NewProductHandler(base, svc.Products, svc.Ledger, svc.Lots), write)

	if svc.Reconcile != nil {
		v1.GET("/reconciliation", handlers.NewReconcileHandler(base, svc.Reconcile).Run)
	}

	return router
}
