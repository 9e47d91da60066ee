// Package main is the entry point for the purchasing API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"purchasing/internal/domain/auth"
	"purchasing/internal/domain/catalogs/product"
	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/domain/receiving"
	"purchasing/internal/domain/reconcile"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
	"purchasing/internal/domain/returns"
	"purchasing/internal/infrastructure/config"
	v1 "purchasing/internal/infrastructure/http/v1"
	"purchasing/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Info("starting purchasing server")

	// --- Storage ---
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer store.close()

	locker, closeLocker, err := openLocker(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer closeLocker()

	// --- Domain services ---
	guard := product.NewGuard(store.products)
	ledger := stock.NewService(store.movements, store.products, guard)
	lots := batch.NewRecorder(store.lots)

	services := v1.Services{
		Products:  product.NewService(store.products),
		Ledger:    ledger,
		Lots:      lots,
		Orders:    po.NewService(store.orders, ledger, store.numerator, locker, store.audit),
		Receiving: receiving.NewEngine(store.orders, store.products, guard, ledger, lots, locker, store.audit),
		Returns:   returns.NewEngine(store.orders, store.products, guard, ledger, store.events, locker, store.audit),
		Reconcile: reconcile.NewService(store.txm, store.products, store.movements, store.lots),
	}

	// --- Identity ---
	routerCfg := v1.RouterConfig{
		Logger:      log,
		Store:       store.pinger,
		Backend:     store.backend,
		WriterRoles: cfg.WriterRoles,
		Development: cfg.Development(),
		Services:    services,
	}
	if cfg.JWTSecret != "" {
		routerCfg.JWTValidator = auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
	} else {
		log.Warn("JWT_SECRET not set, trusting the X-User-ID header")
	}

	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.AppPort, "storage", store.backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
