// Package main is the entry point for the purchasing background worker.
// It periodically reconciles the inventory projection with the stock ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"purchasing/internal/domain/reconcile"
	"purchasing/internal/infrastructure/config"
	"purchasing/internal/infrastructure/storage/postgres"
	"purchasing/internal/infrastructure/storage/postgres/catalog_repo"
	"purchasing/internal/infrastructure/storage/postgres/register_repo"
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

	if !cfg.UsesPostgres() {
		log.Fatal("DATABASE_URL is required for the worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting purchasing worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	svc := reconcile.NewService(txm,
		catalog_repo.NewProductRepo(txm),
		register_repo.NewStockRepo(txm),
		register_repo.NewBatchRepo(txm),
	)

	worker := NewReconcileWorker(svc, pool, cfg.ReconcileInterval, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// ReconcileWorker runs reconciliation passes on a fixed interval.
type ReconcileWorker struct {
	svc      *reconcile.Service
	pool     *postgres.Pool
	interval time.Duration
	log      *logger.Logger
}

func NewReconcileWorker(svc *reconcile.Service, pool *postgres.Pool, interval time.Duration, log *logger.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		svc:      svc,
		pool:     pool,
		interval: interval,
		log:      log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *ReconcileWorker) Run(ctx context.Context) {
	ctx = logger.WithLogger(ctx, w.log)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(15 * time.Minute)
	defer statsTicker.Stop()

	w.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcile(ctx)
		case <-statsTicker.C:
			w.pool.LogStats(ctx)
		}
	}
}

func (w *ReconcileWorker) reconcile(ctx context.Context) {
	started := time.Now()

	report, err := w.svc.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log.Errorw("reconciliation failed", "error", err)
		return
	}

	if report.Clean() {
		w.log.Debugw("reconciliation clean",
			"products", report.Products,
			"duration", time.Since(started),
		)
		return
	}

	w.log.Warnw("reconciliation found drift",
		"products", report.Products,
		"stock_drift", len(report.Stock),
		"lot_drift", len(report.Lots),
		"duration", time.Since(started),
	)
}
