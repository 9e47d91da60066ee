package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	corelock "purchasing/internal/core/lock"
	corenumerator "purchasing/internal/core/numerator"
	"purchasing/internal/core/tx"
	"purchasing/internal/domain/audit"
	"purchasing/internal/domain/catalogs/product"
	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
	"purchasing/internal/domain/returns"
	"purchasing/internal/infrastructure/config"
	"purchasing/internal/infrastructure/http/v1/handlers"
	"purchasing/internal/infrastructure/lock"
	"purchasing/internal/infrastructure/numerator"
	"purchasing/internal/infrastructure/storage/memory"
	"purchasing/internal/infrastructure/storage/postgres"
	"purchasing/internal/infrastructure/storage/postgres/catalog_repo"
	"purchasing/internal/infrastructure/storage/postgres/document_repo"
	"purchasing/internal/infrastructure/storage/postgres/register_repo"
	"purchasing/pkg/logger"
)

// storage is the record store the engines run on.
type storage struct {
	backend string

	products  product.Repository
	orders    po.Repository
	movements stock.Repository
	lots      batch.Repository
	events    returns.EventRepository
	audit     audit.Recorder
	numerator corenumerator.Generator
	txm       tx.Manager
	pinger    handlers.Pinger

	close func()
}

// openStorage connects to Postgres when DATABASE_URL is set and falls back to
// the in-memory store otherwise.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if !cfg.UsesPostgres() {
		log.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		store := memory.New()
		return &storage{
			backend:   "memory",
			products:  store.Products(),
			orders:    store.Orders(),
			movements: store.Movements(),
			lots:      store.Batches(),
			events:    store.ReturnEvents(),
			audit:     store.Audit(),
			numerator: numerator.NewMemory(),
			txm:       store,
			pinger:    store,
			close:     func() {},
		}, nil
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MinConns = int32(cfg.DBMinConns)

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	txm := postgres.NewTxManager(pool)

	auditRepo, err := postgres.NewAuditRepo(txm)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init audit repo: %w", err)
	}

	log.Infow("database connection established", "max_conns", poolCfg.MaxConns)
	return &storage{
		backend:   "database",
		products:  catalog_repo.NewProductRepo(txm),
		orders:    document_repo.NewPurchaseOrderRepo(txm),
		movements: register_repo.NewStockRepo(txm),
		lots:      register_repo.NewBatchRepo(txm),
		events:    register_repo.NewReturnEventRepo(txm),
		audit:     auditRepo,
		numerator: numerator.New(pool),
		txm:       txm,
		pinger:    txm,
		close:     pool.Close,
	}, nil
}

// openLocker returns the Redis order lock, or an in-process lock when REDIS_ADDR is empty.
func openLocker(ctx context.Context, cfg *config.Config, log *logger.Logger) (corelock.Locker, func(), error) {
	lockCfg := lock.DefaultConfig()
	lockCfg.TTL = cfg.OrderLockTTL

	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set, order calls are serialised within this instance only")
		return corelock.NewLocal(lockCfg.RetryEvery * time.Duration(lockCfg.MaxRetries)), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Infow("redis order lock enabled", "addr", cfg.RedisAddr, "ttl", lockCfg.TTL)

	return lock.NewRedisLocker(rdb, lockCfg), func() { _ = rdb.Close() }, nil
}
