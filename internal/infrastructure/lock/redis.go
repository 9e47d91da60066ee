// Package lock implements core/lock.Locker on Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"purchasing/internal/core/apperror"
	corelock "purchasing/internal/core/lock"
	"purchasing/pkg/logger"
)

// Config controls how long a lock lives and how hard Obtain tries.
type Config struct {
	TTL        time.Duration
	RetryEvery time.Duration
	MaxRetries int
}

// DefaultConfig returns the settings used by the server.
func DefaultConfig() Config {
	return Config{
		TTL:        30 * time.Second,
		RetryEvery: 100 * time.Millisecond,
		MaxRetries: 20,
	}
}

// obtainFunc is the redislock call, swapped in tests.
type obtainFunc func(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (corelock.Release, error)

// RedisLocker serialises calls on one key across server instances.
type RedisLocker struct {
	cfg    Config
	obtain obtainFunc
}

var _ corelock.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker on rdb.
func NewRedisLocker(rdb *redis.Client, cfg Config) *RedisLocker {
	client := redislock.New(rdb)
	return &RedisLocker{
		cfg: cfg,
		obtain: func(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (corelock.Release, error) {
			l, err := client.Obtain(ctx, key, ttl, opt)
			if err != nil {
				return nil, err
			}
			return l.Release, nil
		},
	}
}

// Obtain waits for key within the retry budget. A lock still held elsewhere
// after that is reported as a CONFLICT.
func (l *RedisLocker) Obtain(ctx context.Context, key string) (corelock.Release, error) {
	release, err := l.obtain(ctx, key, l.cfg.TTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.cfg.RetryEvery), l.cfg.MaxRetries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		logger.Warn(ctx, "lock busy", "key", key)
		return nil, apperror.NewConflict("Another operation on this purchase order is in progress. Please retry").
			WithDetail("lock", key)
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("obtain lock %s: %w", key, err))
	}

	return func(ctx context.Context) error {
		err := release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// TTL expired before the call finished
			logger.Warn(ctx, "lock expired before release", "key", key)
			return nil
		}
		return err
	}, nil
}
