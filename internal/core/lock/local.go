package lock

import (
	"context"
	"sync"
	"time"

	"purchasing/internal/core/apperror"
)

// Local serialises calls on one key inside a single process. Used when no
// Redis is configured, so order edits and receipts on one server still
// exclude each other.
type Local struct {
	wait time.Duration

	mu   sync.Mutex
	held map[string]chan struct{}
}

var _ Locker = (*Local)(nil)

// NewLocal creates an in-process locker. Obtain gives up after wait;
// zero waits until the context is done.
func NewLocal(wait time.Duration) *Local {
	return &Local{
		wait: wait,
		held: make(map[string]chan struct{}),
	}
}

// Obtain blocks until key is free. A key still held after the wait is a CONFLICT.
func (l *Local) Obtain(ctx context.Context, key string) (Release, error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	for {
		l.mu.Lock()
		done, busy := l.held[key]
		if !busy {
			done = make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			return l.releaseFunc(key, done), nil
		}
		l.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, apperror.NewConflict("Another operation on this purchase order is in progress. Please retry").
				WithDetail("lock", key)
		}
	}
}

func (l *Local) releaseFunc(key string, done chan struct{}) Release {
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			if l.held[key] == done {
				delete(l.held, key)
			}
			l.mu.Unlock()
			close(done)
		})
		return nil
	}
}
