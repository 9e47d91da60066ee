// Package lock defines the per-key call lock used to serialise receive and
// return calls against the same purchase order.
package lock

import "context"

// Release frees an obtained lock.
type Release func(ctx context.Context) error

// Locker obtains an exclusive lock on key.
// Implementations return an apperror CONFLICT when the key is held elsewhere.
type Locker interface {
	Obtain(ctx context.Context, key string) (Release, error)
}

// Noop grants every lock immediately. Used when no Redis is configured;
// correctness then rests on the inventory compare-and-set alone.
type Noop struct{}

// Obtain implements Locker.
func (Noop) Obtain(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// OrderKey is the lock key for calls that mutate one purchase order.
func OrderKey(orderID string) string {
	return "lock:purchase_order:" + orderID
}
