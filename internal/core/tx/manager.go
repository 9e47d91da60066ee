// Package tx provides transaction management abstractions.
// This package defines interfaces that decouple domain logic from specific
// database implementations, following the Dependency Inversion Principle.
package tx

import (
	"context"
)

// Manager runs read-only work against one consistent snapshot.
//
// Receiving and returns deliberately do not use transactions: their writes are
// single statements coordinated by internal/core/saga. The reconciliation report
// uses ReadOnly so ledger sums and the inventory projection are read together.
type Manager interface {
	// ReadOnly executes fn in a read-only transaction.
	// Attempts to modify data will fail.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
