// Package stock provides the append-only stock ledger.
package stock

import (
	"context"
	"time"

	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
)

// Repository defines operations for the stock ledger.
type Repository interface {
	// Append inserts one movement.
	Append(ctx context.Context, m *entity.StockMovement) error

	// Delete removes one movement. Used only to compensate the call that appended it.
	Delete(ctx context.Context, movementID id.ID) error

	// ListByReference returns every movement referencing an order, oldest first.
	ListByReference(ctx context.Context, referenceID id.ID) ([]entity.StockMovement, error)

	// History returns movements of one product, newest first.
	History(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error)

	// HasIdempotencyKey reports whether key was already claimed for the reference.
	HasIdempotencyKey(ctx context.Context, referenceID id.ID, key string) (bool, error)

	// ClaimIdempotencyKey records key once per call against the reference.
	// A key claimed before returns IDEMPOTENCY_CONFLICT.
	ClaimIdempotencyKey(ctx context.Context, referenceID id.ID, key, userID string) error

	// ReleaseIdempotencyKey drops a claim. Used only to compensate the call that made it.
	ReleaseIdempotencyKey(ctx context.Context, referenceID id.ID, key string) error

	// SumByProduct returns the signed sum of movements per product,
	// restricted to the given types when any are passed.
	SumByProduct(ctx context.Context, kinds ...entity.MovementType) (map[id.ID]types.Quantity, error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	Type     *entity.MovementType
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
