package product

import (
	"context"
	"time"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
)

// Guard is the single write path to the projection. Every update is a
// compare-and-set against what the caller read; a mismatch is a CONFLICT with
// no side effects. The guard never retries.
type Guard struct {
	repo Repository
}

// NewGuard creates a guard over repo.
func NewGuard(repo Repository) *Guard {
	return &Guard{repo: repo}
}

// CASUpdate applies fields to the product observed as current and returns the
// updated copy.
func (g *Guard) CASUpdate(ctx context.Context, current *Product, fields Fields) (*Product, error) {
	if fields.StockQuantity.IsNegative() {
		return nil, apperror.NewInsufficientStock(current.ID.String(),
			fields.StockQuantity.Neg().String(), current.StockQuantity.String())
	}

	ok, err := g.repo.CompareAndSwap(ctx, current.ID, current.Snapshot(), fields)
	if err != nil {
		return nil, apperror.Wrap("update product", err)
	}
	if !ok {
		return nil, apperror.NewInventoryConflict(current.Label())
	}

	updated := *current
	updated.StockQuantity = fields.StockQuantity
	if fields.CostPrice != nil {
		updated.CostPrice = *fields.CostPrice
	}
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()
	return &updated, nil
}

// Restore writes back a previously observed stock and cost.
func (g *Guard) Restore(ctx context.Context, productID id.ID, stock types.Quantity, cost types.Money) error {
	if err := g.repo.Restore(ctx, productID, stock, cost); err != nil {
		return apperror.Wrap("restore product", err)
	}
	return nil
}
