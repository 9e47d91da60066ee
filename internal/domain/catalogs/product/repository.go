package product

import (
	"context"

	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain"
)

// Repository persists the inventory projection.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error)

	// CompareAndSwap writes fields only where the stored row still matches expected
	// and bumps the version. It reports false when no row matched.
	CompareAndSwap(ctx context.Context, productID id.ID, expected Snapshot, fields Fields) (bool, error)

	// Restore unconditionally writes stock and cost (compensation path).
	Restore(ctx context.Context, productID id.ID, stock types.Quantity, cost types.Money) error

	// StockLevels returns stock on hand for every product (reconciliation).
	StockLevels(ctx context.Context) (map[id.ID]types.Quantity, error)
}
