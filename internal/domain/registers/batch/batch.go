// Package batch keeps advisory lot records for received goods.
//
// Lot rows are a best-effort side channel: the ledger and the inventory
// projection are authoritative, and a failed lot write never fails a receipt.
// The reconciliation worker reports lots that disagree with the ledger.
package batch

import (
	"context"
	"time"

	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/pkg/logger"
)

// Batch is one receipt of one product on one purchase order.
type Batch struct {
	ID                  id.ID          `db:"id" json:"id"`
	ProductID           id.ID          `db:"product_id" json:"productId"`
	OrderID             id.ID          `db:"order_id" json:"orderId"`
	MovementID          id.ID          `db:"movement_id" json:"movementId"`
	QuantityInitial     types.Quantity `db:"quantity_initial" json:"quantityInitial"`
	QuantityRemaining   types.Quantity `db:"quantity_remaining" json:"quantityRemaining"`
	CostPriceAtPurchase types.Money    `db:"cost_price_at_purchase" json:"costPriceAtPurchase"`
	ExpiryDate          *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
}

// New creates a lot record for a purchase movement.
func New(productID, orderID, movementID id.ID, qty types.Quantity, cost types.Money, expiry *time.Time) *Batch {
	return &Batch{
		ID:                  id.New(),
		ProductID:           productID,
		OrderID:             orderID,
		MovementID:          movementID,
		QuantityInitial:     qty,
		QuantityRemaining:   qty,
		CostPriceAtPurchase: cost,
		ExpiryDate:          expiry,
		CreatedAt:           time.Now().UTC(),
	}
}

// Repository persists lot records.
type Repository interface {
	Create(ctx context.Context, b *Batch) error
	DeleteByMovement(ctx context.Context, movementID id.ID) error
	ListByProduct(ctx context.Context, productID id.ID) ([]Batch, error)
	// SumInitialByProduct totals QuantityInitial per product.
	SumInitialByProduct(ctx context.Context) (map[id.ID]types.Quantity, error)
}

// Recorder writes lot records without ever failing the caller.
type Recorder struct {
	repo Repository
}

// NewRecorder creates a lot recorder. A nil repo disables lot tracking.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Record stores b and returns whether it was written.
func (r *Recorder) Record(ctx context.Context, b *Batch) bool {
	if r == nil || r.repo == nil {
		return false
	}
	if err := r.repo.Create(ctx, b); err != nil {
		logger.Warn(ctx, "lot record not written",
			"product_id", b.ProductID,
			"order_id", b.OrderID,
			"movement_id", b.MovementID,
			"error", err,
		)
		return false
	}
	return true
}

// Discard removes the lot written for movementID, logging any failure.
func (r *Recorder) Discard(ctx context.Context, movementID id.ID) {
	if r == nil || r.repo == nil {
		return
	}
	if err := r.repo.DeleteByMovement(ctx, movementID); err != nil {
		logger.Warn(ctx, "lot record not removed", "movement_id", movementID, "error", err)
	}
}

// ListByProduct returns the lots of a product, oldest first.
func (r *Recorder) ListByProduct(ctx context.Context, productID id.ID) ([]Batch, error) {
	if r == nil || r.repo == nil {
		return nil, nil
	}
	return r.repo.ListByProduct(ctx, productID)
}
