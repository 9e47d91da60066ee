// Package returns sends received goods back to the supplier.
package returns

import (
	"context"
	"time"

	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
)

// Event is the append-only record of one returned line.
type Event struct {
	ID             id.ID          `db:"id" json:"id"`
	OrderID        id.ID          `db:"order_id" json:"orderId"`
	ProductID      id.ID          `db:"product_id" json:"productId"`
	MovementID     id.ID          `db:"movement_id" json:"movementId"`
	Quantity       types.Quantity `db:"quantity" json:"quantity"`
	UnitCost       types.Money    `db:"unit_cost" json:"unitCost"`
	Amount         types.Money    `db:"amount" json:"amount"`
	Reason         string         `db:"reason" json:"reason,omitempty"`
	IdempotencyKey string         `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	CreatedBy      string         `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// EventRepository persists return events.
type EventRepository interface {
	Append(ctx context.Context, ev *Event) error
	// Delete is used only to compensate the call that appended ev.
	Delete(ctx context.Context, eventID id.ID) error
	ListByOrder(ctx context.Context, orderID id.ID) ([]Event, error)
}
