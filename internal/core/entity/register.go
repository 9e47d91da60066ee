package entity

import (
	"time"

	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
)

// MovementType classifies a stock ledger entry.
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementReturn     MovementType = "return"
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementDamage     MovementType = "damage"
)

// IsValid reports whether t is a known movement type.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementPurchase, MovementReturn, MovementSale, MovementAdjustment, MovementDamage:
		return true
	}
	return false
}

// StockMovement is one append-only entry of the stock ledger.
// Entries are never updated; a row is deleted only while compensating the call that created it.
type StockMovement struct {
	ID        id.ID        `db:"id" json:"id"`
	ProductID id.ID        `db:"product_id" json:"productId"`
	Type      MovementType `db:"movement_type" json:"type"`

	// QuantityChange is signed: positive for purchase, negative for return and sale
	QuantityChange types.Quantity `db:"quantity_change" json:"quantityChange"`

	// ReferenceID is the purchase order for purchase/return entries, Nil otherwise
	ReferenceID id.ID `db:"reference_id" json:"referenceId,omitempty"`

	Remarks        string    `db:"remarks" json:"remarks,omitempty"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	CreatedBy      string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a ledger entry with generated ID.
func NewStockMovement(
	productID id.ID,
	movementType MovementType,
	change types.Quantity,
	referenceID id.ID,
	createdBy string,
) *StockMovement {
	return &StockMovement{
		ID:             id.New(),
		ProductID:      productID,
		Type:           movementType,
		QuantityChange: change,
		ReferenceID:    referenceID,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now().UTC(),
	}
}
