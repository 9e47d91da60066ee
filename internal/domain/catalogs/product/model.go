// Package product provides the inventory projection: per-product stock on hand
// and weighted-average cost, guarded by a compare-and-set on every write.
package product

import (
	"strings"
	"time"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/entity"
	"purchasing/internal/core/types"
)

// Product is the mutable inventory row derived from the stock ledger.
type Product struct {
	entity.BaseEntity

	SKU  string `db:"sku" json:"sku"`
	Name string `db:"name" json:"name"`

	// StockQuantity is never negative
	StockQuantity types.Quantity `db:"stock_quantity" json:"stockQuantity"`

	// CostPrice is the weighted average cost, changed only by purchases
	CostPrice types.Money `db:"cost_price" json:"costPrice"`

	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates an active product with zero stock.
func New(sku, name string, costPrice types.Money) *Product {
	now := time.Now().UTC()
	return &Product{
		BaseEntity: entity.NewBaseEntity(),
		SKU:        strings.TrimSpace(sku),
		Name:       strings.TrimSpace(name),
		CostPrice:  costPrice,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks field invariants.
func (p *Product) Validate() error {
	if p.SKU == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.CostPrice.IsNegative() {
		return apperror.NewValidation("cost price must not be negative").WithDetail("field", "costPrice")
	}
	if p.StockQuantity.IsNegative() {
		return apperror.NewValidation("stock quantity must not be negative").WithDetail("field", "stockQuantity")
	}
	return nil
}

// Label names the product in user-facing messages.
func (p *Product) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID.String()
}

// Snapshot is what a caller observed before writing: the row matches only if
// both the stock value and the version are unchanged.
type Snapshot struct {
	StockQuantity types.Quantity
	Version       int
}

// Snapshot returns the current compare-and-set expectation.
func (p *Product) Snapshot() Snapshot {
	return Snapshot{StockQuantity: p.StockQuantity, Version: p.Version}
}

// Fields is the new state written by a compare-and-set.
type Fields struct {
	StockQuantity types.Quantity

	// CostPrice nil leaves the stored cost unchanged
	CostPrice *types.Money
}

// WeightedAverageCost blends the current stock at its cost with an incoming
// quantity at unitCost. When the sum is exactly zero the unit cost is used.
func WeightedAverageCost(prevStock types.Quantity, prevCost types.Money, qty types.Quantity, unitCost types.Money) types.Money {
	newStock := prevStock + qty
	if newStock.IsZero() {
		return unitCost
	}
	total := prevStock.Mul(prevCost).Add(qty.Mul(unitCost))
	return total.Div(newStock.Decimal()).Round(4)
}
