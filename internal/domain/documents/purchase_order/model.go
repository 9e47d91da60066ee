// Package purchase_order provides the PurchaseOrder document and its lifecycle.
package purchase_order

import (
	"fmt"
	"strings"
	"time"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
)

// Status is the order lifecycle state.
// Only pending -> received and pending -> cancelled are allowed; both targets are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks supplier payment independently of receiving.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// IsValid reports whether s is a known payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentUnpaid, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	entity.Document

	SupplierID    id.ID         `db:"supplier_id" json:"supplierId"`
	Status        Status        `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`

	// TotalAmount is the sum of line totals
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	// ReturnTotal accumulates the order-time value of goods returned to the supplier
	ReturnTotal types.Money `db:"return_total" json:"returnTotal"`

	// Notes holds free text; return audit lines are appended here as well
	Notes string `db:"notes" json:"notes"`

	Items []PurchaseItem `db:"-" json:"items"`
}

// PurchaseItem is one ordered line.
type PurchaseItem struct {
	ID         id.ID          `db:"id" json:"id"`
	OrderID    id.ID          `db:"order_id" json:"orderId"`
	LineNo     int            `db:"line_no" json:"lineNo"`
	ProductID  id.ID          `db:"product_id" json:"productId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	UnitCost   types.Money    `db:"unit_cost" json:"unitCost"`
	TotalCost  types.Money    `db:"total_cost" json:"totalCost"`
	ExpiryDate *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
}

// ItemInput describes a line when creating or replacing items.
type ItemInput struct {
	ProductID  id.ID
	Quantity   types.Quantity
	UnitCost   types.Money
	ExpiryDate *time.Time
}

// New creates a pending, unpaid order.
func New(supplierID id.ID, userID string) *PurchaseOrder {
	return &PurchaseOrder{
		Document:      entity.NewDocument(userID),
		SupplierID:    supplierID,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		TotalAmount:   types.Zero(),
		ReturnTotal:   types.Zero(),
		Items:         make([]PurchaseItem, 0),
	}
}

// SetItems replaces the lines and recalculates totals.
func (o *PurchaseOrder) SetItems(inputs []ItemInput) {
	o.Items = make([]PurchaseItem, 0, len(inputs))
	for i, in := range inputs {
		o.Items = append(o.Items, PurchaseItem{
			ID:         id.New(),
			OrderID:    o.ID,
			LineNo:     i + 1,
			ProductID:  in.ProductID,
			Quantity:   in.Quantity,
			UnitCost:   in.UnitCost,
			TotalCost:  in.Quantity.Mul(in.UnitCost).Round(4),
			ExpiryDate: in.ExpiryDate,
		})
	}
	o.recalculateTotals()
}

func (o *PurchaseOrder) recalculateTotals() {
	total := types.Zero()
	for _, item := range o.Items {
		total = total.Add(item.TotalCost)
	}
	o.TotalAmount = total
}

// Validate checks header and line invariants.
func (o *PurchaseOrder) Validate() error {
	if id.IsNil(o.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if len(o.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	seen := make(map[id.ID]int, len(o.Items))
	for _, item := range o.Items {
		if id.IsNil(item.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "items").
				WithDetail("lineNo", item.LineNo)
		}
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", item.LineNo)
		}
		if item.UnitCost.IsNegative() {
			return apperror.NewValidation("unit cost must not be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", item.LineNo)
		}
		if prev, dup := seen[item.ProductID]; dup {
			return apperror.NewValidation("product appears on more than one line").
				WithDetail("field", "items").
				WithDetail("lineNo", item.LineNo).
				WithDetail("firstLineNo", prev)
		}
		seen[item.ProductID] = item.LineNo
	}
	return nil
}

// IsPending reports whether the order can still change.
func (o *PurchaseOrder) IsPending() bool {
	return o.Status == StatusPending
}

// Item returns the line for productID.
func (o *PurchaseOrder) Item(productID id.ID) (PurchaseItem, bool) {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return PurchaseItem{}, false
}

// EnsureReceivable rejects receiving into a terminal order.
func (o *PurchaseOrder) EnsureReceivable() error {
	switch o.Status {
	case StatusReceived:
		return apperror.NewState(apperror.CodeAlreadyReceived, "Purchase order has already been fully received").
			WithDetail("order_id", o.ID.String())
	case StatusCancelled:
		return apperror.NewState(apperror.CodeCannotReceiveCancelled, "Cannot receive a cancelled purchase order").
			WithDetail("order_id", o.ID.String())
	}
	return nil
}

// EnsureModifiable rejects changes to a non-pending order.
func (o *PurchaseOrder) EnsureModifiable() error {
	if !o.IsPending() {
		return apperror.NewState("", fmt.Sprintf("Cannot modify a %s purchase order", o.Status)).
			WithDetail("order_id", o.ID.String()).
			WithDetail("status", string(o.Status))
	}
	return nil
}

// ReturnNote is the audit line appended to Notes after a return.
func ReturnNote(at time.Time, userID string, lines []string, total types.Money) string {
	by := userID
	if by == "" {
		by = "unknown"
	}
	return fmt.Sprintf("[%s] Returned to supplier by %s: %s (total %s)",
		at.UTC().Format(time.RFC3339), by, strings.Join(lines, "; "), total.StringFixed(2))
}

// AppendNote joins an extra line onto existing notes.
func AppendNote(notes, line string) string {
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}
