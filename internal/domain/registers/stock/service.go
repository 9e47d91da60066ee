package stock

import (
	"context"
	"fmt"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/saga"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/catalogs/product"
	"purchasing/pkg/logger"
)

// OrderTotals is what the ledger says about one purchase order, per product.
type OrderTotals struct {
	Received map[id.ID]types.Quantity
	Returned map[id.ID]types.Quantity // magnitudes, always positive
}

// Returnable is received minus already returned.
func (t OrderTotals) Returnable(productID id.ID) types.Quantity {
	return t.Received[productID] - t.Returned[productID]
}

// HasPurchases reports whether any purchase movement references the order.
func (t OrderTotals) HasPurchases() bool {
	for _, q := range t.Received {
		if q != 0 {
			return true
		}
	}
	return false
}

// Service provides ledger reads and manual adjustments.
type Service struct {
	repo     Repository
	products product.Repository
	guard    *product.Guard
}

// NewService creates a new stock ledger service.
func NewService(repo Repository, products product.Repository, guard *product.Guard) *Service {
	return &Service{
		repo:     repo,
		products: products,
		guard:    guard,
	}
}

// OrderTotals sums purchase and return movements referencing orderID.
func (s *Service) OrderTotals(ctx context.Context, orderID id.ID) (OrderTotals, error) {
	totals := OrderTotals{
		Received: make(map[id.ID]types.Quantity),
		Returned: make(map[id.ID]types.Quantity),
	}

	movements, err := s.repo.ListByReference(ctx, orderID)
	if err != nil {
		return totals, apperror.Wrap("read ledger", err)
	}

	for _, m := range movements {
		switch m.Type {
		case entity.MovementPurchase:
			totals.Received[m.ProductID] += m.QuantityChange
		case entity.MovementReturn:
			totals.Returned[m.ProductID] += m.QuantityChange.Abs()
		}
	}
	return totals, nil
}

// HasPurchases reports whether any purchase movement references orderID.
func (s *Service) HasPurchases(ctx context.Context, orderID id.ID) (bool, error) {
	totals, err := s.OrderTotals(ctx, orderID)
	if err != nil {
		return false, err
	}
	return totals.HasPurchases(), nil
}

// CheckIdempotencyKey rejects a key already recorded for the order.
func (s *Service) CheckIdempotencyKey(ctx context.Context, orderID id.ID, key string) error {
	if key == "" {
		return nil
	}
	seen, err := s.repo.HasIdempotencyKey(ctx, orderID, key)
	if err != nil {
		return apperror.Wrap("check idempotency key", err)
	}
	if seen {
		return apperror.NewIdempotencyConflict(key).WithDetail("order_id", orderID.String())
	}
	return nil
}

// ClaimIdempotencyKey reserves key for one receive or return call on orderID.
// Movements of the call still carry the key, so the claim is per call, not per row.
func (s *Service) ClaimIdempotencyKey(ctx context.Context, orderID id.ID, key, userID string) error {
	if key == "" {
		return nil
	}
	if err := s.repo.ClaimIdempotencyKey(ctx, orderID, key, userID); err != nil {
		if apperror.HasCode(err, apperror.CodeIdempotency) {
			return err
		}
		return apperror.Wrap("claim idempotency key", err)
	}
	return nil
}

// ReleaseIdempotencyKey undoes ClaimIdempotencyKey.
func (s *Service) ReleaseIdempotencyKey(ctx context.Context, orderID id.ID, key string) error {
	if key == "" {
		return nil
	}
	if err := s.repo.ReleaseIdempotencyKey(ctx, orderID, key); err != nil {
		return apperror.Wrap("release idempotency key", err)
	}
	return nil
}

// Record appends a movement.
func (s *Service) Record(ctx context.Context, m *entity.StockMovement) error {
	if err := s.repo.Append(ctx, m); err != nil {
		return apperror.Wrap("insert movement", err)
	}
	return nil
}

// Discard deletes a movement appended earlier in the same call.
func (s *Service) Discard(ctx context.Context, movementID id.ID) error {
	if err := s.repo.Delete(ctx, movementID); err != nil {
		return apperror.Wrap("delete movement", err)
	}
	return nil
}

// History returns movements for a product.
func (s *Service) History(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	movements, err := s.repo.History(ctx, productID, filter)
	if err != nil {
		return nil, apperror.Wrap("read movement history", err)
	}
	return movements, nil
}

// AdjustInput describes a manual stock correction.
type AdjustInput struct {
	ProductID id.ID
	Type      entity.MovementType // adjustment, damage or sale
	Change    types.Quantity      // signed
	Remarks   string
	UserID    string
}

// Adjust writes a non-purchase movement and moves stock accordingly.
// Cost is left unchanged; stock never goes below zero.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (*entity.StockMovement, *product.Product, error) {
	switch in.Type {
	case entity.MovementAdjustment, entity.MovementDamage, entity.MovementSale:
	default:
		return nil, nil, apperror.NewValidation(fmt.Sprintf("movement type %q cannot be used for adjustments", in.Type))
	}
	if in.Change.IsZero() {
		return nil, nil, apperror.NewValidation("quantity change must not be zero")
	}
	if (in.Type == entity.MovementDamage || in.Type == entity.MovementSale) && in.Change.IsPositive() {
		in.Change = in.Change.Neg()
	}

	current, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, nil, apperror.Wrap("load product", err)
	}
	newStock := current.StockQuantity + in.Change
	if newStock.IsNegative() {
		return nil, nil, apperror.NewInsufficientStock(in.ProductID.String(),
			in.Change.Abs().String(), current.StockQuantity.String())
	}

	movement := entity.NewStockMovement(in.ProductID, in.Type, in.Change, id.Nil(), in.UserID)
	movement.Remarks = in.Remarks

	var updated *product.Product
	sg := saga.New("stock.adjust")
	err = sg.Run(ctx,
		saga.Step{
			Name: "update product " + current.Label(),
			Action: func(ctx context.Context) error {
				var err error
				updated, err = s.guard.CASUpdate(ctx, current, product.Fields{StockQuantity: newStock})
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.guard.Restore(ctx, current.ID, current.StockQuantity, current.CostPrice)
			},
		},
		saga.Step{
			Name:   "insert movement",
			Action: func(ctx context.Context) error { return s.Record(ctx, movement) },
		},
	)
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "stock adjusted",
		"product_id", in.ProductID,
		"type", in.Type,
		"change", in.Change.String(),
		"stock", newStock.String(),
	)
	return movement, updated, nil
}
