package purchase_order

import (
	"context"
	"fmt"
	"time"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/core/lock"
	"purchasing/internal/core/numerator"
	"purchasing/internal/core/saga"
	"purchasing/internal/domain"
	"purchasing/internal/domain/audit"
	"purchasing/pkg/logger"
)

// EntityType names purchase orders in audit records.
const EntityType = "purchase_order"

// ReceiptChecker tells whether goods were already received against an order.
type ReceiptChecker interface {
	HasPurchases(ctx context.Context, orderID id.ID) (bool, error)
}

// Service provides lifecycle operations for purchase orders.
// Receiving and returns live in their own engines; this service never moves stock.
type Service struct {
	repo      Repository
	receipts  ReceiptChecker
	numerator numerator.Generator
	locker    lock.Locker
	audit     audit.Recorder
	hooks     *domain.HookRegistry[*PurchaseOrder]
}

// NewService creates a new purchase order service. The locker must be the one
// the receiving and return engines use.
func NewService(
	repo Repository,
	receipts ReceiptChecker,
	numerator numerator.Generator,
	locker lock.Locker,
	auditRecorder audit.Recorder,
) *Service {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Service{
		repo:      repo,
		receipts:  receipts,
		numerator: numerator,
		locker:    locker,
		audit:     auditRecorder,
		hooks:     domain.NewHookRegistry[*PurchaseOrder](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*PurchaseOrder] {
	return s.hooks
}

// CreateInput describes a new order.
type CreateInput struct {
	SupplierID id.ID
	Date       *time.Time
	Notes      string
	Items      []ItemInput
}

// Create places a new pending order.
func (s *Service) Create(ctx context.Context, in CreateInput, userID string) (*PurchaseOrder, error) {
	order := New(in.SupplierID, userID)
	if in.Date != nil {
		order.Date = in.Date.UTC()
	}
	order.Notes = in.Notes
	order.SetItems(in.Items)

	if err := order.Validate(); err != nil {
		return nil, err
	}

	cfg := numerator.DefaultConfig(NumberPrefix)
	number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, order.Date)
	if err != nil {
		return nil, apperror.Wrap("generate number", err)
	}
	order.Number = number

	sg := saga.New("purchase_order.create")
	err = sg.Run(ctx,
		saga.Step{
			Name:       "insert order",
			Action:     func(ctx context.Context) error { return s.repo.Create(ctx, order) },
			Compensate: func(ctx context.Context) error { return s.repo.Delete(ctx, order.ID) },
		},
		saga.Step{
			Name:   "insert items",
			Action: func(ctx context.Context) error { return s.repo.InsertItems(ctx, order.Items) },
		},
	)
	if err != nil {
		return nil, apperror.Wrap("create purchase order", err)
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, order); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}
	audit.Record(ctx, s.audit, EntityType, order.ID, audit.ActionCreate, map[string]any{
		"number":      order.Number,
		"supplier_id": order.SupplierID.String(),
		"items":       len(order.Items),
		"total":       order.TotalAmount.String(),
	})

	logger.Info(ctx, "purchase order created",
		"id", order.ID,
		"number", order.Number,
		"items", len(order.Items))

	return order, nil
}

// GetByID retrieves an order with its items.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.Wrap("get purchase order", err)
	}

	items, err := s.repo.GetItems(ctx, orderID)
	if err != nil {
		return nil, apperror.Wrap("get purchase items", err)
	}
	order.Items = items

	return order, nil
}

// List retrieves order headers.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseOrder], error) {
	result, err := s.repo.List(ctx, filter)
	if err != nil {
		return result, apperror.Wrap("list purchase orders", err)
	}
	return result, nil
}

// UpdateInput replaces the editable parts of a pending order.
type UpdateInput struct {
	SupplierID *id.ID
	Notes      *string
	Items      []ItemInput

	// Version is the order version the caller edited; 0 skips the check
	Version int
}

// lockOrder holds the order lock shared with receiving and returns.
func (s *Service) lockOrder(ctx context.Context, orderID id.ID) (func(), error) {
	release, err := s.locker.Obtain(ctx, lock.OrderKey(orderID.String()))
	if err != nil {
		return nil, err
	}
	return func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			logger.Warn(ctx, "order lock release failed", "order_id", orderID, "error", relErr)
		}
	}, nil
}

// Update replaces the item set of a pending order that has not received anything.
//
// The order lock is held from the receipt check to the header write. Items are
// swapped by delete-then-insert; a failed insert reinserts the old items and a
// failed header write undoes both. A receipt recorded without the lock still
// bumps the version, so the header write then fails as CONCURRENT_MODIFICATION.
func (s *Service) Update(ctx context.Context, orderID id.ID, in UpdateInput, userID string) (*PurchaseOrder, error) {
	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := current.EnsureModifiable(); err != nil {
		return nil, err
	}
	if in.Version != 0 && in.Version != current.Version {
		return nil, apperror.NewConcurrentModification(EntityType, orderID.String())
	}

	received, err := s.receipts.HasPurchases(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if received {
		return nil, apperror.NewState("", "Cannot modify a purchase order that has received goods").
			WithDetail("order_id", orderID.String())
	}

	updated := *current
	if in.SupplierID != nil {
		updated.SupplierID = *in.SupplierID
	}
	if in.Notes != nil {
		updated.Notes = *in.Notes
	}
	updated.SetItems(in.Items)
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	oldItems := current.Items
	sg := saga.New("purchase_order.update")
	err = sg.Run(ctx,
		saga.Step{
			Name:       "delete items",
			Action:     func(ctx context.Context) error { return s.repo.DeleteItems(ctx, orderID) },
			Compensate: func(ctx context.Context) error { return s.repo.InsertItems(ctx, oldItems) },
		},
		saga.Step{
			Name:       "insert items",
			Action:     func(ctx context.Context) error { return s.repo.InsertItems(ctx, updated.Items) },
			Compensate: func(ctx context.Context) error { return s.repo.DeleteItems(ctx, orderID) },
		},
		saga.Step{
			Name:   "update header",
			Action: func(ctx context.Context) error { return s.repo.Update(ctx, &updated) },
		},
	)
	if err != nil {
		return nil, apperror.Wrap("update purchase order", err)
	}
	updated.Touch(userID)

	if err := s.hooks.Run(ctx, domain.AfterUpdate, &updated); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}
	audit.Record(ctx, s.audit, EntityType, orderID, audit.ActionUpdate, map[string]any{
		"items_before": len(oldItems),
		"items_after":  len(updated.Items),
		"total_before": current.TotalAmount.String(),
		"total_after":  updated.TotalAmount.String(),
	})

	logger.Info(ctx, "purchase order updated", "id", orderID, "items", len(updated.Items))
	return &updated, nil
}

// Cancel moves a pending order to cancelled.
// The write is conditioned on the stored status so it cannot race a receive.
func (s *Service) Cancel(ctx context.Context, orderID id.ID, reason, userID string) (*PurchaseOrder, error) {
	unlock, err := s.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPending() {
		return nil, apperror.NewState("", fmt.Sprintf("Only pending purchase orders can be cancelled (status is %s)", order.Status)).
			WithDetail("order_id", orderID.String()).
			WithDetail("status", string(order.Status))
	}

	ok, err := s.repo.TransitionStatus(ctx, orderID, StatusPending, StatusCancelled, userID)
	if err != nil {
		return nil, apperror.Wrap("cancel purchase order", err)
	}
	if !ok {
		return nil, apperror.NewState("", "Purchase order is no longer pending").
			WithDetail("order_id", orderID.String())
	}

	if reason != "" {
		line := fmt.Sprintf("[%s] Cancelled: %s", time.Now().UTC().Format(time.RFC3339), reason)
		if err := s.repo.AppendNote(ctx, orderID, line); err != nil {
			logger.Warn(ctx, "cancel note not written", "order_id", orderID, "error", err)
		} else {
			order.Notes = AppendNote(order.Notes, line)
		}
	}

	order.Status = StatusCancelled
	order.Touch(userID)

	if err := s.hooks.Run(ctx, domain.AfterCancel, order); err != nil {
		logger.Warn(ctx, "after-cancel hook failed", "error", err)
	}
	audit.Record(ctx, s.audit, EntityType, orderID, audit.ActionCancel, map[string]any{
		"reason": reason,
	})

	logger.Info(ctx, "purchase order cancelled", "id", orderID)
	return order, nil
}

// UpdatePaymentStatus records supplier payment progress. Stock is untouched.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID id.ID, status PaymentStatus, userID string) (*PurchaseOrder, error) {
	if !status.IsValid() {
		return nil, apperror.NewValidation("invalid payment status").
			WithDetail("field", "paymentStatus").
			WithDetail("value", string(status))
	}

	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		return nil, apperror.NewState("", "Cannot change payment status of a cancelled purchase order").
			WithDetail("order_id", orderID.String())
	}
	if order.PaymentStatus == status {
		return order, nil
	}

	if err := s.repo.UpdatePaymentStatus(ctx, orderID, status, userID); err != nil {
		return nil, apperror.Wrap("update payment status", err)
	}

	previous := order.PaymentStatus
	order.PaymentStatus = status
	order.Touch(userID)

	audit.Record(ctx, s.audit, EntityType, orderID, audit.ActionPayment, map[string]any{
		"from": string(previous),
		"to":   string(status),
	})
	return order, nil
}

// History returns the audit trail of an order, newest first.
func (s *Service) History(ctx context.Context, orderID id.ID, limit int) ([]audit.Entry, error) {
	if _, err := s.repo.GetByID(ctx, orderID); err != nil {
		return nil, apperror.Wrap("get purchase order", err)
	}
	if s.audit == nil {
		return []audit.Entry{}, nil
	}
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.audit.History(ctx, EntityType, orderID, limit)
	if err != nil {
		return nil, apperror.Wrap("read audit history", err)
	}
	return entries, nil
}
