package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain"
	po "purchasing/internal/domain/documents/purchase_order"
)

// OrderRepo implements purchase_order.Repository and the return_total accumulator.
type OrderRepo struct {
	s *Store
}

var (
	_ po.Repository             = (*OrderRepo)(nil)
	_ po.ReturnTotalAccumulator = (*OrderRepo)(nil)
)

func (r *OrderRepo) Create(_ context.Context, order *po.PurchaseOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[order.ID]; ok {
		return apperror.NewValidation("purchase order already exists").WithDetail("id", order.ID.String())
	}
	stored := *order
	stored.Items = nil
	r.s.orders[order.ID] = stored
	return nil
}

func (r *OrderRepo) Delete(_ context.Context, orderID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.orders, orderID)
	delete(r.s.items, orderID)
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, orderID id.ID) (*po.PurchaseOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	order, ok := r.s.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("purchase order", orderID.String())
	}
	return &order, nil
}

func (r *OrderRepo) List(_ context.Context, filter po.ListFilter) (domain.ListResult[*po.PurchaseOrder], error) {
	r.s.mu.RLock()
	items := make([]*po.PurchaseOrder, 0, len(r.s.orders))
	for _, order := range r.s.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.SupplierID != nil && order.SupplierID != *filter.SupplierID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(order.Number), strings.ToLower(filter.Search)) {
			continue
		}
		order := order
		items = append(items, &order)
	}
	r.s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return domain.Page(items, filter.ListFilter), nil
}

func (r *OrderRepo) Update(_ context.Context, order *po.PurchaseOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.orders[order.ID]
	if !ok {
		return apperror.NewNotFound("purchase order", order.ID.String())
	}
	if stored.Version != order.Version {
		return apperror.NewConcurrentModification("purchase_orders", order.ID)
	}

	stored.SupplierID = order.SupplierID
	stored.Date = order.Date
	stored.Notes = order.Notes
	stored.TotalAmount = order.TotalAmount
	stored.UpdatedBy = order.UpdatedBy
	stored.UpdatedAt = time.Now().UTC()
	stored.Version++
	r.s.orders[order.ID] = stored
	return nil
}

func (r *OrderRepo) TransitionStatus(_ context.Context, orderID id.ID, from, to po.Status, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	order, ok := r.s.orders[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	order.UpdatedBy = userID
	order.UpdatedAt = time.Now().UTC()
	order.Version++
	r.s.orders[orderID] = order
	return true, nil
}

func (r *OrderRepo) Touch(_ context.Context, orderID id.ID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	order, ok := r.s.orders[orderID]
	if !ok {
		return apperror.NewNotFound("purchase order", orderID.String())
	}
	order.UpdatedBy = userID
	order.UpdatedAt = time.Now().UTC()
	order.Version++
	r.s.orders[orderID] = order
	return nil
}

func (r *OrderRepo) AppendNote(_ context.Context, orderID id.ID, line string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	order, ok := r.s.orders[orderID]
	if !ok {
		return apperror.NewNotFound("purchase order", orderID.String())
	}
	order.Notes = po.AppendNote(order.Notes, line)
	order.UpdatedAt = time.Now().UTC()
	r.s.orders[orderID] = order
	return nil
}

func (r *OrderRepo) AddReturnTotal(_ context.Context, orderID id.ID, amount types.Money) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	order, ok := r.s.orders[orderID]
	if !ok {
		return apperror.NewNotFound("purchase order", orderID.String())
	}
	order.ReturnTotal = order.ReturnTotal.Add(amount)
	r.s.orders[orderID] = order
	return nil
}

func (r *OrderRepo) UpdatePaymentStatus(_ context.Context, orderID id.ID, status po.PaymentStatus, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	order, ok := r.s.orders[orderID]
	if !ok {
		return apperror.NewNotFound("purchase order", orderID.String())
	}
	order.PaymentStatus = status
	order.UpdatedBy = userID
	order.UpdatedAt = time.Now().UTC()
	order.Version++
	r.s.orders[orderID] = order
	return nil
}

func (r *OrderRepo) GetItems(_ context.Context, orderID id.ID) ([]po.PurchaseItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := make([]po.PurchaseItem, len(r.s.items[orderID]))
	copy(items, r.s.items[orderID])
	return items, nil
}

func (r *OrderRepo) InsertItems(_ context.Context, items []po.PurchaseItem) error {
	if len(items) == 0 {
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, item := range items {
		if _, ok := r.s.orders[item.OrderID]; !ok {
			return apperror.NewNotFound("purchase order", item.OrderID.String())
		}
	}
	touched := make(map[id.ID]struct{})
	for _, item := range items {
		r.s.items[item.OrderID] = append(r.s.items[item.OrderID], item)
		touched[item.OrderID] = struct{}{}
	}
	for orderID := range touched {
		lines := r.s.items[orderID]
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].LineNo < lines[j].LineNo })
	}
	return nil
}

func (r *OrderRepo) DeleteItems(_ context.Context, orderID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.items, orderID)
	return nil
}
