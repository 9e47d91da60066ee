package memory

import (
	"context"
	"sort"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
	"purchasing/internal/domain/returns"
)

// MovementRepo implements stock.Repository.
type MovementRepo struct {
	s *Store
}

var _ stock.Repository = (*MovementRepo)(nil)

func (r *MovementRepo) Append(_ context.Context, m *entity.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.movements {
		if existing.ID == m.ID {
			return apperror.NewValidation("movement already exists").WithDetail("id", m.ID.String())
		}
	}
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r *MovementRepo) Delete(_ context.Context, movementID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, m := range r.s.movements {
		if m.ID == movementID {
			r.s.movements = append(r.s.movements[:i], r.s.movements[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("stock movement", movementID.String())
}

func (r *MovementRepo) ListByReference(_ context.Context, referenceID id.ID) ([]entity.StockMovement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]entity.StockMovement, 0)
	for _, m := range r.s.movements {
		if m.ReferenceID == referenceID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MovementRepo) History(_ context.Context, productID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, error) {
	r.s.mu.RLock()
	matched := make([]entity.StockMovement, 0)
	for _, m := range r.s.movements {
		if m.ProductID != productID {
			continue
		}
		if filter.Type != nil && m.Type != *filter.Type {
			continue
		}
		if filter.FromDate != nil && m.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && m.CreatedAt.After(*filter.ToDate) {
			continue
		}
		matched = append(matched, m)
	}
	r.s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if filter.Offset >= len(matched) {
		return []entity.StockMovement{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *MovementRepo) HasIdempotencyKey(_ context.Context, referenceID id.ID, key string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.claims[referenceID][key]
	return ok, nil
}

func (r *MovementRepo) ClaimIdempotencyKey(_ context.Context, referenceID id.ID, key, _ string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	keys, ok := r.s.claims[referenceID]
	if !ok {
		keys = make(map[string]struct{})
		r.s.claims[referenceID] = keys
	}
	if _, taken := keys[key]; taken {
		return apperror.NewIdempotencyConflict(key).WithDetail("order_id", referenceID.String())
	}
	keys[key] = struct{}{}
	return nil
}

func (r *MovementRepo) ReleaseIdempotencyKey(_ context.Context, referenceID id.ID, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.claims[referenceID], key)
	return nil
}

func (r *MovementRepo) SumByProduct(_ context.Context, kinds ...entity.MovementType) (map[id.ID]types.Quantity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sums := make(map[id.ID]types.Quantity)
	for _, m := range r.s.movements {
		if len(kinds) > 0 && !containsType(kinds, m.Type) {
			continue
		}
		sums[m.ProductID] += m.QuantityChange
	}
	return sums, nil
}

func containsType(kinds []entity.MovementType, t entity.MovementType) bool {
	for _, k := range kinds {
		if k == t {
			return true
		}
	}
	return false
}

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	s *Store
}

var _ batch.Repository = (*BatchRepo)(nil)

func (r *BatchRepo) Create(_ context.Context, b *batch.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.batches = append(r.s.batches, *b)
	return nil
}

func (r *BatchRepo) DeleteByMovement(_ context.Context, movementID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.batches[:0]
	for _, b := range r.s.batches {
		if b.MovementID != movementID {
			kept = append(kept, b)
		}
	}
	r.s.batches = kept
	return nil
}

func (r *BatchRepo) ListByProduct(_ context.Context, productID id.ID) ([]batch.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]batch.Batch, 0)
	for _, b := range r.s.batches {
		if b.ProductID == productID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *BatchRepo) SumInitialByProduct(_ context.Context) (map[id.ID]types.Quantity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sums := make(map[id.ID]types.Quantity)
	for _, b := range r.s.batches {
		sums[b.ProductID] += b.QuantityInitial
	}
	return sums, nil
}

// ReturnEventRepo implements returns.EventRepository.
type ReturnEventRepo struct {
	s *Store
}

var _ returns.EventRepository = (*ReturnEventRepo)(nil)

func (r *ReturnEventRepo) Append(_ context.Context, ev *returns.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.events = append(r.s.events, *ev)
	return nil
}

func (r *ReturnEventRepo) Delete(_ context.Context, eventID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, ev := range r.s.events {
		if ev.ID == eventID {
			r.s.events = append(r.s.events[:i], r.s.events[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("return event", eventID.String())
}

func (r *ReturnEventRepo) ListByOrder(_ context.Context, orderID id.ID) ([]returns.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]returns.Event, 0)
	for _, ev := range r.s.events {
		if ev.OrderID == orderID {
			out = append(out, ev)
		}
	}
	return out, nil
}
