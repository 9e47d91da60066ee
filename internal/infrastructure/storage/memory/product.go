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
	"purchasing/internal/domain/catalogs/product"
)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	s *Store
}

var _ product.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[p.ID]; ok {
		return apperror.NewValidation("product already exists").WithDetail("id", p.ID.String())
	}
	for _, existing := range r.s.products {
		if strings.EqualFold(existing.SKU, p.SKU) {
			return apperror.NewValidation("product with this sku already exists").WithDetail("sku", p.SKU)
		}
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r *ProductRepo) GetByID(_ context.Context, productID id.ID) (*product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return &p, nil
}

func (r *ProductRepo) GetBySKU(_ context.Context, sku string) (*product.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.products {
		if strings.EqualFold(p.SKU, sku) {
			return &p, nil
		}
	}
	return nil, apperror.NewNotFound("product", sku)
}

func (r *ProductRepo) List(_ context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	r.s.mu.RLock()
	items := make([]*product.Product, 0, len(r.s.products))
	search := strings.ToLower(filter.Search)
	for _, p := range r.s.products {
		if search != "" && !strings.Contains(strings.ToLower(p.SKU+" "+p.Name), search) {
			continue
		}
		if len(filter.IDs) > 0 && !containsID(filter.IDs, p.ID) {
			continue
		}
		p := p
		items = append(items, &p)
	}
	r.s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })
	return domain.Page(items, filter), nil
}

func (r *ProductRepo) CompareAndSwap(_ context.Context, productID id.ID, expected product.Snapshot, fields product.Fields) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[productID]
	if !ok || p.StockQuantity != expected.StockQuantity || p.Version != expected.Version {
		return false, nil
	}
	p.StockQuantity = fields.StockQuantity
	if fields.CostPrice != nil {
		p.CostPrice = *fields.CostPrice
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	r.s.products[productID] = p
	return true, nil
}

func (r *ProductRepo) Restore(_ context.Context, productID id.ID, stock types.Quantity, cost types.Money) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[productID]
	if !ok {
		return apperror.NewNotFound("product", productID.String())
	}
	p.StockQuantity = stock
	p.CostPrice = cost
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	r.s.products[productID] = p
	return nil
}

func (r *ProductRepo) StockLevels(_ context.Context) (map[id.ID]types.Quantity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	levels := make(map[id.ID]types.Quantity, len(r.s.products))
	for pid, p := range r.s.products {
		levels[pid] = p.StockQuantity
	}
	return levels, nil
}

func containsID(ids []id.ID, target id.ID) bool {
	for _, v := range ids {
		if v == target {
			return true
		}
	}
	return false
}
