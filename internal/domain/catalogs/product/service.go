package product

import (
	"context"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/domain"
	"purchasing/pkg/logger"
)

// Service provides catalog operations on products.
// Stock and cost are changed only through the Guard by the ledger-writing engines.
type Service struct {
	repo Repository
}

// NewService creates a new product service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a product with zero stock on hand.
func (s *Service) Create(ctx context.Context, p *Product) error {
	p.StockQuantity = 0
	if err := p.Validate(); err != nil {
		return err
	}

	if _, err := s.repo.GetBySKU(ctx, p.SKU); err == nil {
		return apperror.NewValidation("product with this sku already exists").
			WithDetail("sku", p.SKU)
	} else if !apperror.IsNotFound(err) {
		return apperror.Wrap("check sku", err)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return apperror.Wrap("create product", err)
	}

	logger.Info(ctx, "product created", "id", p.ID, "sku", p.SKU)
	return nil
}

// GetByID retrieves a product.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, apperror.Wrap("get product", err)
	}
	return p, nil
}

// List retrieves products with pagination.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error) {
	result, err := s.repo.List(ctx, filter)
	if err != nil {
		return result, apperror.Wrap("list products", err)
	}
	return result, nil
}
