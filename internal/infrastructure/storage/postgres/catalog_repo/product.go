package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/catalogs/product"
	"purchasing/internal/infrastructure/storage/postgres"
)

const (
	productsTable            = "products"
	productsSKUUnique        = "products_sku_key"
	productsStockNonNegative = "products_stock_quantity_check"
)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			productsTable,
			postgres.ExtractDBColumns[product.Product](),
			[]string{"sku", "name"},
			func() *product.Product { return &product.Product{} },
		),
	}
}

// Create inserts a product, reporting a duplicate SKU as a validation error.
func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	err := r.BaseCatalogRepo.Create(ctx, p)
	if postgres.IsUniqueViolation(err, productsSKUUnique) {
		return apperror.NewValidation("product with this sku already exists").WithDetail("sku", p.SKU)
	}
	return err
}

// GetBySKU finds a product by SKU, case-insensitively.
func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	p, err := r.FindOne(ctx, r.baseSelect().Where("lower(sku) = lower(?)", sku).Limit(1))
	if apperror.IsNotFound(err) {
		return nil, apperror.NewNotFound(productsTable, sku)
	}
	return p, err
}

// CompareAndSwap writes fields only where stock and version still match expected.
func (r *ProductRepo) CompareAndSwap(ctx context.Context, productID id.ID, expected product.Snapshot, fields product.Fields) (bool, error) {
	sql, args, err := r.casQuery(productID, expected, fields).ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsCheckViolation(err, productsStockNonNegative) {
			return false, apperror.NewInsufficientStock(productID.String(),
				fields.StockQuantity.Neg().String(), expected.StockQuantity.String())
		}
		return false, fmt.Errorf("update %s: %w", productsTable, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ProductRepo) casQuery(productID id.ID, expected product.Snapshot, fields product.Fields) squirrel.UpdateBuilder {
	q := r.Builder().
		Update(productsTable).
		Set("stock_quantity", fields.StockQuantity)
	if fields.CostPrice != nil {
		q = q.Set("cost_price", *fields.CostPrice)
	}
	return q.
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": productID}).
		Where(squirrel.Eq{"stock_quantity": expected.StockQuantity}).
		Where(squirrel.Eq{"version": expected.Version})
}

// Restore writes back stock and cost without a match condition.
// The version is still bumped so concurrent readers see the change.
func (r *ProductRepo) Restore(ctx context.Context, productID id.ID, stock types.Quantity, cost types.Money) error {
	sql, args, err := r.Builder().
		Update(productsTable).
		Set("stock_quantity", stock).
		Set("cost_price", cost).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("restore %s: %w", productsTable, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(productsTable, productID.String())
	}
	return nil
}

// StockLevels returns stock on hand for every product.
func (r *ProductRepo) StockLevels(ctx context.Context) (map[id.ID]types.Quantity, error) {
	sql, args, err := r.Builder().Select("id", "stock_quantity").From(productsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.Querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	defer rows.Close()

	levels := make(map[id.ID]types.Quantity)
	for rows.Next() {
		var (
			productID id.ID
			qty       types.Quantity
		)
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		levels[productID] = qty
	}
	return levels, rows.Err()
}
