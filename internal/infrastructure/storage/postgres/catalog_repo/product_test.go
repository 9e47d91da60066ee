package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain"
	"purchasing/internal/domain/catalogs/product"
)

func TestProductRepo_CASQuery(t *testing.T) {
	repo := NewProductRepo(nil)
	productID := id.New()
	cost := types.MustMoney("6")

	sql, args, err := repo.casQuery(productID,
		product.Snapshot{StockQuantity: types.NewQuantity(10), Version: 3},
		product.Fields{StockQuantity: types.NewQuantity(20), CostPrice: &cost},
	).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE products SET stock_quantity = $1, cost_price = $2, version = version + 1, updated_at = NOW() "+
			"WHERE id = $3 AND stock_quantity = $4 AND version = $5", sql)
	assert.Equal(t, []any{types.NewQuantity(20), cost, productID.String(), types.NewQuantity(10), 3}, args)
}

func TestProductRepo_CASQueryWithoutCost(t *testing.T) {
	repo := NewProductRepo(nil)

	sql, _, err := repo.casQuery(id.New(),
		product.Snapshot{StockQuantity: types.NewQuantity(5), Version: 1},
		product.Fields{StockQuantity: types.NewQuantity(2)},
	).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "cost_price")
}

func TestBaseCatalogRepo_ListQuery(t *testing.T) {
	repo := NewProductRepo(nil)

	q, err := repo.listQuery(domain.ListFilter{Search: "wid", OrderBy: "-sku", Limit: 10, Offset: 20})
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE (sku ILIKE $1 OR name ILIKE $2)")
	assert.Contains(t, sql, "ORDER BY sku DESC LIMIT 10 OFFSET 20")
	assert.Equal(t, []any{"%wid%", "%wid%"}, args)
}

func TestBaseCatalogRepo_RejectsUnknownOrderBy(t *testing.T) {
	repo := NewProductRepo(nil)

	_, err := repo.listQuery(domain.ListFilter{OrderBy: "name; DROP TABLE products"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	order, err := repo.parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "name ASC", order)
}

func TestBaseCatalogRepo_InsertUsesKnownColumnsOnly(t *testing.T) {
	repo := NewProductRepo(nil)
	p := product.New("W-1", "Widget", types.MustMoney("2"))

	sql, args, err := repo.insertQuery(p).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO products")
	assert.Contains(t, sql, "stock_quantity")
	assert.Len(t, args, len(repo.selectCols))
}
