package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/domain/registers/stock"
)

func TestStockRepo_HistoryQuery(t *testing.T) {
	repo := NewStockRepo(nil)
	productID := id.New()
	kind := entity.MovementPurchase
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := repo.historyQuery(productID, stock.MovementFilter{
		Type:     &kind,
		FromDate: &from,
		Limit:    20,
		Offset:   40,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM stock_movements WHERE product_id = $1 AND movement_type = $2 AND created_at >= $3")
	assert.Contains(t, sql, "ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 40")
	assert.Equal(t, []any{productID.String(), kind, from}, args)
}

func TestStockRepo_SumQuery(t *testing.T) {
	repo := NewStockRepo(nil)

	sql, args, err := repo.sumQuery(nil).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT product_id, COALESCE(SUM(quantity_change), 0) FROM stock_movements GROUP BY product_id", sql)
	assert.Empty(t, args)

	sql, args, err = repo.sumQuery([]entity.MovementType{entity.MovementPurchase}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE movement_type IN ($1)")
	assert.Equal(t, []any{entity.MovementPurchase}, args)
}

func TestStockRepo_ColumnsCoverMovement(t *testing.T) {
	repo := NewStockRepo(nil)
	assert.ElementsMatch(t, []string{
		"id", "product_id", "movement_type", "quantity_change", "reference_id",
		"remarks", "idempotency_key", "created_by", "created_at",
	}, repo.cols)
}

func TestStockRepo_ClaimQuery(t *testing.T) {
	repo := NewStockRepo(nil)
	orderID := id.New()

	sql, args, err := repo.claimQuery(orderID, "delivery-1", "clerk").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO stock_idempotency_keys (reference_id,idempotency_key,created_by) VALUES ($1,$2,$3)", sql)
	assert.Equal(t, []any{orderID, "delivery-1", "clerk"}, args)
}
