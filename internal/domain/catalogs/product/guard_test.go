package product_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/catalogs/product"
	"purchasing/internal/infrastructure/storage/memory"
)

func seed(t *testing.T, repo product.Repository, stock int64) *product.Product {
	t.Helper()
	p := product.New("W-1", "Widget", types.MustMoney("5"))
	p.StockQuantity = types.NewQuantity(stock)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestGuard_CASUpdateAppliesAndBumpsVersion(t *testing.T) {
	repo := memory.New().Products()
	guard := product.NewGuard(repo)
	p := seed(t, repo, 10)

	cost := types.MustMoney("6")
	updated, err := guard.CASUpdate(context.Background(), p, product.Fields{StockQuantity: types.NewQuantity(20), CostPrice: &cost})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(20), stored.StockQuantity)
	assert.True(t, cost.Equal(stored.CostPrice))
	assert.Equal(t, p.Version+1, stored.Version)
	assert.Equal(t, stored.Version, updated.Version)
}

func TestGuard_StaleReadIsConflictWithoutSideEffects(t *testing.T) {
	repo := memory.New().Products()
	guard := product.NewGuard(repo)
	p := seed(t, repo, 10)

	_, err := guard.CASUpdate(context.Background(), p, product.Fields{StockQuantity: types.NewQuantity(12)})
	require.NoError(t, err)

	// p is now stale
	_, err = guard.CASUpdate(context.Background(), p, product.Fields{StockQuantity: types.NewQuantity(15)})
	assert.True(t, apperror.IsConflict(err))
	assert.Equal(t, "Inventory update conflict for Widget. Please retry", err.(*apperror.AppError).Message)

	stored, _ := repo.GetByID(context.Background(), p.ID)
	assert.Equal(t, types.NewQuantity(12), stored.StockQuantity)
}

func TestGuard_SameStockDifferentVersionStillConflicts(t *testing.T) {
	repo := memory.New().Products()
	guard := product.NewGuard(repo)
	p := seed(t, repo, 10)

	// +5 then -5 leaves the same quantity behind
	mid, err := guard.CASUpdate(context.Background(), p, product.Fields{StockQuantity: types.NewQuantity(15)})
	require.NoError(t, err)
	_, err = guard.CASUpdate(context.Background(), mid, product.Fields{StockQuantity: types.NewQuantity(10)})
	require.NoError(t, err)

	_, err = guard.CASUpdate(context.Background(), p, product.Fields{StockQuantity: types.NewQuantity(11)})
	assert.True(t, apperror.IsConflict(err))
}

func TestGuard_NegativeStockIsRejected(t *testing.T) {
	repo := memory.New().Products()
	guard := product.NewGuard(repo)
	p := seed(t, repo, 2)

	_, err := guard.CASUpdate(context.Background(), p, product.Fields{StockQuantity: types.NewQuantity(-1)})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	stored, _ := repo.GetByID(context.Background(), p.ID)
	assert.Equal(t, p.Version, stored.Version)
}

func TestService_CreateRejectsDuplicateSKU(t *testing.T) {
	svc := product.NewService(memory.New().Products())
	ctx := context.Background()

	p := product.New("W-1", "Widget", types.MustMoney("1"))
	p.StockQuantity = types.NewQuantity(99)
	require.NoError(t, svc.Create(ctx, p))
	assert.Zero(t, p.StockQuantity, "new products start empty")

	err := svc.Create(ctx, product.New("W-1", "Other", types.Zero()))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
