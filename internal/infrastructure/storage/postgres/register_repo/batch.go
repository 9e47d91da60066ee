package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/infrastructure/storage/postgres"
)

const productBatchesTable = "product_batches"

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	cols    []string
}

var _ batch.Repository = (*BatchRepo)(nil)

// NewBatchRepo creates a new lot repository.
func NewBatchRepo(txm *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		cols:    postgres.ExtractDBColumns[batch.Batch](),
	}
}

func (r *BatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	sql, args, err := r.builder.Insert(productBatchesTable).SetMap(postgres.StructToMap(b)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) DeleteByMovement(ctx context.Context, movementID id.ID) error {
	sql, args, err := r.builder.Delete(productBatchesTable).Where(squirrel.Eq{"movement_id": movementID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// ListByProduct returns lots oldest first; expiring lots sort ahead of undated ones.
func (r *BatchRepo) ListByProduct(ctx context.Context, productID id.ID) ([]batch.Batch, error) {
	sql, args, err := r.builder.Select(r.cols...).
		From(productBatchesTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("expiry_date NULLS LAST", "created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lots := make([]batch.Batch, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	return lots, nil
}

func (r *BatchRepo) SumInitialByProduct(ctx context.Context) (map[id.ID]types.Quantity, error) {
	q := r.builder.Select("product_id", "COALESCE(SUM(quantity_initial), 0)").
		From(productBatchesTable).
		GroupBy("product_id")
	return sumByProduct(ctx, r.txm.GetQuerier(ctx), q)
}
