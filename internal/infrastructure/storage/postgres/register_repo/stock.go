// Package register_repo provides PostgreSQL implementations for the append-only registers.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/registers/stock"
	"purchasing/internal/infrastructure/storage/postgres"
)

const (
	stockMovementsTable = "stock_movements"
	idempotencyKeysTable = "stock_idempotency_keys"

	// primary key (reference_id, idempotency_key)
	idempotencyKeysPkey = "stock_idempotency_keys_pkey"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	cols    []string
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		cols:    postgres.ExtractDBColumns[entity.StockMovement](),
	}
}

// Append inserts one movement.
func (r *StockRepo) Append(ctx context.Context, m *entity.StockMovement) error {
	sql, args, err := r.builder.Insert(stockMovementsTable).SetMap(postgres.StructToMap(m)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// Delete removes one movement.
func (r *StockRepo) Delete(ctx context.Context, movementID id.ID) error {
	sql, args, err := r.builder.Delete(stockMovementsTable).Where(squirrel.Eq{"id": movementID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock movement", movementID.String())
	}
	return nil
}

// ListByReference returns every movement of an order, oldest first.
func (r *StockRepo) ListByReference(ctx context.Context, referenceID id.ID) ([]entity.StockMovement, error) {
	q := r.builder.Select(r.cols...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"reference_id": referenceID}).
		OrderBy("created_at", "id")
	return r.selectMovements(ctx, q)
}

func (r *StockRepo) historyQuery(productID id.ID, filter stock.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.Select(r.cols...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"product_id": productID})

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.Type})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// History returns movements of one product, newest first.
func (r *StockRepo) History(ctx context.Context, productID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, error) {
	return r.selectMovements(ctx, r.historyQuery(productID, filter))
}

func (r *StockRepo) selectMovements(ctx context.Context, q squirrel.SelectBuilder) ([]entity.StockMovement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := make([]entity.StockMovement, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// HasIdempotencyKey reports whether key was claimed for the order.
func (r *StockRepo) HasIdempotencyKey(ctx context.Context, referenceID id.ID, key string) (bool, error) {
	sql, args, err := r.builder.
		Select("1").
		Prefix("SELECT EXISTS (").
		From(idempotencyKeysTable).
		Where(squirrel.Eq{"reference_id": referenceID, "idempotency_key": key}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return exists, nil
}

func (r *StockRepo) claimQuery(referenceID id.ID, key, userID string) squirrel.InsertBuilder {
	return r.builder.Insert(idempotencyKeysTable).
		Columns("reference_id", "idempotency_key", "created_by").
		Values(referenceID, key, userID)
}

// ClaimIdempotencyKey inserts one claim row per call. The primary key turns a
// concurrent replay into IDEMPOTENCY_CONFLICT.
func (r *StockRepo) ClaimIdempotencyKey(ctx context.Context, referenceID id.ID, key, userID string) error {
	sql, args, err := r.claimQuery(referenceID, key, userID).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, idempotencyKeysPkey) {
			return apperror.NewIdempotencyConflict(key).WithDetail("order_id", referenceID.String())
		}
		return fmt.Errorf("insert idempotency key: %w", err)
	}
	return nil
}

// ReleaseIdempotencyKey deletes a claim.
func (r *StockRepo) ReleaseIdempotencyKey(ctx context.Context, referenceID id.ID, key string) error {
	sql, args, err := r.builder.Delete(idempotencyKeysTable).
		Where(squirrel.Eq{"reference_id": referenceID, "idempotency_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete idempotency key: %w", err)
	}
	return nil
}

func (r *StockRepo) sumQuery(kinds []entity.MovementType) squirrel.SelectBuilder {
	q := r.builder.Select("product_id", "COALESCE(SUM(quantity_change), 0)").
		From(stockMovementsTable).
		GroupBy("product_id")
	if len(kinds) > 0 {
		q = q.Where(squirrel.Eq{"movement_type": kinds})
	}
	return q
}

// SumByProduct returns the signed movement sum per product.
func (r *StockRepo) SumByProduct(ctx context.Context, kinds ...entity.MovementType) (map[id.ID]types.Quantity, error) {
	return sumByProduct(ctx, r.txm.GetQuerier(ctx), r.sumQuery(kinds))
}

// sumByProduct runs a two-column (product_id, quantity) aggregate.
func sumByProduct(ctx context.Context, querier postgres.Querier, q squirrel.SelectBuilder) (map[id.ID]types.Quantity, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query sums: %w", err)
	}
	defer rows.Close()

	sums := make(map[id.ID]types.Quantity)
	for rows.Next() {
		var (
			productID id.ID
			total     types.Quantity
		)
		if err := rows.Scan(&productID, &total); err != nil {
			return nil, fmt.Errorf("scan sum: %w", err)
		}
		sums[productID] = total
	}
	return sums, rows.Err()
}
