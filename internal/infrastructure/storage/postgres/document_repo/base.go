// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/domain"
	"purchasing/internal/infrastructure/storage/postgres"
)

// BaseDocumentRepo provides common CRUD operations for document entities.
type BaseDocumentRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T any](
	txm *postgres.TxManager,
	tableName string,
	selectCols []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txm:        txm,
		tableName:  tableName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the querier for ctx.
func (r *BaseDocumentRepo[T]) Querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// Exec builds and runs a write statement, returning rows affected.
func (r *BaseDocumentRepo[T]) Exec(ctx context.Context, q squirrel.Sqlizer, op string) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	tag, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

// Create inserts a new document.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	_, err := r.Exec(ctx, r.Builder().Insert(r.tableName).SetMap(filteredData), "insert "+r.tableName)
	return err
}

// updateQuery writes cols of entity where the stored version still matches.
func (r *BaseDocumentRepo[T]) updateQuery(entity T, cols []string) (squirrel.UpdateBuilder, error) {
	data := postgres.StructToMap(entity)

	entityID, ok := data["id"]
	if !ok {
		return squirrel.UpdateBuilder{}, fmt.Errorf("entity has no 'id' field")
	}
	version, ok := data["version"].(int)
	if !ok {
		return squirrel.UpdateBuilder{}, fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	q := r.Builder().Update(r.tableName)
	for _, col := range cols {
		val, ok := data[col]
		if !ok {
			return squirrel.UpdateBuilder{}, fmt.Errorf("entity has no %q column", col)
		}
		q = q.Set(col, val)
	}

	return q.
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"version": version}), nil
}

// Update writes cols with optimistic locking.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, entity T, entityID id.ID, cols ...string) error {
	q, err := r.updateQuery(entity, cols)
	if err != nil {
		return err
	}

	affected, err := r.Exec(ctx, q, "update "+r.tableName)
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewConcurrentModification(r.tableName, entityID)
	}
	return nil
}

// Delete removes a document row.
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	affected, err := r.Exec(ctx, r.Builder().Delete(r.tableName).Where(squirrel.Eq{"id": entityID}), "delete "+r.tableName)
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound(r.tableName, entityID.String())
	}
	return nil
}

func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// GetByID retrieves a document by ID.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	entity := r.newFn()

	sql, args, err := r.baseSelect().Where(squirrel.Eq{"id": entityID}).ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.Querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.tableName, entityID.String())
		}
		return entity, fmt.Errorf("get by id: %w", err)
	}
	return entity, nil
}

// listQuery applies the common filter plus extra conditions.
func (r *BaseDocumentRepo[T]) listQuery(filter domain.ListFilter, conds ...squirrel.Sqlizer) squirrel.SelectBuilder {
	q := r.baseSelect()

	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	for _, c := range conds {
		q = q.Where(c)
	}
	return q
}

// List retrieves documents with standard filtering.
func (r *BaseDocumentRepo[T]) List(ctx context.Context, filter domain.ListFilter, conds ...squirrel.Sqlizer) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.listQuery(filter, conds...)

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.Querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}
	return result, nil
}

func (r *BaseDocumentRepo[T]) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if strings.TrimSpace(orderBy) == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}

	return field + " " + direction, nil
}
