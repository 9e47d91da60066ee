package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/domain/returns"
	"purchasing/internal/infrastructure/storage/postgres"
)

const returnEventsTable = "return_events"

// ReturnEventRepo implements returns.EventRepository.
type ReturnEventRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	cols    []string
}

var _ returns.EventRepository = (*ReturnEventRepo)(nil)

// NewReturnEventRepo creates a new return event repository.
func NewReturnEventRepo(txm *postgres.TxManager) *ReturnEventRepo {
	return &ReturnEventRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		cols:    postgres.ExtractDBColumns[returns.Event](),
	}
}

func (r *ReturnEventRepo) Append(ctx context.Context, ev *returns.Event) error {
	sql, args, err := r.builder.Insert(returnEventsTable).SetMap(postgres.StructToMap(ev)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert return event: %w", err)
	}
	return nil
}

func (r *ReturnEventRepo) Delete(ctx context.Context, eventID id.ID) error {
	sql, args, err := r.builder.Delete(returnEventsTable).Where(squirrel.Eq{"id": eventID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete return event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("return event", eventID.String())
	}
	return nil
}

func (r *ReturnEventRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]returns.Event, error) {
	sql, args, err := r.builder.Select(r.cols...).
		From(returnEventsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	events := make([]returns.Event, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &events, sql, args...); err != nil {
		return nil, fmt.Errorf("select return events: %w", err)
	}
	return events, nil
}
