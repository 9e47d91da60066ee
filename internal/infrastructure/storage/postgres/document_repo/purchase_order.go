package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain"
	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable = "purchase_orders"
	purchaseItemsTable  = "purchase_items"
)

// headerColumns are the order fields an edit may change.
var headerColumns = []string{"supplier_id", "date", "notes", "total_amount", "updated_by"}

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	*BaseDocumentRepo[*po.PurchaseOrder]
	itemCols []string
}

var (
	_ po.Repository             = (*PurchaseOrderRepo)(nil)
	_ po.ReturnTotalAccumulator = (*PurchaseOrderRepo)(nil)
)

// NewPurchaseOrderRepo creates a new purchase order repository.
func NewPurchaseOrderRepo(txm *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			purchaseOrdersTable,
			postgres.ExtractDBColumns[po.PurchaseOrder](),
			func() *po.PurchaseOrder { return &po.PurchaseOrder{} },
		),
		itemCols: postgres.ExtractDBColumns[po.PurchaseItem](),
	}
}

// List retrieves orders filtered by status and supplier.
func (r *PurchaseOrderRepo) List(ctx context.Context, filter po.ListFilter) (domain.ListResult[*po.PurchaseOrder], error) {
	return r.BaseDocumentRepo.List(ctx, filter.ListFilter, r.filterConds(filter)...)
}

func (r *PurchaseOrderRepo) filterConds(filter po.ListFilter) []squirrel.Sqlizer {
	var conds []squirrel.Sqlizer
	if filter.Status != nil {
		conds = append(conds, squirrel.Eq{"status": *filter.Status})
	}
	if filter.SupplierID != nil {
		conds = append(conds, squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	return conds
}

// Update writes the editable header fields with optimistic locking.
func (r *PurchaseOrderRepo) Update(ctx context.Context, order *po.PurchaseOrder) error {
	return r.BaseDocumentRepo.Update(ctx, order, order.ID, headerColumns...)
}

func (r *PurchaseOrderRepo) transitionQuery(orderID id.ID, from, to po.Status, userID string) squirrel.UpdateBuilder {
	return r.Builder().
		Update(purchaseOrdersTable).
		Set("status", to).
		Set("updated_by", userID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": orderID}).
		Where(squirrel.Eq{"status": from})
}

// TransitionStatus moves the order to another status only while it is still in from.
func (r *PurchaseOrderRepo) TransitionStatus(ctx context.Context, orderID id.ID, from, to po.Status, userID string) (bool, error) {
	affected, err := r.Exec(ctx, r.transitionQuery(orderID, from, to, userID), "transition")
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *PurchaseOrderRepo) touchQuery(orderID id.ID, userID string) squirrel.UpdateBuilder {
	return r.Builder().
		Update(purchaseOrdersTable).
		Set("updated_by", userID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": orderID})
}

// Touch bumps the version so edits prepared before a receipt go stale.
func (r *PurchaseOrderRepo) Touch(ctx context.Context, orderID id.ID, userID string) error {
	affected, err := r.Exec(ctx, r.touchQuery(orderID, userID), "touch")
	return expectOne(orderID, affected, err)
}

func (r *PurchaseOrderRepo) appendNoteQuery(orderID id.ID, line string) squirrel.UpdateBuilder {
	return r.Builder().
		Update(purchaseOrdersTable).
		Set("notes", squirrel.Expr("CASE WHEN btrim(notes) = '' THEN ? ELSE notes || E'\\n' || ? END", line, line)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": orderID})
}

// AppendNote adds a line to the order notes.
func (r *PurchaseOrderRepo) AppendNote(ctx context.Context, orderID id.ID, line string) error {
	affected, err := r.Exec(ctx, r.appendNoteQuery(orderID, line), "append note")
	return expectOne(orderID, affected, err)
}

// AddReturnTotal accumulates returned value on the order.
func (r *PurchaseOrderRepo) AddReturnTotal(ctx context.Context, orderID id.ID, amount types.Money) error {
	q := r.Builder().
		Update(purchaseOrdersTable).
		Set("return_total", squirrel.Expr("return_total + ?", amount)).
		Where(squirrel.Eq{"id": orderID})
	affected, err := r.Exec(ctx, q, "add return total")
	return expectOne(orderID, affected, err)
}

// UpdatePaymentStatus sets the payment status.
func (r *PurchaseOrderRepo) UpdatePaymentStatus(ctx context.Context, orderID id.ID, status po.PaymentStatus, userID string) error {
	q := r.Builder().
		Update(purchaseOrdersTable).
		Set("payment_status", status).
		Set("updated_by", userID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": orderID})
	affected, err := r.Exec(ctx, q, "update payment status")
	return expectOne(orderID, affected, err)
}

func expectOne(orderID id.ID, affected int64, err error) error {
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound(purchaseOrdersTable, orderID.String())
	}
	return nil
}

// GetItems returns the order lines in line order.
func (r *PurchaseOrderRepo) GetItems(ctx context.Context, orderID id.ID) ([]po.PurchaseItem, error) {
	sql, args, err := r.Builder().
		Select(r.itemCols...).
		From(purchaseItemsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]po.PurchaseItem, 0)
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

func (r *PurchaseOrderRepo) insertItemsQuery(items []po.PurchaseItem) squirrel.InsertBuilder {
	q := r.Builder().Insert(purchaseItemsTable).Columns(r.itemCols...)
	for _, item := range items {
		data := postgres.StructToMap(item)
		values := make([]any, 0, len(r.itemCols))
		for _, col := range r.itemCols {
			values = append(values, data[col])
		}
		q = q.Values(values...)
	}
	return q
}

// InsertItems writes all lines in one statement.
func (r *PurchaseOrderRepo) InsertItems(ctx context.Context, items []po.PurchaseItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := r.Exec(ctx, r.insertItemsQuery(items), "insert items")
	if postgres.IsForeignKeyViolation(err) {
		return apperror.NewNotFound(purchaseOrdersTable, items[0].OrderID.String())
	}
	return err
}

// DeleteItems removes every line of the order.
func (r *PurchaseOrderRepo) DeleteItems(ctx context.Context, orderID id.ID) error {
	_, err := r.Exec(ctx, r.Builder().Delete(purchaseItemsTable).Where(squirrel.Eq{"order_id": orderID}), "delete items")
	return err
}
