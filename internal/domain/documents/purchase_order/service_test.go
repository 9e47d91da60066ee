package purchase_order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/core/lock"
	corenumerator "purchasing/internal/core/numerator"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/catalogs/product"
	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/domain/receiving"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
	"purchasing/internal/infrastructure/numerator"
	"purchasing/internal/infrastructure/storage/memory"
)

// flakyOrders fails selected writes of the wrapped repository.
type flakyOrders struct {
	po.Repository

	insertCalls  int
	failInsertOn int
	failUpdate   bool
}

func (r *flakyOrders) InsertItems(ctx context.Context, items []po.PurchaseItem) error {
	r.insertCalls++
	if r.insertCalls == r.failInsertOn {
		return errors.New("insert purchase_items: check constraint violated")
	}
	return r.Repository.InsertItems(ctx, items)
}

func (r *flakyOrders) Update(ctx context.Context, order *po.PurchaseOrder) error {
	if r.failUpdate {
		return errors.New("update purchase_orders: connection refused")
	}
	return r.Repository.Update(ctx, order)
}

type env struct {
	store   *memory.Store
	orders  *flakyOrders
	service *po.Service
	engine  *receiving.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	orders := &flakyOrders{Repository: store.Orders()}
	guard := product.NewGuard(store.Products())
	ledger := stock.NewService(store.Movements(), store.Products(), guard)
	return &env{
		store:   store,
		orders:  orders,
		service: po.NewService(orders, ledger, numerator.NewMemory(), nil, store.Audit()),
		engine:  receiving.NewEngine(store.Orders(), store.Products(), guard, ledger, batch.NewRecorder(store.Batches()), nil, nil),
	}
}

// receiptDuringCheck runs a receipt right after the first receipt check has
// read the ledger, as a concurrent receive call would.
type receiptDuringCheck struct {
	po.ReceiptChecker

	receive func(ctx context.Context) error
	err     error
	fired   bool
}

func (c *receiptDuringCheck) HasPurchases(ctx context.Context, orderID id.ID) (bool, error) {
	received, err := c.ReceiptChecker.HasPurchases(ctx, orderID)
	if c.receive != nil && !c.fired {
		c.fired = true
		c.err = c.receive(ctx)
	}
	return received, err
}

func newLockedEnv(t *testing.T, locker lock.Locker) (*env, *receiptDuringCheck) {
	t.Helper()
	store := memory.New()
	orders := &flakyOrders{Repository: store.Orders()}
	guard := product.NewGuard(store.Products())
	ledger := stock.NewService(store.Movements(), store.Products(), guard)
	checker := &receiptDuringCheck{ReceiptChecker: ledger}
	return &env{
		store:   store,
		orders:  orders,
		service: po.NewService(orders, checker, numerator.NewMemory(), locker, store.Audit()),
		engine:  receiving.NewEngine(store.Orders(), store.Products(), guard, ledger, batch.NewRecorder(store.Batches()), locker, nil),
	}, checker
}

func (e *env) receiveDuringCheck(checker *receiptDuringCheck, orderID id.ID, p *product.Product, units int64) {
	checker.receive = func(ctx context.Context) error {
		_, err := e.engine.ReceiveGoods(ctx, orderID, "clerk",
			[]receiving.ReceiveItem{{ProductID: p.ID, Quantity: types.NewQuantity(units)}}, receiving.Options{})
		return err
	}
}

func (e *env) product(t *testing.T, sku string) *product.Product {
	t.Helper()
	p := product.New(sku, sku, types.MustMoney("1"))
	require.NoError(t, e.store.Products().Create(context.Background(), p))
	return p
}

func item(p *product.Product, units int64, cost string) po.ItemInput {
	return po.ItemInput{ProductID: p.ID, Quantity: types.NewQuantity(units), UnitCost: types.MustMoney(cost)}
}

func TestCreate_NumbersAndTotals(t *testing.T) {
	e := newEnv(t)
	a, b := e.product(t, "A"), e.product(t, "B")

	order, err := e.service.Create(context.Background(), po.CreateInput{
		SupplierID: id.New(),
		Items:      []po.ItemInput{item(a, 3, "2.50"), item(b, 2, "10")},
	}, "buyer")
	require.NoError(t, err)

	assert.Regexp(t, `^PO-\d{4}-00001$`, order.Number)
	assert.Equal(t, po.StatusPending, order.Status)
	assert.Equal(t, po.PaymentUnpaid, order.PaymentStatus)
	assert.True(t, types.MustMoney("27.5").Equal(order.TotalAmount))
	require.Len(t, order.Items, 2)
	assert.Equal(t, 1, order.Items[0].LineNo)
	assert.True(t, types.MustMoney("7.5").Equal(order.Items[0].TotalCost))

	stored, err := e.service.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, "buyer", stored.CreatedBy)
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	a := e.product(t, "A")

	tests := []struct {
		name string
		in   po.CreateInput
	}{
		{"no supplier", po.CreateInput{Items: []po.ItemInput{item(a, 1, "1")}}},
		{"no items", po.CreateInput{SupplierID: id.New()}},
		{"zero quantity", po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 0, "1")}}},
		{"negative cost", po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "-1")}}},
		{"duplicate product", po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1"), item(a, 2, "1")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.service.Create(context.Background(), tt.in, "buyer")
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
}

func TestCreate_NumberingFailureWritesNothing(t *testing.T) {
	store := memory.New()
	guard := product.NewGuard(store.Products())
	ledger := stock.NewService(store.Movements(), store.Products(), guard)
	gen := &corenumerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, corenumerator.Config, *corenumerator.Options, time.Time) (string, error) {
			return "", errors.New("sys_sequences: connection reset")
		},
	}
	service := po.NewService(store.Orders(), ledger, gen, nil, store.Audit())

	p := product.New("A", "A", types.MustMoney("1"))
	require.NoError(t, store.Products().Create(context.Background(), p))

	_, err := service.Create(context.Background(), po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(p, 1, "1")}}, "buyer")
	require.Error(t, err)
	assert.Equal(t, 1, gen.Calls)

	list, err := service.List(context.Background(), po.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestCreate_InvalidOrderIsNotNumbered(t *testing.T) {
	store := memory.New()
	guard := product.NewGuard(store.Products())
	gen := &corenumerator.MockGenerator{}
	service := po.NewService(store.Orders(), stock.NewService(store.Movements(), store.Products(), guard), gen, nil, nil)

	_, err := service.Create(context.Background(), po.CreateInput{SupplierID: id.New()}, "buyer")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
	assert.Zero(t, gen.Calls)
}

func TestCreate_ItemFailureRemovesHeader(t *testing.T) {
	e := newEnv(t)
	e.orders.failInsertOn = 1
	a := e.product(t, "A")

	_, err := e.service.Create(context.Background(), po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
	require.Error(t, err)

	list, err := e.service.List(context.Background(), po.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestCancel_TwiceFailsAndKeepsStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
	require.NoError(t, err)

	cancelled, err := e.service.Cancel(ctx, order.ID, "duplicate order", "buyer")
	require.NoError(t, err)
	assert.Equal(t, po.StatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "Cancelled: duplicate order")

	_, err = e.service.Cancel(ctx, order.ID, "", "buyer")
	assert.True(t, apperror.HasCode(err, apperror.CodeState), "got %v", err)

	stored, err := e.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, po.StatusCancelled, stored.Status)
}

func TestCancel_ReceivedOrderIsStateError(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
	require.NoError(t, err)
	_, err = e.engine.ReceiveGoods(ctx, order.ID, "clerk", nil, receiving.Options{})
	require.NoError(t, err)

	_, err = e.service.Cancel(ctx, order.ID, "", "buyer")
	assert.True(t, apperror.HasCode(err, apperror.CodeState), "got %v", err)
}

func TestUpdate_ReplacesItemsWhilePending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.product(t, "A"), e.product(t, "B")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
	require.NoError(t, err)

	notes := "call before delivery"
	updated, err := e.service.Update(ctx, order.ID, po.UpdateInput{
		Notes:   &notes,
		Items:   []po.ItemInput{item(a, 2, "1"), item(b, 5, "3")},
		Version: order.Version,
	}, "buyer")
	require.NoError(t, err)
	assert.True(t, types.MustMoney("17").Equal(updated.TotalAmount))
	assert.Equal(t, order.Version+1, updated.Version)

	stored, err := e.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, notes, stored.Notes)
	assert.Equal(t, updated.Version, stored.Version)
}

func TestUpdate_StaleVersionIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
	require.NoError(t, err)

	_, err = e.service.Update(ctx, order.ID, po.UpdateInput{Items: []po.ItemInput{item(a, 2, "1")}, Version: order.Version + 5}, "buyer")
	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentModification), "got %v", err)
}

func TestUpdate_RejectedAfterReceipt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 10, "1")}}, "buyer")
	require.NoError(t, err)

	_, err = e.engine.ReceiveGoods(ctx, order.ID, "clerk",
		[]receiving.ReceiveItem{{ProductID: a.ID, Quantity: types.NewQuantity(1)}}, receiving.Options{})
	require.NoError(t, err)

	_, err = e.service.Update(ctx, order.ID, po.UpdateInput{Items: []po.ItemInput{item(a, 20, "1")}}, "buyer")
	assert.True(t, apperror.HasCode(err, apperror.CodeState), "got %v", err)

	stored, err := e.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), stored.Items[0].Quantity)
}

func TestUpdate_FailedInsertRestoresOldItems(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.product(t, "A"), e.product(t, "B")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
	require.NoError(t, err)

	e.orders.failInsertOn = e.orders.insertCalls + 1
	_, err = e.service.Update(ctx, order.ID, po.UpdateInput{Items: []po.ItemInput{item(b, 4, "2")}}, "buyer")
	require.Error(t, err)

	stored, err := e.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, a.ID, stored.Items[0].ProductID)
	assert.Equal(t, order.Items[0].ID, stored.Items[0].ID)
}

func TestUpdate_FailedHeaderRestoresOldItems(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b := e.product(t, "A"), e.product(t, "B")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
	require.NoError(t, err)

	e.orders.failUpdate = true
	_, err = e.service.Update(ctx, order.ID, po.UpdateInput{Items: []po.ItemInput{item(b, 4, "2")}}, "buyer")
	require.Error(t, err)
	assert.Equal(t, 500, apperror.GetHTTPStatus(err))

	stored, err := e.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, a.ID, stored.Items[0].ProductID)
	assert.True(t, order.TotalAmount.Equal(stored.TotalAmount))
}

func TestUpdatePaymentStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
	require.NoError(t, err)

	_, err = e.service.UpdatePaymentStatus(ctx, order.ID, "refunded", "buyer")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	updated, err := e.service.UpdatePaymentStatus(ctx, order.ID, po.PaymentPartial, "buyer")
	require.NoError(t, err)
	assert.Equal(t, po.PaymentPartial, updated.PaymentStatus)

	history, err := e.service.History(ctx, order.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, "payment", string(history[0].Action))

	_, err = e.service.Cancel(ctx, order.ID, "", "buyer")
	require.NoError(t, err)
	_, err = e.service.UpdatePaymentStatus(ctx, order.ID, po.PaymentPaid, "buyer")
	assert.True(t, apperror.HasCode(err, apperror.CodeState))
}

func TestList_FiltersByStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.product(t, "A")
	for i := 0; i < 3; i++ {
		_, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
		require.NoError(t, err)
	}
	list, err := e.service.List(ctx, po.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list.Items, 3)
	_, err = e.service.Cancel(ctx, list.Items[0].ID, "", "buyer")
	require.NoError(t, err)

	cancelled := po.StatusCancelled
	result, err := e.service.List(ctx, po.ListFilter{Status: &cancelled})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.TotalCount)
}

func TestUpdate_ReceiptAfterCheckIsConcurrentModification(t *testing.T) {
	e, checker := newLockedEnv(t, nil)
	ctx := context.Background()
	a, b := e.product(t, "A"), e.product(t, "B")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 10, "1")}}, "buyer")
	require.NoError(t, err)
	e.receiveDuringCheck(checker, order.ID, a, 4)

	_, err = e.service.Update(ctx, order.ID, po.UpdateInput{Items: []po.ItemInput{item(b, 4, "2")}}, "buyer")
	require.NoError(t, checker.err)
	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentModification), "got %v", err)

	stored, err := e.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, a.ID, stored.Items[0].ProductID)

	movements, err := e.store.Movements().ListByReference(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, a.ID, movements[0].ProductID)
}

func TestUpdate_HoldsOrderLockAgainstReceipts(t *testing.T) {
	e, checker := newLockedEnv(t, lock.NewLocal(10*time.Millisecond))
	ctx := context.Background()
	a, b := e.product(t, "A"), e.product(t, "B")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 10, "1")}}, "buyer")
	require.NoError(t, err)
	e.receiveDuringCheck(checker, order.ID, a, 4)

	updated, err := e.service.Update(ctx, order.ID, po.UpdateInput{Items: []po.ItemInput{item(b, 4, "2")}}, "buyer")
	require.NoError(t, err)
	assert.True(t, apperror.IsConflict(checker.err), "got %v", checker.err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, b.ID, updated.Items[0].ProductID)

	movements, err := e.store.Movements().ListByReference(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)

	// the lock is free again once Update returns
	_, err = e.engine.ReceiveGoods(ctx, order.ID, "clerk",
		[]receiving.ReceiveItem{{ProductID: b.ID, Quantity: types.NewQuantity(4)}}, receiving.Options{})
	require.NoError(t, err)
}

func TestCancel_WaitsForOrderLock(t *testing.T) {
	locker := lock.NewLocal(10 * time.Millisecond)
	e, _ := newLockedEnv(t, locker)
	ctx := context.Background()
	a := e.product(t, "A")
	order, err := e.service.Create(ctx, po.CreateInput{SupplierID: id.New(), Items: []po.ItemInput{item(a, 1, "1")}}, "buyer")
	require.NoError(t, err)

	release, err := locker.Obtain(ctx, lock.OrderKey(order.ID.String()))
	require.NoError(t, err)

	_, err = e.service.Cancel(ctx, order.ID, "", "buyer")
	assert.True(t, apperror.IsConflict(err), "got %v", err)
	stored, err := e.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, po.StatusPending, stored.Status)

	require.NoError(t, release(ctx))
	cancelled, err := e.service.Cancel(ctx, order.ID, "", "buyer")
	require.NoError(t, err)
	assert.Equal(t, po.StatusCancelled, cancelled.Status)
}
