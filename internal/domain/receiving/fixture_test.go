package receiving

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/catalogs/product"
	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
	"purchasing/internal/infrastructure/numerator"
	"purchasing/internal/infrastructure/storage/memory"
)

type fixture struct {
	store    *memory.Store
	products product.Repository
	ledger   stock.Repository
	lots     batch.Repository
	orders   *po.Service
	engine   *Engine
}

type fixtureOption func(f *fixture)

func withProducts(wrap func(product.Repository) product.Repository) fixtureOption {
	return func(f *fixture) { f.products = wrap(f.products) }
}

func withLedger(wrap func(stock.Repository) stock.Repository) fixtureOption {
	return func(f *fixture) { f.ledger = wrap(f.ledger) }
}

func withLots(repo batch.Repository) fixtureOption {
	return func(f *fixture) { f.lots = repo }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store := memory.New()
	f := &fixture{
		store:    store,
		products: store.Products(),
		ledger:   store.Movements(),
		lots:     store.Batches(),
	}
	for _, opt := range opts {
		opt(f)
	}

	guard := product.NewGuard(f.products)
	ledger := stock.NewService(f.ledger, f.products, guard)
	f.orders = po.NewService(store.Orders(), ledger, numerator.NewMemory(), nil, store.Audit())
	f.engine = NewEngine(store.Orders(), f.products, guard, ledger, batch.NewRecorder(f.lots), nil, store.Audit())
	return f
}

func (f *fixture) addProduct(t *testing.T, sku string, stockQty int64, cost string) *product.Product {
	t.Helper()
	p := product.New(sku, "Product "+sku, types.MustMoney(cost))
	p.StockQuantity = types.NewQuantity(stockQty)
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func (f *fixture) addOrder(t *testing.T, lines ...po.ItemInput) *po.PurchaseOrder {
	t.Helper()
	order, err := f.orders.Create(context.Background(), po.CreateInput{
		SupplierID: id.New(),
		Items:      lines,
	}, "buyer")
	require.NoError(t, err)
	return order
}

func (f *fixture) product(t *testing.T, productID id.ID) *product.Product {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p
}

func (f *fixture) order(t *testing.T, orderID id.ID) *po.PurchaseOrder {
	t.Helper()
	o, err := f.orders.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	return o
}

func (f *fixture) movements(t *testing.T, orderID id.ID) []entity.StockMovement {
	t.Helper()
	ms, err := f.store.Movements().ListByReference(context.Background(), orderID)
	require.NoError(t, err)
	return ms
}

func line(p *product.Product, qty int64, cost string) po.ItemInput {
	return po.ItemInput{ProductID: p.ID, Quantity: types.NewQuantity(qty), UnitCost: types.MustMoney(cost)}
}

func qty(units int64) types.Quantity { return types.NewQuantity(units) }

func money(s string) *types.Money {
	m := types.MustMoney(s)
	return &m
}

// faultyLedger fails the n-th Append and optionally every Delete.
type faultyLedger struct {
	stock.Repository

	mu        sync.Mutex
	failOn    int
	appends   int
	deleteErr error
}

func (l *faultyLedger) Append(ctx context.Context, m *entity.StockMovement) error {
	l.mu.Lock()
	l.appends++
	n := l.appends
	l.mu.Unlock()
	if n == l.failOn {
		return errors.New("insert stock_movements: connection reset by peer")
	}
	return l.Repository.Append(ctx, m)
}

func (l *faultyLedger) Delete(ctx context.Context, movementID id.ID) error {
	if l.deleteErr != nil {
		return l.deleteErr
	}
	return l.Repository.Delete(ctx, movementID)
}

// faultyProducts fails Restore for one product.
type faultyProducts struct {
	product.Repository
	failRestoreFor id.ID
}

func (p *faultyProducts) Restore(ctx context.Context, productID id.ID, stockQty types.Quantity, cost types.Money) error {
	if productID == p.failRestoreFor {
		return errors.New("update products: i/o timeout")
	}
	return p.Repository.Restore(ctx, productID, stockQty, cost)
}

// rendezvousProducts holds every GetByID until all expected readers have read,
// so concurrent callers observe the same snapshot.
type rendezvousProducts struct {
	product.Repository
	arrived sync.WaitGroup
}

func newRendezvous(repo product.Repository, readers int) *rendezvousProducts {
	r := &rendezvousProducts{Repository: repo}
	r.arrived.Add(readers)
	return r
}

func (r *rendezvousProducts) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, err := r.Repository.GetByID(ctx, productID)
	r.arrived.Done()
	r.arrived.Wait()
	return p, err
}

// brokenLots rejects every lot write.
type brokenLots struct {
	batch.Repository
}

func (brokenLots) Create(context.Context, *batch.Batch) error {
	return errors.New(`relation "product_batches" does not exist`)
}

func expiry(days int) *time.Time {
	t := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	return &t
}
