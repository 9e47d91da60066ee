// Package memory provides an in-process record store behind the same
// repository interfaces as the Postgres implementation.
//
// Every method is one critical section, mirroring a single SQL statement, so
// the engines see the same atomicity guarantees they get from Postgres.
package memory

import (
	"context"
	"sync"

	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/domain/audit"
	"purchasing/internal/domain/catalogs/product"
	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/returns"
)

// Store holds all tables.
type Store struct {
	mu sync.RWMutex

	products  map[id.ID]product.Product
	orders    map[id.ID]po.PurchaseOrder
	items     map[id.ID][]po.PurchaseItem
	movements []entity.StockMovement
	batches   []batch.Batch
	events    []returns.Event
	audit     []audit.Entry
	claims    map[id.ID]map[string]struct{}
}

// New creates an empty store.
func New() *Store {
	return &Store{
		products: make(map[id.ID]product.Product),
		orders:   make(map[id.ID]po.PurchaseOrder),
		items:    make(map[id.ID][]po.PurchaseItem),
		claims:   make(map[id.ID]map[string]struct{}),
	}
}

// Products returns the product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

// Orders returns the purchase order repository.
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

// Movements returns the stock ledger repository.
func (s *Store) Movements() *MovementRepo { return &MovementRepo{s: s} }

// Batches returns the lot repository.
func (s *Store) Batches() *BatchRepo { return &BatchRepo{s: s} }

// ReturnEvents returns the return event repository.
func (s *Store) ReturnEvents() *ReturnEventRepo { return &ReturnEventRepo{s: s} }

// Audit returns the audit recorder.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

// ReadOnly implements tx.Manager. Reads inside fn each take the lock on their own,
// so the snapshot is per statement rather than per call.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Ping implements the readiness probe.
func (s *Store) Ping(context.Context) error { return nil }
