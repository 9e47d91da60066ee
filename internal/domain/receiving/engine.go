// Package receiving books goods delivered against a purchase order into stock.
//
// A receive call is a saga of single-statement writes: for every queued item the
// product row is moved through the compare-and-set guard, then a purchase
// movement is appended. Any failure undoes the applied steps in reverse order.
package receiving

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/lock"
	"purchasing/internal/core/saga"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/audit"
	"purchasing/internal/domain/catalogs/product"
	po "purchasing/internal/domain/documents/purchase_order"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
	"purchasing/pkg/logger"
)

var tracer = otel.Tracer("purchasing/receiving")

// ReceiveItem is one explicitly requested receipt line.
// UnitCost and ExpiryDate default to the order line when nil.
type ReceiveItem struct {
	ProductID  id.ID
	Quantity   types.Quantity
	UnitCost   *types.Money
	ExpiryDate *time.Time
}

// Options carries per-call settings.
type Options struct {
	// IdempotencyKey is claimed once per call and stored on every movement.
	// A key already claimed for the order is rejected.
	IdempotencyKey string
}

// Result is what a successful receive produced.
type Result struct {
	Order     *po.PurchaseOrder       `json:"order"`
	Products  []*product.Product      `json:"products"`
	Movements []*entity.StockMovement `json:"movements"`
	Batches   []*batch.Batch          `json:"batches"`

	// FullyReceived is true when this call completed every line
	FullyReceived bool `json:"fullyReceived"`
}

// Engine receives goods.
type Engine struct {
	orders   po.Repository
	products product.Repository
	guard    *product.Guard
	ledger   *stock.Service
	lots     *batch.Recorder
	locker   lock.Locker
	audit    audit.Recorder
}

// NewEngine creates a receiving engine.
func NewEngine(
	orders po.Repository,
	products product.Repository,
	guard *product.Guard,
	ledger *stock.Service,
	lots *batch.Recorder,
	locker lock.Locker,
	auditRecorder audit.Recorder,
) *Engine {
	if locker == nil {
		locker = lock.Noop{}
	}
	return &Engine{
		orders:   orders,
		products: products,
		guard:    guard,
		ledger:   ledger,
		lots:     lots,
		locker:   locker,
		audit:    auditRecorder,
	}
}

// queued is one unit of work after validation.
type queued struct {
	line     po.PurchaseItem
	quantity types.Quantity
	unitCost types.Money
	expiry   *time.Time
}

// ReceiveGoods receives items against orderID. A nil items slice receives every
// line's full remaining quantity.
func (e *Engine) ReceiveGoods(ctx context.Context, orderID id.ID, userID string, items []ReceiveItem, opts Options) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "receiving.ReceiveGoods",
		trace.WithAttributes(
			attribute.String("order.id", orderID.String()),
			attribute.Int("items.requested", len(items)),
			attribute.Bool("receive.full", items == nil),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	release, err := e.locker.Obtain(ctx, lock.OrderKey(orderID.String()))
	if err != nil {
		return nil, err
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			logger.Warn(ctx, "order lock release failed", "order_id", orderID, "error", relErr)
		}
	}()

	order, err := e.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.EnsureReceivable(); err != nil {
		return nil, err
	}
	if len(order.Items) == 0 {
		return nil, apperror.NewNotFound("purchase items", orderID.String())
	}

	if err := e.ledger.CheckIdempotencyKey(ctx, orderID, opts.IdempotencyKey); err != nil {
		return nil, err
	}

	totals, err := e.ledger.OrderTotals(ctx, orderID)
	if err != nil {
		return nil, err
	}
	remaining := make(map[id.ID]types.Quantity, len(order.Items))
	for _, line := range order.Items {
		remaining[line.ProductID] = line.Quantity - totals.Received[line.ProductID]
	}

	queue, err := buildQueue(order, remaining, items)
	if err != nil {
		return nil, err
	}

	res = &Result{
		Products:  make([]*product.Product, 0, len(queue)),
		Movements: make([]*entity.StockMovement, 0, len(queue)),
		Batches:   make([]*batch.Batch, 0, len(queue)),
	}

	sg := saga.New("receiving.receive_goods")
	err = sg.Execute(ctx, saga.Step{
		Name:       "claim idempotency key",
		Action:     func(ctx context.Context) error { return e.ledger.ClaimIdempotencyKey(ctx, orderID, opts.IdempotencyKey, userID) },
		Compensate: func(ctx context.Context) error { return e.ledger.ReleaseIdempotencyKey(ctx, orderID, opts.IdempotencyKey) },
	})
	if err != nil {
		return nil, err
	}

	// Any receipt moves the order version, so a header or item edit prepared
	// against the pre-receipt order fails its version check.
	err = sg.Execute(ctx, saga.Step{
		Name: "touch order",
		Action: func(ctx context.Context) error {
			if err := e.orders.Touch(ctx, orderID, userID); err != nil {
				return apperror.Wrap("touch purchase order", err)
			}
			order.Touch(userID)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	for _, q := range queue {
		if err := e.receiveOne(ctx, sg, order, q, userID, opts, res); err != nil {
			return nil, err
		}
	}

	received := make(map[id.ID]types.Quantity, len(totals.Received))
	for pid, qty := range totals.Received {
		received[pid] = qty
	}
	for _, q := range queue {
		received[q.line.ProductID] += q.quantity
	}
	res.FullyReceived = fullyReceived(order, received)

	if res.FullyReceived && order.IsPending() {
		err := sg.Execute(ctx, saga.Step{
			Name: "mark order received",
			Action: func(ctx context.Context) error {
				ok, err := e.orders.TransitionStatus(ctx, orderID, po.StatusPending, po.StatusReceived, userID)
				if err != nil {
					return apperror.Wrap("update order status", err)
				}
				if ok {
					order.Status = po.StatusReceived
					order.Touch(userID)
				} else {
					logger.Warn(ctx, "order left pending status concurrently", "order_id", orderID)
				}
				return nil
			},
		})
		if err != nil {
			return nil, err
		}
	}
	res.Order = order

	audit.Record(ctx, e.audit, po.EntityType, orderID, audit.ActionReceive, receiveChanges(res, opts))

	logger.Info(ctx, "goods received",
		"order_id", orderID,
		"items", len(queue),
		"fully_received", res.FullyReceived,
		"status", order.Status,
	)
	span.SetAttributes(attribute.Int("items.received", len(queue)))

	return res, nil
}

// receiveOne registers the two steps for one queued item on sg.
func (e *Engine) receiveOne(ctx context.Context, sg *saga.Saga, order *po.PurchaseOrder, q queued, userID string, opts Options, res *Result) error {
	var before, after *product.Product

	err := sg.Execute(ctx, saga.Step{
		Name: "update product " + q.line.ProductID.String(),
		Action: func(ctx context.Context) error {
			current, err := e.products.GetByID(ctx, q.line.ProductID)
			if err != nil {
				return apperror.Wrap("load product", err)
			}
			before = current

			newCost := product.WeightedAverageCost(current.StockQuantity, current.CostPrice, q.quantity, q.unitCost)
			after, err = e.guard.CASUpdate(ctx, current, product.Fields{
				StockQuantity: current.StockQuantity + q.quantity,
				CostPrice:     &newCost,
			})
			return err
		},
		Compensate: func(ctx context.Context) error {
			return e.guard.Restore(ctx, before.ID, before.StockQuantity, before.CostPrice)
		},
	})
	if err != nil {
		return err
	}

	movement := entity.NewStockMovement(q.line.ProductID, entity.MovementPurchase, q.quantity, order.ID, userID)
	movement.IdempotencyKey = opts.IdempotencyKey
	movement.Remarks = fmt.Sprintf("Received against %s", order.Number)

	err = sg.Execute(ctx, saga.Step{
		Name: "insert movement " + movement.ID.String(),
		Action: func(ctx context.Context) error {
			if err := e.ledger.Record(ctx, movement); err != nil {
				return err
			}
			lot := batch.New(q.line.ProductID, order.ID, movement.ID, q.quantity, q.unitCost, q.expiry)
			if e.lots.Record(ctx, lot) {
				res.Batches = append(res.Batches, lot)
			}
			return nil
		},
		Compensate: func(ctx context.Context) error {
			e.lots.Discard(ctx, movement.ID)
			return e.ledger.Discard(ctx, movement.ID)
		},
	})
	if err != nil {
		return err
	}

	res.Products = append(res.Products, after)
	res.Movements = append(res.Movements, movement)
	return nil
}

// loadOrder reads the header and its items.
func (e *Engine) loadOrder(ctx context.Context, orderID id.ID) (*po.PurchaseOrder, error) {
	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.Wrap("load purchase order", err)
	}
	order.Items, err = e.orders.GetItems(ctx, orderID)
	if err != nil {
		return nil, apperror.Wrap("load purchase items", err)
	}
	return order, nil
}

// buildQueue validates the request against remainders before anything is written.
func buildQueue(order *po.PurchaseOrder, remaining map[id.ID]types.Quantity, items []ReceiveItem) ([]queued, error) {
	var queue []queued

	if items == nil {
		for _, line := range order.Items {
			if rem := remaining[line.ProductID]; rem.IsPositive() {
				queue = append(queue, queued{line: line, quantity: rem, unitCost: line.UnitCost, expiry: line.ExpiryDate})
			}
		}
	} else {
		requested := make(map[id.ID]types.Quantity, len(items))
		for i, item := range items {
			line, ok := order.Item(item.ProductID)
			if !ok {
				return nil, apperror.NewValidation(fmt.Sprintf("Product %s not found on purchase order", item.ProductID)).
					WithDetail("index", i).
					WithDetail("product_id", item.ProductID.String())
			}
			if !item.Quantity.IsPositive() {
				return nil, apperror.NewValidation("Receive quantity must be greater than zero").
					WithDetail("index", i).
					WithDetail("product_id", item.ProductID.String())
			}

			requested[item.ProductID] += item.Quantity
			if rem := remaining[item.ProductID]; requested[item.ProductID] > rem {
				return nil, apperror.NewValidation(fmt.Sprintf(
					"Receive quantity %s for product %s exceeds remaining quantity %s",
					requested[item.ProductID], item.ProductID, rem)).
					WithDetail("product_id", item.ProductID.String()).
					WithDetail("requested", requested[item.ProductID].String()).
					WithDetail("remaining", rem.String())
			}

			q := queued{line: line, quantity: item.Quantity, unitCost: line.UnitCost, expiry: line.ExpiryDate}
			if item.UnitCost != nil {
				if item.UnitCost.IsNegative() {
					return nil, apperror.NewValidation("Unit cost must not be negative").
						WithDetail("index", i).
						WithDetail("product_id", item.ProductID.String())
				}
				q.unitCost = *item.UnitCost
			}
			if item.ExpiryDate != nil {
				q.expiry = item.ExpiryDate
			}
			queue = append(queue, q)
		}
	}

	if len(queue) == 0 {
		return nil, apperror.NewState(apperror.CodeAlreadyReceived, "All items on this purchase order have already been received").
			WithDetail("order_id", order.ID.String())
	}
	return queue, nil
}

// fullyReceived reports whether every line is covered by received.
func fullyReceived(order *po.PurchaseOrder, received map[id.ID]types.Quantity) bool {
	for _, line := range order.Items {
		if received[line.ProductID] < line.Quantity {
			return false
		}
	}
	return true
}

func receiveChanges(res *Result, opts Options) map[string]any {
	lines := make([]map[string]any, 0, len(res.Movements))
	for _, m := range res.Movements {
		lines = append(lines, map[string]any{
			"product_id":  m.ProductID.String(),
			"quantity":    m.QuantityChange.String(),
			"movement_id": m.ID.String(),
		})
	}
	changes := map[string]any{
		"lines":          lines,
		"fully_received": res.FullyReceived,
	}
	if opts.IdempotencyKey != "" {
		changes["idempotency_key"] = opts.IdempotencyKey
	}
	return changes
}
