package returns

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
	"purchasing/internal/domain/registers/stock"
	"purchasing/pkg/logger"
)

var tracer = otel.Tracer("purchasing/returns")

// ReturnItem is one requested return line.
type ReturnItem struct {
	ProductID id.ID
	Quantity  types.Quantity
	Reason    string
}

// Options carries per-call settings.
type Options struct {
	IdempotencyKey string
}

// Result is what a successful return produced.
type Result struct {
	Order     *po.PurchaseOrder       `json:"order"`
	Products  []*product.Product      `json:"products"`
	Movements []*entity.StockMovement `json:"movements"`
	Events    []*Event                `json:"events"`

	// ReturnTotal is valued at the order-time unit cost of each line
	ReturnTotal types.Money `json:"returnTotal"`
}

// Engine returns goods to suppliers.
type Engine struct {
	orders   po.Repository
	products product.Repository
	guard    *product.Guard
	ledger   *stock.Service
	events   EventRepository
	locker   lock.Locker
	audit    audit.Recorder
}

// NewEngine creates a return engine.
func NewEngine(
	orders po.Repository,
	products product.Repository,
	guard *product.Guard,
	ledger *stock.Service,
	events EventRepository,
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
		events:   events,
		locker:   locker,
		audit:    auditRecorder,
	}
}

type queued struct {
	line     po.PurchaseItem
	quantity types.Quantity
	reason   string
}

// ReturnGoodsToSupplier decrements stock for goods sent back on orderID.
//
// Any order that is not cancelled accepts returns, including a pending order
// that has been received only in part. Only what was received and not yet
// returned can go back.
func (e *Engine) ReturnGoodsToSupplier(ctx context.Context, orderID id.ID, items []ReturnItem, userID string, opts Options) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "returns.ReturnGoodsToSupplier",
		trace.WithAttributes(
			attribute.String("order.id", orderID.String()),
			attribute.Int("items.requested", len(items)),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if len(items) == 0 {
		return nil, apperror.NewValidation("At least one item is required").WithDetail("field", "items")
	}

	release, err := e.locker.Obtain(ctx, lock.OrderKey(orderID.String()))
	if err != nil {
		return nil, err
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			logger.Warn(ctx, "order lock release failed", "order_id", orderID, "error", relErr)
		}
	}()

	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.Wrap("load purchase order", err)
	}
	if order.Status == po.StatusCancelled {
		return nil, apperror.NewState("", "Cannot return goods from a cancelled purchase order").
			WithDetail("order_id", orderID.String())
	}
	if order.Items, err = e.orders.GetItems(ctx, orderID); err != nil {
		return nil, apperror.Wrap("load purchase items", err)
	}

	if err := e.ledger.CheckIdempotencyKey(ctx, orderID, opts.IdempotencyKey); err != nil {
		return nil, err
	}

	totals, err := e.ledger.OrderTotals(ctx, orderID)
	if err != nil {
		return nil, err
	}

	queue, err := buildQueue(order, totals, items)
	if err != nil {
		return nil, err
	}

	res = &Result{
		Products:    make([]*product.Product, 0, len(queue)),
		Movements:   make([]*entity.StockMovement, 0, len(queue)),
		Events:      make([]*Event, 0, len(queue)),
		ReturnTotal: types.Zero(),
	}

	sg := saga.New("returns.return_goods")
	err = sg.Execute(ctx, saga.Step{
		Name:       "claim idempotency key",
		Action:     func(ctx context.Context) error { return e.ledger.ClaimIdempotencyKey(ctx, orderID, opts.IdempotencyKey, userID) },
		Compensate: func(ctx context.Context) error { return e.ledger.ReleaseIdempotencyKey(ctx, orderID, opts.IdempotencyKey) },
	})
	if err != nil {
		return nil, err
	}

	for _, q := range queue {
		if err := e.returnOne(ctx, sg, order, q, userID, opts, res); err != nil {
			return nil, err
		}
	}
	for _, ev := range res.Events {
		res.ReturnTotal = res.ReturnTotal.Add(ev.Amount)
	}

	e.annotateOrder(ctx, order, res, userID)
	res.Order = order

	audit.Record(ctx, e.audit, po.EntityType, orderID, audit.ActionReturn, returnChanges(res, opts))

	logger.Info(ctx, "goods returned to supplier",
		"order_id", orderID,
		"items", len(queue),
		"return_total", res.ReturnTotal.String(),
	)
	span.SetAttributes(attribute.String("return.total", res.ReturnTotal.String()))

	return res, nil
}

// returnOne registers the steps for one queued line on sg.
func (e *Engine) returnOne(ctx context.Context, sg *saga.Saga, order *po.PurchaseOrder, q queued, userID string, opts Options, res *Result) error {
	var before, after *product.Product

	err := sg.Execute(ctx, saga.Step{
		Name: "update product " + q.line.ProductID.String(),
		Action: func(ctx context.Context) error {
			current, err := e.products.GetByID(ctx, q.line.ProductID)
			if err != nil {
				return apperror.Wrap("load product", err)
			}
			before = current

			newStock := current.StockQuantity - q.quantity
			if newStock.IsNegative() {
				return apperror.NewInsufficientStock(current.ID.String(),
					q.quantity.String(), current.StockQuantity.String()).
					WithDetail("product", current.Label())
			}
			after, err = e.guard.CASUpdate(ctx, current, product.Fields{StockQuantity: newStock})
			return err
		},
		Compensate: func(ctx context.Context) error {
			return e.guard.Restore(ctx, before.ID, before.StockQuantity, before.CostPrice)
		},
	})
	if err != nil {
		return err
	}

	movement := entity.NewStockMovement(q.line.ProductID, entity.MovementReturn, q.quantity.Neg(), order.ID, userID)
	movement.Remarks = q.reason
	movement.IdempotencyKey = opts.IdempotencyKey

	err = sg.Execute(ctx, saga.Step{
		Name:       "insert movement " + movement.ID.String(),
		Action:     func(ctx context.Context) error { return e.ledger.Record(ctx, movement) },
		Compensate: func(ctx context.Context) error { return e.ledger.Discard(ctx, movement.ID) },
	})
	if err != nil {
		return err
	}

	ev := &Event{
		ID:             id.New(),
		OrderID:        order.ID,
		ProductID:      q.line.ProductID,
		MovementID:     movement.ID,
		Quantity:       q.quantity,
		UnitCost:       q.line.UnitCost,
		Amount:         q.quantity.Mul(q.line.UnitCost).Round(4),
		Reason:         q.reason,
		IdempotencyKey: opts.IdempotencyKey,
		CreatedBy:      userID,
		CreatedAt:      movement.CreatedAt,
	}
	err = sg.Execute(ctx, saga.Step{
		Name: "insert return event " + ev.ID.String(),
		Action: func(ctx context.Context) error {
			if err := e.events.Append(ctx, ev); err != nil {
				return apperror.Wrap("insert return event", err)
			}
			return nil
		},
		Compensate: func(ctx context.Context) error { return e.events.Delete(ctx, ev.ID) },
	})
	if err != nil {
		return err
	}

	res.Products = append(res.Products, after)
	res.Movements = append(res.Movements, movement)
	res.Events = append(res.Events, ev)
	return nil
}

// annotateOrder appends the human-readable note and bumps return_total.
// The ledger and return events are authoritative, so failures here are only logged.
func (e *Engine) annotateOrder(ctx context.Context, order *po.PurchaseOrder, res *Result, userID string) {
	lines := make([]string, 0, len(res.Events))
	for _, ev := range res.Events {
		line := fmt.Sprintf("%s x %s", ev.ProductID, ev.Quantity)
		if ev.Reason != "" {
			line += " (" + ev.Reason + ")"
		}
		lines = append(lines, line)
	}
	note := po.ReturnNote(time.Now(), userID, lines, res.ReturnTotal)

	if err := e.orders.AppendNote(ctx, order.ID, note); err != nil {
		logger.Warn(ctx, "return note not written", "order_id", order.ID, "error", err)
	} else {
		order.Notes = po.AppendNote(order.Notes, note)
	}

	acc, ok := e.orders.(po.ReturnTotalAccumulator)
	if !ok {
		return
	}
	if err := acc.AddReturnTotal(ctx, order.ID, res.ReturnTotal); err != nil {
		logger.Warn(ctx, "return total not updated", "order_id", order.ID, "error", err)
		return
	}
	order.ReturnTotal = order.ReturnTotal.Add(res.ReturnTotal)
}

// Events lists the return events of an order, oldest first.
func (e *Engine) Events(ctx context.Context, orderID id.ID) ([]Event, error) {
	if _, err := e.orders.GetByID(ctx, orderID); err != nil {
		return nil, apperror.Wrap("load purchase order", err)
	}
	events, err := e.events.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Wrap("list return events", err)
	}
	return events, nil
}

func buildQueue(order *po.PurchaseOrder, totals stock.OrderTotals, items []ReturnItem) ([]queued, error) {
	queue := make([]queued, 0, len(items))
	requested := make(map[id.ID]types.Quantity, len(items))

	for i, item := range items {
		line, ok := order.Item(item.ProductID)
		if !ok {
			return nil, apperror.NewValidation(fmt.Sprintf("Product %s not found on purchase order", item.ProductID)).
				WithDetail("index", i).
				WithDetail("product_id", item.ProductID.String())
		}
		if !item.Quantity.IsPositive() {
			return nil, apperror.NewValidation("Return quantity must be greater than zero").
				WithDetail("index", i).
				WithDetail("product_id", item.ProductID.String())
		}

		requested[item.ProductID] += item.Quantity
		returnable := totals.Returnable(item.ProductID)
		if requested[item.ProductID] > returnable {
			return nil, apperror.NewValidation(fmt.Sprintf(
				"Return quantity %s for product %s exceeds returnable quantity %s",
				requested[item.ProductID], item.ProductID, returnable)).
				WithDetail("product_id", item.ProductID.String()).
				WithDetail("requested", requested[item.ProductID].String()).
				WithDetail("received", totals.Received[item.ProductID].String()).
				WithDetail("returned", totals.Returned[item.ProductID].String()).
				WithDetail("returnable", returnable.String())
		}

		queue = append(queue, queued{line: line, quantity: item.Quantity, reason: item.Reason})
	}
	return queue, nil
}

func returnChanges(res *Result, opts Options) map[string]any {
	lines := make([]map[string]any, 0, len(res.Events))
	for _, ev := range res.Events {
		lines = append(lines, map[string]any{
			"product_id": ev.ProductID.String(),
			"quantity":   ev.Quantity.String(),
			"amount":     ev.Amount.String(),
			"reason":     ev.Reason,
		})
	}
	changes := map[string]any{
		"lines":        lines,
		"return_total": res.ReturnTotal.String(),
	}
	if opts.IdempotencyKey != "" {
		changes["idempotency_key"] = opts.IdempotencyKey
	}
	return changes
}
