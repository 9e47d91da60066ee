// Package reconcile compares the inventory projection and lot records with the
// stock ledger they are derived from.
package reconcile

import (
	"context"
	"sort"
	"time"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/tx"
	"purchasing/internal/core/types"
	"purchasing/internal/domain/catalogs/product"
	"purchasing/internal/domain/registers/batch"
	"purchasing/internal/domain/registers/stock"
	"purchasing/pkg/logger"
)

// Drift is one product whose stored value disagrees with the ledger.
type Drift struct {
	ProductID id.ID          `json:"productId"`
	Ledger    types.Quantity `json:"ledger"`
	Stored    types.Quantity `json:"stored"`
}

// Difference is Stored minus Ledger.
func (d Drift) Difference() types.Quantity {
	return d.Stored - d.Ledger
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	CheckedAt time.Time `json:"checkedAt"`
	Products  int       `json:"products"`

	// Stock lists products whose stock_quantity is not the ledger sum
	Stock []Drift `json:"stock"`

	// Lots lists products whose lot records do not add up to their purchases.
	// Lots are advisory, so these never indicate a stock error.
	Lots []Drift `json:"lots"`
}

// Clean reports whether no drift was found.
func (r *Report) Clean() bool {
	return len(r.Stock) == 0 && len(r.Lots) == 0
}

// Service builds reconciliation reports.
type Service struct {
	txm      tx.Manager
	products product.Repository
	ledger   stock.Repository
	lots     batch.Repository
}

// NewService creates a reconciliation service. lots may be nil.
func NewService(txm tx.Manager, products product.Repository, ledger stock.Repository, lots batch.Repository) *Service {
	return &Service{
		txm:      txm,
		products: products,
		ledger:   ledger,
		lots:     lots,
	}
}

// Run reads the projection and ledger sums from one snapshot and compares them.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	var (
		levels    map[id.ID]types.Quantity
		sums      map[id.ID]types.Quantity
		purchases map[id.ID]types.Quantity
		lotTotals map[id.ID]types.Quantity
	)

	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if levels, err = s.products.StockLevels(ctx); err != nil {
			return apperror.Wrap("read stock levels", err)
		}
		if sums, err = s.ledger.SumByProduct(ctx); err != nil {
			return apperror.Wrap("sum ledger", err)
		}
		if s.lots == nil {
			return nil
		}
		if purchases, err = s.ledger.SumByProduct(ctx, entity.MovementPurchase); err != nil {
			return apperror.Wrap("sum purchases", err)
		}
		if lotTotals, err = s.lots.SumInitialByProduct(ctx); err != nil {
			return apperror.Wrap("sum lots", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{
		CheckedAt: time.Now().UTC(),
		Products:  len(levels),
		Stock:     compare(sums, levels),
	}
	if s.lots != nil {
		report.Lots = compare(purchases, lotTotals)
	}

	for _, d := range report.Stock {
		logger.Warn(ctx, "stock drift",
			"product_id", d.ProductID,
			"ledger", d.Ledger.String(),
			"stored", d.Stored.String(),
		)
	}
	if len(report.Lots) > 0 {
		logger.Info(ctx, "lot records out of step with ledger", "products", len(report.Lots))
	}
	return report, nil
}

// compare returns every key whose values differ, missing keys counting as zero.
func compare(ledger, stored map[id.ID]types.Quantity) []Drift {
	keys := make(map[id.ID]struct{}, len(ledger)+len(stored))
	for k := range ledger {
		keys[k] = struct{}{}
	}
	for k := range stored {
		keys[k] = struct{}{}
	}

	drifts := make([]Drift, 0)
	for k := range keys {
		if ledger[k] != stored[k] {
			drifts = append(drifts, Drift{ProductID: k, Ledger: ledger[k], Stored: stored[k]})
		}
	}
	sort.Slice(drifts, func(i, j int) bool {
		return drifts[i].ProductID.String() < drifts[j].ProductID.String()
	})
	return drifts
}
