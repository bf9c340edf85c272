package reports

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/shared"
	"github.com/lumapos/lumapos/internal/stock"
)

// stockConcurrency bounds parallel stock derivations per report.
const stockConcurrency = 8

// scanPageSize is the catalog page size used by full-catalog scans.
const scanPageSize = 500

// CatalogPort lists products for stock reporting.
type CatalogPort interface {
	List(ctx context.Context, scope shared.TenantScope, filters catalog.ListFilters) ([]catalog.Item, shared.Pagination, error)
}

// StockPort derives quantities on demand.
type StockPort interface {
	Quantity(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error)
}

// LedgerPort aggregates period sums for the profit and loss view.
type LedgerPort interface {
	Revenue(ctx context.Context, scope shared.TenantScope, from, to time.Time) (decimal.Decimal, error)
	PurchaseCost(ctx context.Context, scope shared.TenantScope, from, to time.Time) (decimal.Decimal, error)
	DamageLoss(ctx context.Context, scope shared.TenantScope, from, to time.Time) (decimal.Decimal, error)
}

// Service produces read-only reporting projections.
type Service struct {
	catalog CatalogPort
	stock   StockPort
	ledger  LedgerPort
}

// NewService builds Service.
func NewService(catalogPort CatalogPort, stockPort StockPort, ledger LedgerPort) *Service {
	return &Service{catalog: catalogPort, stock: stockPort, ledger: ledger}
}

// StockReport derives quantity and value for every live product. Rows
// keep the raw derived quantity alongside a zero-clamped display copy.
func (s *Service) StockReport(ctx context.Context, scope shared.TenantScope, policy stock.CostPolicy, filters catalog.ListFilters) ([]StockRow, error) {
	filters.Type = catalog.ItemTypeProduct
	items, _, err := s.catalog.List(ctx, scope, filters)
	if err != nil {
		return nil, err
	}

	rows := make([]StockRow, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(stockConcurrency)
	for i, item := range items {
		g.Go(func() error {
			qty, err := s.stock.Quantity(ctx, scope, item.ID)
			if err != nil {
				return err
			}
			unitCost, err := unitCost(item, policy)
			if err != nil {
				return err
			}
			display := qty
			if display.IsNegative() {
				display = decimal.Zero
			}
			rows[i] = StockRow{
				ItemID:        item.ID,
				Code:          item.Code,
				Name:          item.Name,
				Quantity:      qty,
				DisplayQty:    display,
				UnitCost:      unitCost,
				Value:         qty.Mul(unitCost),
				LowStock:      item.LowStockThreshold.IsPositive() && qty.LessThanOrEqual(item.LowStockThreshold),
				LowStockLevel: item.LowStockThreshold,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// LowStockAlerts returns products at or below their threshold. The raw
// quantity is compared, so oversold items alert with negative numbers.
func (s *Service) LowStockAlerts(ctx context.Context, scope shared.TenantScope) ([]LowStockAlert, error) {
	items, err := s.allProducts(ctx, scope)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var alerts []LowStockAlert
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(stockConcurrency)
	for _, item := range items {
		if !item.LowStockThreshold.IsPositive() {
			continue
		}
		g.Go(func() error {
			qty, err := s.stock.Quantity(ctx, scope, item.ID)
			if err != nil {
				return err
			}
			if qty.GreaterThan(item.LowStockThreshold) {
				return nil
			}
			mu.Lock()
			alerts = append(alerts, LowStockAlert{
				ItemID:    item.ID,
				Code:      item.Code,
				Name:      item.Name,
				Quantity:  qty,
				Threshold: item.LowStockThreshold,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ItemID < alerts[j].ItemID })
	return alerts, nil
}

// allProducts walks every catalog page so tenants with large catalogs
// are scanned completely, not just the first page.
func (s *Service) allProducts(ctx context.Context, scope shared.TenantScope) ([]catalog.Item, error) {
	var all []catalog.Item
	for page := 1; ; page++ {
		items, _, err := s.catalog.List(ctx, scope, catalog.ListFilters{
			Type:  catalog.ItemTypeProduct,
			Page:  page,
			Limit: scanPageSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < scanPageSize {
			return all, nil
		}
	}
}

// ProfitLoss aggregates the three period sums concurrently.
func (s *Service) ProfitLoss(ctx context.Context, scope shared.TenantScope, from, to time.Time) (ProfitLoss, error) {
	report := ProfitLoss{From: from, To: to}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		report.Revenue, err = s.ledger.Revenue(ctx, scope, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		report.Cost, err = s.ledger.PurchaseCost(ctx, scope, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		report.DamageLoss, err = s.ledger.DamageLoss(ctx, scope, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return ProfitLoss{}, err
	}
	report.Net = report.Revenue.Sub(report.Cost).Sub(report.DamageLoss)
	return report, nil
}

func unitCost(item catalog.Item, policy stock.CostPolicy) (decimal.Decimal, error) {
	switch policy {
	case stock.CostPolicyLastPurchase, "":
		return item.LastPurchasePrice, nil
	case stock.CostPolicyLastThreeAverage:
		return item.LastThreePurchaseAvg, nil
	default:
		return decimal.Zero, stock.ErrUnknownPolicy
	}
}
