package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/shared"
	"github.com/lumapos/lumapos/internal/stock"
)

type catalogStub struct {
	items []catalog.Item
}

func (c *catalogStub) List(_ context.Context, _ shared.TenantScope, filters catalog.ListFilters) ([]catalog.Item, shared.Pagination, error) {
	var out []catalog.Item
	for _, item := range c.items {
		if filters.Type != "" && item.Type != filters.Type {
			continue
		}
		out = append(out, item)
	}
	return out, shared.Pagination{}, nil
}

type stockStub struct {
	quantities map[int64]decimal.Decimal
}

func (s *stockStub) Quantity(_ context.Context, _ shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	return s.quantities[itemID], nil
}

type ledgerStub struct {
	revenue decimal.Decimal
	cost    decimal.Decimal
	loss    decimal.Decimal
}

func (l *ledgerStub) Revenue(_ context.Context, _ shared.TenantScope, _, _ time.Time) (decimal.Decimal, error) {
	return l.revenue, nil
}

func (l *ledgerStub) PurchaseCost(_ context.Context, _ shared.TenantScope, _, _ time.Time) (decimal.Decimal, error) {
	return l.cost, nil
}

func (l *ledgerStub) DamageLoss(_ context.Context, _ shared.TenantScope, _, _ time.Time) (decimal.Decimal, error) {
	return l.loss, nil
}

var scope = shared.TenantScope{CompanyID: 1}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func fixture() *Service {
	cat := &catalogStub{items: []catalog.Item{
		{ID: 1, Code: "SHMP", Name: "Shampoo", Type: catalog.ItemTypeProduct,
			LastPurchasePrice: dec(10), LastThreePurchaseAvg: dec(12), LowStockThreshold: dec(5)},
		{ID: 2, Code: "OIL", Name: "Hair Oil", Type: catalog.ItemTypeProduct,
			LastPurchasePrice: dec(20), LastThreePurchaseAvg: dec(18), LowStockThreshold: dec(3)},
		{ID: 3, Code: "CUT", Name: "Haircut", Type: catalog.ItemTypeService},
	}}
	st := &stockStub{quantities: map[int64]decimal.Decimal{
		1: dec(4),
		2: dec(-2),
	}}
	ledger := &ledgerStub{revenue: dec(500), cost: dec(300), loss: dec(50)}
	return NewService(cat, st, ledger)
}

func TestStockReportValuesAndClampsDisplayOnly(t *testing.T) {
	svc := fixture()

	rows, err := svc.StockReport(context.Background(), scope, stock.CostPolicyLastPurchase, catalog.ListFilters{})
	require.NoError(t, err)
	require.Len(t, rows, 2) // services are excluded

	byID := map[int64]StockRow{}
	for _, row := range rows {
		byID[row.ItemID] = row
	}
	require.True(t, byID[1].Quantity.Equal(dec(4)))
	require.True(t, byID[1].Value.Equal(dec(40)))
	require.True(t, byID[1].LowStock)

	// raw quantity stays negative, only the display copy is clamped
	require.True(t, byID[2].Quantity.Equal(dec(-2)))
	require.True(t, byID[2].DisplayQty.IsZero())
	require.True(t, byID[2].Value.Equal(dec(-40)))
}

func TestStockReportAveragePolicy(t *testing.T) {
	svc := fixture()

	rows, err := svc.StockReport(context.Background(), scope, stock.CostPolicyLastThreeAverage, catalog.ListFilters{})
	require.NoError(t, err)

	byID := map[int64]StockRow{}
	for _, row := range rows {
		byID[row.ItemID] = row
	}
	require.True(t, byID[1].Value.Equal(dec(48)))
}

func TestStockReportRejectsUnknownPolicy(t *testing.T) {
	svc := fixture()

	_, err := svc.StockReport(context.Background(), scope, stock.CostPolicy("fifo"), catalog.ListFilters{})
	require.ErrorIs(t, err, stock.ErrUnknownPolicy)
}

func TestLowStockAlertsCompareRawQuantity(t *testing.T) {
	svc := fixture()

	alerts, err := svc.LowStockAlerts(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Equal(t, int64(1), alerts[0].ItemID)
	require.True(t, alerts[0].Quantity.Equal(dec(4)))
	require.Equal(t, int64(2), alerts[1].ItemID)
	require.True(t, alerts[1].Quantity.Equal(dec(-2)))
}

func TestProfitLossNet(t *testing.T) {
	svc := fixture()

	report, err := svc.ProfitLoss(context.Background(), scope,
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, report.Net.Equal(dec(150)))
}

type pagingCatalogStub struct {
	items []catalog.Item
}

func (c *pagingCatalogStub) List(_ context.Context, _ shared.TenantScope, filters catalog.ListFilters) ([]catalog.Item, shared.Pagination, error) {
	start := (filters.Page - 1) * filters.Limit
	if start < 0 || start >= len(c.items) {
		return nil, shared.NewPagination(filters.Page, filters.Limit, len(c.items)), nil
	}
	end := start + filters.Limit
	if end > len(c.items) {
		end = len(c.items)
	}
	return c.items[start:end], shared.NewPagination(filters.Page, filters.Limit, len(c.items)), nil
}

func TestLowStockAlertsWalkEveryCatalogPage(t *testing.T) {
	total := scanPageSize + 1
	items := make([]catalog.Item, 0, total)
	quantities := make(map[int64]decimal.Decimal, total)
	for i := 0; i < total; i++ {
		id := int64(i + 1)
		items = append(items, catalog.Item{ID: id, Type: catalog.ItemTypeProduct, LowStockThreshold: dec(1)})
		quantities[id] = decimal.Zero
	}

	svc := NewService(&pagingCatalogStub{items: items}, &stockStub{quantities: quantities}, &ledgerStub{})

	alerts, err := svc.LowStockAlerts(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, alerts, total)
	// the item beyond the first page is present
	require.Equal(t, int64(total), alerts[total-1].ItemID)
}
