package stock

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumapos/lumapos/internal/shared"
)

type ledgerRow struct {
	companyID int64
	itemID    int64
	qty       decimal.Decimal
	status    shared.DelStatus
}

type bomRow struct {
	companyID int64
	packageID int64
	itemID    int64
	qty       decimal.Decimal
	status    shared.DelStatus
}

// ledgerRepo replays the derivation against in-memory ledgers, applying the
// same Live-only filtering the SQL does.
type ledgerRepo struct {
	purchases []ledgerRow
	sales     []ledgerRow
	usages    []ledgerRow
	damages   []ledgerRow
	bom       []bomRow
	snapshots map[int64]CostSnapshot
}

func newLedgerRepo() *ledgerRepo {
	return &ledgerRepo{snapshots: make(map[int64]CostSnapshot)}
}

func sumRows(rows []ledgerRow, scope shared.TenantScope, itemID int64) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		if row.companyID == scope.CompanyID && row.itemID == itemID && row.status.IsLive() {
			total = total.Add(row.qty)
		}
	}
	return total
}

func (r *ledgerRepo) SumPurchased(_ context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	return sumRows(r.purchases, scope, itemID), nil
}

func (r *ledgerRepo) SumSoldDirect(_ context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	return sumRows(r.sales, scope, itemID), nil
}

func (r *ledgerRepo) PackageSales(_ context.Context, scope shared.TenantScope, itemID int64) ([]PackageSale, error) {
	var sales []PackageSale
	for _, row := range r.bom {
		if row.companyID != scope.CompanyID || row.itemID != itemID || !row.status.IsLive() {
			continue
		}
		sales = append(sales, PackageSale{
			PackageID: row.packageID,
			BOMQty:    row.qty,
			SoldQty:   sumRows(r.sales, scope, row.packageID),
		})
	}
	return sales, nil
}

func (r *ledgerRepo) SumUsed(_ context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	return sumRows(r.usages, scope, itemID), nil
}

func (r *ledgerRepo) SumDamaged(_ context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	return sumRows(r.damages, scope, itemID), nil
}

func (r *ledgerRepo) CostSnapshot(_ context.Context, _ shared.TenantScope, itemID int64) (CostSnapshot, error) {
	snapshot, ok := r.snapshots[itemID]
	if !ok {
		return CostSnapshot{}, shared.ErrNotFound
	}
	return snapshot, nil
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

const (
	shampooID = int64(10)
	comboID   = int64(20)
	comboYID  = int64(21)
)

var scope = shared.TenantScope{CompanyID: 1}

func TestQuantityConservation(t *testing.T) {
	repo := newLedgerRepo()
	repo.purchases = append(repo.purchases,
		ledgerRow{1, shampooID, dec(100), shared.StatusLive},
		ledgerRow{1, shampooID, dec(40), shared.StatusLive},
	)
	repo.sales = append(repo.sales, ledgerRow{1, shampooID, dec(25), shared.StatusLive})
	repo.usages = append(repo.usages, ledgerRow{1, shampooID, dec(7), shared.StatusLive})
	repo.damages = append(repo.damages, ledgerRow{1, shampooID, dec(3), shared.StatusLive})

	svc := NewService(repo, nil)
	qty, err := svc.Quantity(context.Background(), scope, shampooID)
	require.NoError(t, err)
	require.True(t, qty.Equal(dec(105)), "got %s", qty)
}

func TestQuantityEndToEndScenario(t *testing.T) {
	// Shampoo: 2 purchases of 100, 30 sold directly, 5 combos sold each
	// bundling 2 units, 10 damaged. 200 - 30 - 10 - 0 - 10 = 150.
	repo := newLedgerRepo()
	repo.purchases = append(repo.purchases,
		ledgerRow{1, shampooID, dec(100), shared.StatusLive},
		ledgerRow{1, shampooID, dec(100), shared.StatusLive},
	)
	repo.sales = append(repo.sales,
		ledgerRow{1, shampooID, dec(30), shared.StatusLive},
		ledgerRow{1, comboID, dec(5), shared.StatusLive},
	)
	repo.bom = append(repo.bom, bomRow{1, comboID, shampooID, dec(2), shared.StatusLive})
	repo.damages = append(repo.damages, ledgerRow{1, shampooID, dec(10), shared.StatusLive})

	svc := NewService(repo, nil)
	breakdown, err := svc.Breakdown(context.Background(), scope, shampooID)
	require.NoError(t, err)
	require.True(t, breakdown.Purchased.Equal(dec(200)))
	require.True(t, breakdown.DirectSold.Equal(dec(30)))
	require.True(t, breakdown.PackageSold.Equal(dec(10)))
	require.True(t, breakdown.Damaged.Equal(dec(10)))
	require.True(t, breakdown.OnHand.Equal(dec(150)))
}

func TestPackageMultipliersDoNotCrossContaminate(t *testing.T) {
	// Combo X bundles 3 shampoo, sold once; Combo Y bundles 2, sold once.
	// Attribution must be 1*3 + 1*2 = 5, never (3+2) * total sales.
	repo := newLedgerRepo()
	repo.purchases = append(repo.purchases, ledgerRow{1, shampooID, dec(50), shared.StatusLive})
	repo.bom = append(repo.bom,
		bomRow{1, comboID, shampooID, dec(3), shared.StatusLive},
		bomRow{1, comboYID, shampooID, dec(2), shared.StatusLive},
	)
	repo.sales = append(repo.sales,
		ledgerRow{1, comboID, dec(1), shared.StatusLive},
		ledgerRow{1, comboYID, dec(1), shared.StatusLive},
	)

	svc := NewService(repo, nil)
	breakdown, err := svc.Breakdown(context.Background(), scope, shampooID)
	require.NoError(t, err)
	require.True(t, breakdown.PackageSold.Equal(dec(5)), "got %s", breakdown.PackageSold)
	require.True(t, breakdown.OnHand.Equal(dec(45)))
}

func TestSoftDeletedRowsContributeNothing(t *testing.T) {
	repo := newLedgerRepo()
	repo.purchases = append(repo.purchases, ledgerRow{1, shampooID, dec(100), shared.StatusLive})
	repo.sales = append(repo.sales, ledgerRow{1, shampooID, dec(40), shared.StatusLive})

	svc := NewService(repo, nil)
	ctx := context.Background()

	before, err := svc.Quantity(ctx, scope, shampooID)
	require.NoError(t, err)
	require.True(t, before.Equal(dec(60)))

	repo.sales[0].status = shared.StatusDeleted
	afterDelete, err := svc.Quantity(ctx, scope, shampooID)
	require.NoError(t, err)
	require.True(t, afterDelete.Equal(dec(100)))

	repo.sales[0].status = shared.StatusLive
	restored, err := svc.Quantity(ctx, scope, shampooID)
	require.NoError(t, err)
	require.True(t, restored.Equal(before))
}

func TestNegativeStockIsNotClamped(t *testing.T) {
	repo := newLedgerRepo()
	repo.purchases = append(repo.purchases, ledgerRow{1, shampooID, dec(5), shared.StatusLive})
	repo.sales = append(repo.sales, ledgerRow{1, shampooID, dec(8), shared.StatusLive})

	svc := NewService(repo, nil)
	breakdown, err := svc.Breakdown(context.Background(), scope, shampooID)
	require.NoError(t, err)
	require.True(t, breakdown.OnHand.Equal(dec(-3)), "raw value keeps the oversell signal")
	require.True(t, breakdown.DisplayQuantity().Equal(decimal.Zero), "display variant clamps")
}

func TestTenantIsolation(t *testing.T) {
	repo := newLedgerRepo()
	repo.purchases = append(repo.purchases,
		ledgerRow{1, shampooID, dec(10), shared.StatusLive},
		ledgerRow{2, shampooID, dec(99), shared.StatusLive},
	)

	svc := NewService(repo, nil)
	qty, err := svc.Quantity(context.Background(), scope, shampooID)
	require.NoError(t, err)
	require.True(t, qty.Equal(dec(10)))
}

func TestValuePolicies(t *testing.T) {
	repo := newLedgerRepo()
	repo.purchases = append(repo.purchases, ledgerRow{1, shampooID, dec(12), shared.StatusLive})
	repo.snapshots[shampooID] = CostSnapshot{
		LastPurchasePrice:    decimal.NewFromInt(5),
		LastThreePurchaseAvg: decimal.RequireFromString("4.5"),
	}

	svc := NewService(repo, nil)
	ctx := context.Background()

	last, err := svc.Value(ctx, scope, shampooID, CostPolicyLastPurchase)
	require.NoError(t, err)
	require.True(t, last.Equal(dec(60)))

	avg, err := svc.Value(ctx, scope, shampooID, CostPolicyLastThreeAverage)
	require.NoError(t, err)
	require.True(t, avg.Equal(decimal.RequireFromString("54")))

	_, err = svc.Value(ctx, scope, shampooID, CostPolicy("fifo"))
	require.ErrorIs(t, err, ErrUnknownPolicy)
}
