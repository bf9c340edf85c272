package productusage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/shared"
)

type memoryRepo struct {
	usages  []ProductUsage
	details []ProductUsageDetail
	nextID  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(_ context.Context, _ shared.TenantScope, id int64) (ProductUsage, []ProductUsageDetail, error) {
	for _, u := range r.usages {
		if u.ID == id && u.DelStatus.IsLive() {
			var details []ProductUsageDetail
			for _, d := range r.details {
				if d.ProductUsageID == id && d.DelStatus.IsLive() {
					details = append(details, d)
				}
			}
			return u, details, nil
		}
	}
	return ProductUsage{}, nil, shared.ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, _ shared.TenantScope, _, _ int) ([]ProductUsage, error) {
	return r.usages, nil
}

func (tx *memoryTx) InsertUsage(_ context.Context, scope shared.TenantScope, usage ProductUsage) (int64, error) {
	tx.repo.nextID++
	usage.ID = tx.repo.nextID
	usage.CompanyID = scope.CompanyID
	usage.DelStatus = shared.StatusLive
	tx.repo.usages = append(tx.repo.usages, usage)
	return usage.ID, nil
}

func (tx *memoryTx) InsertUsageDetail(_ context.Context, _ shared.TenantScope, detail ProductUsageDetail) (int64, error) {
	tx.repo.nextID++
	detail.ID = tx.repo.nextID
	detail.DelStatus = shared.StatusLive
	tx.repo.details = append(tx.repo.details, detail)
	return detail.ID, nil
}

func (tx *memoryTx) SoftDeleteUsage(_ context.Context, _ shared.TenantScope, usageID int64) ([]int64, error) {
	found := false
	for i := range tx.repo.usages {
		if tx.repo.usages[i].ID == usageID && tx.repo.usages[i].DelStatus.IsLive() {
			tx.repo.usages[i].DelStatus = shared.StatusDeleted
			found = true
		}
	}
	if !found {
		return nil, shared.ErrNotFound
	}
	var itemIDs []int64
	for i := range tx.repo.details {
		if tx.repo.details[i].ProductUsageID == usageID && tx.repo.details[i].DelStatus.IsLive() {
			tx.repo.details[i].DelStatus = shared.StatusDeleted
			itemIDs = append(itemIDs, tx.repo.details[i].ItemID)
		}
	}
	return itemIDs, nil
}

type catalogStub struct {
	items map[int64]catalog.Item
}

func (c *catalogStub) Get(_ context.Context, _ shared.TenantScope, id int64) (catalog.Item, error) {
	item, ok := c.items[id]
	if !ok {
		return catalog.Item{}, shared.ErrNotFound
	}
	return item, nil
}

type invalidatorSpy struct {
	calls [][]int64
}

func (s *invalidatorSpy) Invalidate(_ context.Context, _ int64, itemIDs ...int64) error {
	s.calls = append(s.calls, itemIDs)
	return nil
}

var scope = shared.TenantScope{CompanyID: 1}

func fixture() (*Service, *memoryRepo, *invalidatorSpy) {
	repo := &memoryRepo{}
	cat := &catalogStub{items: map[int64]catalog.Item{
		10: {ID: 10, Type: catalog.ItemTypeProduct},
		20: {ID: 20, Type: catalog.ItemTypePackage},
	}}
	spy := &invalidatorSpy{}
	return NewService(repo, cat, spy, nil, nil), repo, spy
}

func TestCreateRecordsPerEmployeeConsumption(t *testing.T) {
	svc, repo, spy := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		UsageDate: time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{ItemID: 10, Quantity: decimal.NewFromInt(1), EmployeeID: 5},
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.details, 1)
	require.Equal(t, int64(5), repo.details[0].EmployeeID)
	require.Len(t, spy.calls, 1)
	require.Equal(t, []int64{10}, spy.calls[0])
}

func TestCreateRequiresEmployee(t *testing.T) {
	svc, repo, _ := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		UsageDate: time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		Lines:     []LineInput{{ItemID: 10, Quantity: decimal.NewFromInt(1)}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.usages)
}

func TestCreateRejectsNonProductLines(t *testing.T) {
	svc, repo, _ := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		UsageDate: time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		Lines:     []LineInput{{ItemID: 20, Quantity: decimal.NewFromInt(1), EmployeeID: 5}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.usages)
}

func TestSoftDeleteRestoresStockViaInvalidation(t *testing.T) {
	svc, repo, spy := fixture()

	usage, err := svc.Create(context.Background(), scope, CreateInput{
		UsageDate: time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC),
		Lines:     []LineInput{{ItemID: 10, Quantity: decimal.NewFromInt(2), EmployeeID: 5}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(context.Background(), scope, usage.ID, 1))

	_, _, err = svc.Get(context.Background(), scope, usage.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, shared.StatusDeleted, repo.details[0].DelStatus)
	require.Len(t, spy.calls, 2)
	require.Equal(t, []int64{10}, spy.calls[1])
}
