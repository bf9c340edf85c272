package purchases

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/shared"
)

type snapshot struct {
	last decimal.Decimal
	avg  decimal.Decimal
}

type memoryRepo struct {
	purchases []Purchase
	details   []PurchaseDetail
	snapshots map[int64]snapshot
	nextID    int64
	txErr     error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{snapshots: make(map[int64]snapshot)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.txErr != nil {
		return r.txErr
	}
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(_ context.Context, _ shared.TenantScope, id int64) (Purchase, []PurchaseDetail, error) {
	for _, p := range r.purchases {
		if p.ID == id && p.DelStatus.IsLive() {
			var details []PurchaseDetail
			for _, d := range r.details {
				if d.PurchaseID == id && d.DelStatus.IsLive() {
					details = append(details, d)
				}
			}
			return p, details, nil
		}
	}
	return Purchase{}, nil, shared.ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, _ shared.TenantScope, _, _ int) ([]Purchase, error) {
	return r.purchases, nil
}

func (tx *memoryTx) InsertPurchase(_ context.Context, scope shared.TenantScope, purchase Purchase) (int64, error) {
	tx.repo.nextID++
	purchase.ID = tx.repo.nextID
	purchase.CompanyID = scope.CompanyID
	purchase.DelStatus = shared.StatusLive
	tx.repo.purchases = append(tx.repo.purchases, purchase)
	return purchase.ID, nil
}

func (tx *memoryTx) InsertPurchaseDetail(_ context.Context, _ shared.TenantScope, detail PurchaseDetail) (int64, error) {
	tx.repo.nextID++
	detail.ID = tx.repo.nextID
	detail.DelStatus = shared.StatusLive
	tx.repo.details = append(tx.repo.details, detail)
	return detail.ID, nil
}

func (tx *memoryTx) RecentUnitPrices(_ context.Context, _ shared.TenantScope, itemID int64, limit int) ([]decimal.Decimal, error) {
	var prices []decimal.Decimal
	for i := len(tx.repo.details) - 1; i >= 0 && len(prices) < limit; i-- {
		d := tx.repo.details[i]
		if d.ItemID == itemID && d.DelStatus.IsLive() {
			prices = append(prices, d.UnitPrice)
		}
	}
	return prices, nil
}

func (tx *memoryTx) UpdateCostSnapshot(_ context.Context, _ shared.TenantScope, itemID int64, lastPrice, lastThreeAvg decimal.Decimal) error {
	tx.repo.snapshots[itemID] = snapshot{last: lastPrice, avg: lastThreeAvg}
	return nil
}

func (tx *memoryTx) SoftDeletePurchase(_ context.Context, _ shared.TenantScope, purchaseID int64) ([]int64, error) {
	found := false
	var itemIDs []int64
	for i := range tx.repo.purchases {
		if tx.repo.purchases[i].ID == purchaseID && tx.repo.purchases[i].DelStatus.IsLive() {
			tx.repo.purchases[i].DelStatus = shared.StatusDeleted
			found = true
		}
	}
	if !found {
		return nil, shared.ErrNotFound
	}
	for i := range tx.repo.details {
		if tx.repo.details[i].PurchaseID == purchaseID && tx.repo.details[i].DelStatus.IsLive() {
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

type idempotencyFake struct {
	keys map[string]bool
}

func newIdempotencyFake() *idempotencyFake {
	return &idempotencyFake{keys: make(map[string]bool)}
}

func (f *idempotencyFake) CheckAndInsert(_ context.Context, _ shared.TenantScope, key, _ string) error {
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *idempotencyFake) Delete(_ context.Context, _ shared.TenantScope, key string) error {
	delete(f.keys, key)
	return nil
}

var scope = shared.TenantScope{CompanyID: 1}

func fixture() (*Service, *memoryRepo, *invalidatorSpy) {
	repo := newMemoryRepo()
	cat := &catalogStub{items: map[int64]catalog.Item{
		10: {ID: 10, Type: catalog.ItemTypeProduct},
	}}
	spy := &invalidatorSpy{}
	return NewService(repo, cat, spy, nil, nil, nil), repo, spy
}

func buy(svc *Service, price int64) error {
	_, err := svc.Create(context.Background(), scope, CreateInput{
		PurchaseDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{ItemID: 10, Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(price)},
		},
	})
	return err
}

func TestCostSnapshotTracksRecentPurchases(t *testing.T) {
	svc, repo, _ := fixture()

	require.NoError(t, buy(svc, 10))
	snap := repo.snapshots[10]
	require.True(t, snap.last.Equal(decimal.NewFromInt(10)))
	require.True(t, snap.avg.Equal(decimal.NewFromInt(10)))

	require.NoError(t, buy(svc, 20))
	snap = repo.snapshots[10]
	require.True(t, snap.last.Equal(decimal.NewFromInt(20)))
	require.True(t, snap.avg.Equal(decimal.NewFromInt(15)))

	require.NoError(t, buy(svc, 30))
	require.NoError(t, buy(svc, 60))
	snap = repo.snapshots[10]
	require.True(t, snap.last.Equal(decimal.NewFromInt(60)))
	// only the three most recent prices: (20+30+60)/3
	require.True(t, snap.avg.Round(4).Equal(decimal.RequireFromString("36.6667")))
}

func TestCreateRejectsNonProductLines(t *testing.T) {
	repo := newMemoryRepo()
	cat := &catalogStub{items: map[int64]catalog.Item{
		20: {ID: 20, Type: catalog.ItemTypePackage},
	}}
	svc := NewService(repo, cat, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), scope, CreateInput{
		PurchaseDate: time.Now(),
		Lines:        []LineInput{{ItemID: 20, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(5)}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.purchases)
}

func TestCreateInvalidatesStock(t *testing.T) {
	svc, _, spy := fixture()

	require.NoError(t, buy(svc, 10))
	require.Len(t, spy.calls, 1)
	require.Equal(t, []int64{10}, spy.calls[0])
}

func TestFailedTransactionReleasesIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	cat := &catalogStub{items: map[int64]catalog.Item{
		10: {ID: 10, Type: catalog.ItemTypeProduct},
	}}
	idem := newIdempotencyFake()
	svc := NewService(repo, cat, nil, nil, idem, nil)

	input := CreateInput{
		Number:       "PUR-RETRY-1",
		PurchaseDate: time.Now(),
		Lines:        []LineInput{{ItemID: 10, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)}},
	}

	repo.txErr = errors.New("connection reset")
	_, err := svc.Create(context.Background(), scope, input)
	require.Error(t, err)
	require.Empty(t, idem.keys, "key must not survive a rolled-back transaction")

	// A corrected resubmission with the same number goes through.
	repo.txErr = nil
	_, err = svc.Create(context.Background(), scope, input)
	require.NoError(t, err)

	// A duplicate after a committed transaction is still rejected.
	_, err = svc.Create(context.Background(), scope, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.purchases, 1)
}

func TestSoftDeleteInvalidatesAffectedItems(t *testing.T) {
	svc, repo, spy := fixture()

	require.NoError(t, buy(svc, 10))
	require.NoError(t, svc.SoftDelete(context.Background(), scope, repo.purchases[0].ID, 1))

	_, _, err := svc.Get(context.Background(), scope, repo.purchases[0].ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Len(t, spy.calls, 2)
	require.Equal(t, []int64{10}, spy.calls[1])
}

type failingInvalidator struct{}

func (failingInvalidator) Invalidate(context.Context, int64, ...int64) error {
	return errors.New("redis down")
}

func TestInvalidateFailureIsLoggedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	repo := newMemoryRepo()
	cat := &catalogStub{items: map[int64]catalog.Item{
		10: {ID: 10, Type: catalog.ItemTypeProduct},
	}}
	svc := NewService(repo, cat, failingInvalidator{}, nil, nil, logger)

	require.NoError(t, buy(svc, 10))
	require.Contains(t, buf.String(), "invalidate stock cache")
}
