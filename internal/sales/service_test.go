package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/shared"
)

type memoryRepo struct {
	sales   []Sale
	details []SaleDetail
	nextID  int64
	txErr   error
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.txErr != nil {
		return r.txErr
	}
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(_ context.Context, _ shared.TenantScope, id int64) (Sale, []SaleDetail, error) {
	for _, s := range r.sales {
		if s.ID == id && s.DelStatus.IsLive() {
			var details []SaleDetail
			for _, d := range r.details {
				if d.SaleID == id && d.DelStatus.IsLive() {
					details = append(details, d)
				}
			}
			return s, details, nil
		}
	}
	return Sale{}, nil, shared.ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, _ shared.TenantScope, _, _ int) ([]Sale, error) {
	return r.sales, nil
}

func (tx *memoryTx) InsertSale(_ context.Context, scope shared.TenantScope, sale Sale) (int64, error) {
	tx.repo.nextID++
	sale.ID = tx.repo.nextID
	sale.CompanyID = scope.CompanyID
	sale.DelStatus = shared.StatusLive
	tx.repo.sales = append(tx.repo.sales, sale)
	return sale.ID, nil
}

func (tx *memoryTx) InsertSaleDetail(_ context.Context, _ shared.TenantScope, detail SaleDetail) (int64, error) {
	tx.repo.nextID++
	detail.ID = tx.repo.nextID
	detail.DelStatus = shared.StatusLive
	tx.repo.details = append(tx.repo.details, detail)
	return detail.ID, nil
}

func (tx *memoryTx) SoftDeleteSale(_ context.Context, _ shared.TenantScope, saleID int64) ([]int64, error) {
	found := false
	for i := range tx.repo.sales {
		if tx.repo.sales[i].ID == saleID && tx.repo.sales[i].DelStatus.IsLive() {
			tx.repo.sales[i].DelStatus = shared.StatusDeleted
			found = true
		}
	}
	if !found {
		return nil, shared.ErrNotFound
	}
	var itemIDs []int64
	for i := range tx.repo.details {
		if tx.repo.details[i].SaleID == saleID && tx.repo.details[i].DelStatus.IsLive() {
			tx.repo.details[i].DelStatus = shared.StatusDeleted
			itemIDs = append(itemIDs, tx.repo.details[i].ItemID)
		}
	}
	return itemIDs, nil
}

type catalogStub struct {
	items      map[int64]catalog.Item
	components map[int64][]catalog.Component
}

func (c *catalogStub) Get(_ context.Context, _ shared.TenantScope, id int64) (catalog.Item, error) {
	item, ok := c.items[id]
	if !ok {
		return catalog.Item{}, shared.ErrNotFound
	}
	return item, nil
}

func (c *catalogStub) ResolveComponents(_ context.Context, _ shared.TenantScope, packageID int64) ([]catalog.Component, error) {
	return c.components[packageID], nil
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

const (
	shampooID = int64(10)
	oilID     = int64(11)
	haircutID = int64(20)
	comboID   = int64(30)
)

func fixture() (*Service, *memoryRepo, *invalidatorSpy) {
	repo := &memoryRepo{}
	cat := &catalogStub{
		items: map[int64]catalog.Item{
			shampooID: {ID: shampooID, Type: catalog.ItemTypeProduct},
			oilID:     {ID: oilID, Type: catalog.ItemTypeProduct},
			haircutID: {ID: haircutID, Type: catalog.ItemTypeService},
			comboID:   {ID: comboID, Type: catalog.ItemTypePackage},
		},
		components: map[int64][]catalog.Component{
			comboID: {
				{ItemID: shampooID, Quantity: decimal.NewFromInt(2)},
				{ItemID: oilID, Quantity: decimal.NewFromInt(1)},
			},
		},
	}
	spy := &invalidatorSpy{}
	return NewService(repo, cat, spy, nil, nil, nil), repo, spy
}

func saleDate() time.Time {
	return time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
}

func TestCreateProductLineInvalidatesThatItem(t *testing.T) {
	svc, repo, spy := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		CustomerID: 7,
		SaleDate:   saleDate(),
		Lines:      []LineInput{{ItemID: shampooID, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(30)}},
	})
	require.NoError(t, err)
	require.Len(t, repo.details, 1)
	require.Len(t, spy.calls, 1)
	require.Equal(t, []int64{shampooID}, spy.calls[0])
}

func TestCreatePackageLineInvalidatesComponents(t *testing.T) {
	svc, _, spy := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		CustomerID: 7,
		SaleDate:   saleDate(),
		Lines:      []LineInput{{ItemID: comboID, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}},
	})
	require.NoError(t, err)
	require.Len(t, spy.calls, 1)
	// components, never the package item itself
	require.ElementsMatch(t, []int64{shampooID, oilID}, spy.calls[0])
}

func TestCreateServiceLineHasNoStockEffect(t *testing.T) {
	svc, repo, spy := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		CustomerID: 7,
		SaleDate:   saleDate(),
		Lines:      []LineInput{{ItemID: haircutID, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(25)}},
	})
	require.NoError(t, err)
	require.Len(t, repo.details, 1)
	require.Empty(t, spy.calls)
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	svc, repo, _ := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		CustomerID: 7,
		SaleDate:   saleDate(),
		Lines:      []LineInput{{ItemID: shampooID, Quantity: decimal.Zero, UnitPrice: decimal.NewFromInt(30)}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.sales)
}

func TestFreeLinesCarryStockEffectButNoRevenue(t *testing.T) {
	svc, _, spy := fixture()

	sale, err := svc.Create(context.Background(), scope, CreateInput{
		CustomerID: 7,
		SaleDate:   saleDate(),
		Lines: []LineInput{
			{ItemID: shampooID, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(30)},
			{ItemID: oilID, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(40), IsFree: true},
		},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{shampooID, oilID}, spy.calls[0])

	_, details, err := svc.Get(context.Background(), scope, sale.ID)
	require.NoError(t, err)
	require.True(t, Revenue(details).Equal(decimal.NewFromInt(30)))
}

func TestSoftDeleteExpandsPackagesToComponents(t *testing.T) {
	svc, repo, spy := fixture()

	sale, err := svc.Create(context.Background(), scope, CreateInput{
		CustomerID: 7,
		SaleDate:   saleDate(),
		Lines:      []LineInput{{ItemID: comboID, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(context.Background(), scope, sale.ID, 1))

	_, _, err = svc.Get(context.Background(), scope, sale.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Len(t, spy.calls, 2)
	require.ElementsMatch(t, []int64{shampooID, oilID}, spy.calls[1])
	require.Equal(t, shared.StatusDeleted, repo.details[0].DelStatus)
}

func TestFailedTransactionReleasesIdempotencyKey(t *testing.T) {
	repo := &memoryRepo{}
	cat := &catalogStub{items: map[int64]catalog.Item{
		shampooID: {ID: shampooID, Type: catalog.ItemTypeProduct},
	}}
	idem := newIdempotencyFake()
	svc := NewService(repo, cat, nil, nil, idem, nil)

	input := CreateInput{
		Number:     "SAL-RETRY-1",
		CustomerID: 7,
		SaleDate:   saleDate(),
		Lines:      []LineInput{{ItemID: shampooID, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(25)}},
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
	require.Len(t, repo.sales, 1)
}
