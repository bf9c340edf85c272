package damages

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
	damages []Damage
	details []DamageDetail
	nextID  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(_ context.Context, _ shared.TenantScope, id int64) (Damage, []DamageDetail, error) {
	for _, d := range r.damages {
		if d.ID == id && d.DelStatus.IsLive() {
			var details []DamageDetail
			for _, row := range r.details {
				if row.DamageID == id && row.DelStatus.IsLive() {
					details = append(details, row)
				}
			}
			return d, details, nil
		}
	}
	return Damage{}, nil, shared.ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, _ shared.TenantScope, _, _ int) ([]Damage, error) {
	return r.damages, nil
}

func (tx *memoryTx) InsertDamage(_ context.Context, scope shared.TenantScope, damage Damage) (int64, error) {
	tx.repo.nextID++
	damage.ID = tx.repo.nextID
	damage.CompanyID = scope.CompanyID
	damage.DelStatus = shared.StatusLive
	tx.repo.damages = append(tx.repo.damages, damage)
	return damage.ID, nil
}

func (tx *memoryTx) InsertDamageDetail(_ context.Context, _ shared.TenantScope, detail DamageDetail) (int64, error) {
	tx.repo.nextID++
	detail.ID = tx.repo.nextID
	detail.DelStatus = shared.StatusLive
	tx.repo.details = append(tx.repo.details, detail)
	return detail.ID, nil
}

func (tx *memoryTx) SoftDeleteDamage(_ context.Context, _ shared.TenantScope, damageID int64) ([]int64, error) {
	found := false
	for i := range tx.repo.damages {
		if tx.repo.damages[i].ID == damageID && tx.repo.damages[i].DelStatus.IsLive() {
			tx.repo.damages[i].DelStatus = shared.StatusDeleted
			found = true
		}
	}
	if !found {
		return nil, shared.ErrNotFound
	}
	var itemIDs []int64
	for i := range tx.repo.details {
		if tx.repo.details[i].DamageID == damageID && tx.repo.details[i].DelStatus.IsLive() {
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
		10: {ID: 10, Type: catalog.ItemTypeProduct, LastPurchasePrice: decimal.NewFromInt(12)},
		20: {ID: 20, Type: catalog.ItemTypeService},
	}}
	spy := &invalidatorSpy{}
	return NewService(repo, cat, spy, nil, nil), repo, spy
}

func TestCreateValuesLinesAtLastPurchasePriceWhenCostOmitted(t *testing.T) {
	svc, repo, spy := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		DamageDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{ItemID: 10, Quantity: decimal.NewFromInt(3), Reason: "dropped crate"},
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.details, 1)
	require.True(t, repo.details[0].UnitCost.Equal(decimal.NewFromInt(12)))
	require.Len(t, spy.calls, 1)
	require.Equal(t, []int64{10}, spy.calls[0])
}

func TestCreateKeepsExplicitUnitCost(t *testing.T) {
	svc, repo, _ := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		DamageDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{ItemID: 10, Quantity: decimal.NewFromInt(1), UnitCost: decimal.NewFromInt(9)},
		},
	})
	require.NoError(t, err)
	require.True(t, repo.details[0].UnitCost.Equal(decimal.NewFromInt(9)))
}

func TestCreateRejectsNonProductLines(t *testing.T) {
	svc, repo, _ := fixture()

	_, err := svc.Create(context.Background(), scope, CreateInput{
		DamageDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{ItemID: 20, Quantity: decimal.NewFromInt(1)},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.damages)
}

func TestSoftDeleteRestoresStockViaInvalidation(t *testing.T) {
	svc, repo, spy := fixture()

	damage, err := svc.Create(context.Background(), scope, CreateInput{
		DamageDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{ItemID: 10, Quantity: decimal.NewFromInt(2)},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(context.Background(), scope, damage.ID, 1))

	_, _, err = svc.Get(context.Background(), scope, damage.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, shared.StatusDeleted, repo.details[0].DelStatus)
	require.Len(t, spy.calls, 2)
	require.Equal(t, []int64{10}, spy.calls[1])
}
