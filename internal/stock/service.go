package stock

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/lumapos/lumapos/internal/shared"
)

// RepositoryPort abstracts ledger reads for the derivation engine.
type RepositoryPort interface {
	SumPurchased(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error)
	SumSoldDirect(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error)
	PackageSales(ctx context.Context, scope shared.TenantScope, itemID int64) ([]PackageSale, error)
	SumUsed(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error)
	SumDamaged(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error)
	CostSnapshot(ctx context.Context, scope shared.TenantScope, itemID int64) (CostSnapshot, error)
}

// CachePort is an optional read-through cache of derived quantities. Cached
// values are never authoritative; every ledger write invalidates them.
type CachePort interface {
	Get(ctx context.Context, companyID, itemID int64) (decimal.Decimal, bool, error)
	Set(ctx context.Context, companyID, itemID int64, qty decimal.Decimal) error
	Invalidate(ctx context.Context, companyID int64, itemIDs ...int64) error
}

// Service is the stock derivation engine. Callers only invoke it for
// Product-type items; the engine assumes that precondition.
type Service struct {
	repo  RepositoryPort
	cache CachePort
	group singleflight.Group
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache CachePort) *Service {
	return &Service{repo: repo, cache: cache}
}

// Quantity computes the current on-hand quantity of a product. Negative
// results are meaningful (overselling) and are not clamped.
func (s *Service) Quantity(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	if s.cache != nil {
		if qty, ok, err := s.cache.Get(ctx, scope.CompanyID, itemID); err == nil && ok {
			return qty, nil
		}
	}
	key := fmt.Sprintf("%d:%d", scope.CompanyID, itemID)
	v, err, _ := s.group.Do(key, func() (any, error) {
		breakdown, err := s.derive(ctx, scope, itemID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			_ = s.cache.Set(ctx, scope.CompanyID, itemID, breakdown.OnHand)
		}
		return breakdown.OnHand, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// Breakdown returns the full derivation without touching the cache. The
// drilldown view clamps via Breakdown.DisplayQuantity; the raw OnHand value
// feeds alerting and valuation.
func (s *Service) Breakdown(ctx context.Context, scope shared.TenantScope, itemID int64) (Breakdown, error) {
	return s.derive(ctx, scope, itemID)
}

// Value computes the stock value of a product under the given cost policy.
func (s *Service) Value(ctx context.Context, scope shared.TenantScope, itemID int64, policy CostPolicy) (decimal.Decimal, error) {
	if !policy.Valid() {
		return decimal.Zero, ErrUnknownPolicy
	}
	qty, err := s.Quantity(ctx, scope, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	snapshot, err := s.repo.CostSnapshot(ctx, scope, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	unitCost, err := snapshot.UnitCost(policy)
	if err != nil {
		return decimal.Zero, err
	}
	return qty.Mul(unitCost), nil
}

// Invalidate drops cached quantities after a ledger write. A nil cache makes
// this a no-op, matching the always-recompute baseline.
func (s *Service) Invalidate(ctx context.Context, companyID int64, itemIDs ...int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, companyID, itemIDs...)
}

func (s *Service) derive(ctx context.Context, scope shared.TenantScope, itemID int64) (Breakdown, error) {
	purchased, err := s.repo.SumPurchased(ctx, scope, itemID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("stock: sum purchased: %w", err)
	}
	directSold, err := s.repo.SumSoldDirect(ctx, scope, itemID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("stock: sum sold: %w", err)
	}
	packageSales, err := s.repo.PackageSales(ctx, scope, itemID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("stock: package sales: %w", err)
	}
	packageSold := decimal.Zero
	for _, sale := range packageSales {
		// Multiply each package's sold quantity by its own BOM quantity
		// before summing; multipliers never mix across packages.
		packageSold = packageSold.Add(sale.SoldQty.Mul(sale.BOMQty))
	}
	used, err := s.repo.SumUsed(ctx, scope, itemID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("stock: sum used: %w", err)
	}
	damaged, err := s.repo.SumDamaged(ctx, scope, itemID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("stock: sum damaged: %w", err)
	}
	onHand := purchased.Sub(directSold).Sub(packageSold).Sub(used).Sub(damaged)
	return Breakdown{
		ItemID:      itemID,
		Purchased:   purchased,
		DirectSold:  directSold,
		PackageSold: packageSold,
		Used:        used,
		Damaged:     damaged,
		OnHand:      onHand,
	}, nil
}
