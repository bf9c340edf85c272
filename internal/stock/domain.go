// Package stock derives on-hand quantities from the append-only ledgers.
// No stored running balance is trusted: every read recomputes from
// purchases, sales, package-attributed sales, internal usage and damages.
package stock

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/shared"
)

// CostPolicy selects the per-unit cost snapshot used for stock valuation.
type CostPolicy string

const (
	// CostPolicyLastPurchase values stock at the most recent purchase price.
	CostPolicyLastPurchase CostPolicy = "last_purchase"
	// CostPolicyLastThreeAverage values stock at the mean of the three most
	// recent purchase prices.
	CostPolicyLastThreeAverage CostPolicy = "last_three_average"
)

// Valid reports whether the policy is known.
func (p CostPolicy) Valid() bool {
	return p == CostPolicyLastPurchase || p == CostPolicyLastThreeAverage
}

// ErrUnknownPolicy indicates an unsupported cost policy.
var ErrUnknownPolicy = fmt.Errorf("stock: unknown cost policy: %w", shared.ErrValidation)

// PackageSale is the sold quantity of one package containing the target
// item, with that package's own bill-of-materials quantity. Packages are
// not fungible with each other: each multiplier applies to its own sales
// only.
type PackageSale struct {
	PackageID int64
	BOMQty    decimal.Decimal
	SoldQty   decimal.Decimal
}

// Breakdown is the full derivation of one product's stock.
type Breakdown struct {
	ItemID      int64           `json:"item_id"`
	Purchased   decimal.Decimal `json:"purchased"`
	DirectSold  decimal.Decimal `json:"direct_sold"`
	PackageSold decimal.Decimal `json:"package_sold"`
	Used        decimal.Decimal `json:"used"`
	Damaged     decimal.Decimal `json:"damaged"`
	OnHand      decimal.Decimal `json:"on_hand"`
}

// DisplayQuantity clamps the derived quantity at zero. This is a
// presentation choice for drilldown views only; alerting and valuation use
// the raw OnHand value, where negative stock signals overselling.
func (b Breakdown) DisplayQuantity() decimal.Decimal {
	if b.OnHand.IsNegative() {
		return decimal.Zero
	}
	return b.OnHand
}

// CostSnapshot holds the per-item cost figures maintained by the purchase
// workflow.
type CostSnapshot struct {
	LastPurchasePrice    decimal.Decimal
	LastThreePurchaseAvg decimal.Decimal
}

// UnitCost picks the snapshot figure for a policy.
func (c CostSnapshot) UnitCost(policy CostPolicy) (decimal.Decimal, error) {
	switch policy {
	case CostPolicyLastPurchase:
		return c.LastPurchasePrice, nil
	case CostPolicyLastThreeAverage:
		return c.LastThreePurchaseAvg, nil
	default:
		return decimal.Zero, ErrUnknownPolicy
	}
}
