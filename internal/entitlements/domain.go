// Package entitlements tracks consumption of package components against
// what a customer purchased. The ledger is append-only; depletion is a
// derived fact (remaining = 0), not a stored state.
package entitlements

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageLine is one requested redemption within a batch.
type UsageLine struct {
	ComponentItemID int64
	Qty             decimal.Decimal
	UsageDate       time.Time
	UsageTime       string
}

// RecordUsageInput is the full batch a customer submits in one request.
type RecordUsageInput struct {
	CustomerID int64
	PackageID  int64
	SaleID     int64
	ActorID    int64
	Lines      []UsageLine
}

// UsageRow is a persisted ledger entry.
type UsageRow struct {
	ID              int64
	CustomerID      int64
	PackageID       int64
	SaleID          int64
	ComponentItemID int64
	Qty             decimal.Decimal
	UsageDate       time.Time
	UsageTime       string
}

// ComponentBalance is the per-component entitlement state for one
// (customer, sale, package) tuple.
type ComponentBalance struct {
	ComponentItemID int64           `json:"component_item_id"`
	PurchasedQty    decimal.Decimal `json:"purchased_qty"`
	ConsumedQty     decimal.Decimal `json:"consumed_qty"`
	RemainingQty    decimal.Decimal `json:"remaining_qty"`
}

// UsageRecord is one history entry for display, most recent first.
type UsageRecord struct {
	ComponentItemID int64           `json:"component_item_id"`
	UsageDate       time.Time       `json:"usage_date"`
	UsageTime       string          `json:"usage_time"`
	Qty             decimal.Decimal `json:"qty"`
}

// Summary is the customer-facing projection of one entitlement.
type Summary struct {
	Components []ComponentBalance `json:"components"`
	History    []UsageRecord      `json:"history"`
}
