package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/shared"
)

// Sale is a sale header. Quantity effects live in the detail rows.
type Sale struct {
	ID         int64
	CompanyID  int64
	Number     string
	CustomerID int64
	SaleDate   time.Time
	Note       string
	CreatedBy  int64
	DelStatus  shared.DelStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SaleDetail is one sold line. A Product line decreases that item's
// derived stock directly; a Package line decreases the stock of the
// package's components via the bill of materials at derivation time.
// Free lines carry no revenue but keep their full stock effect.
type SaleDetail struct {
	ID         int64
	SaleID     int64
	ItemID     int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	EmployeeID int64
	IsFree     bool
	DelStatus  shared.DelStatus
}

// LineInput is one requested sale line.
type LineInput struct {
	ItemID     int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	EmployeeID int64
	IsFree     bool
}

// CreateInput is the payload for recording a sale.
type CreateInput struct {
	Number     string
	CustomerID int64
	SaleDate   time.Time
	Note       string
	ActorID    int64
	Lines      []LineInput
}

// Revenue sums unit_price × quantity over non-free lines.
func Revenue(details []SaleDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		if d.IsFree || !d.DelStatus.IsLive() {
			continue
		}
		total = total.Add(d.UnitPrice.Mul(d.Quantity))
	}
	return total
}
