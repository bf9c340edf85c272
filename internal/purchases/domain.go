package purchases

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/shared"
)

// Purchase is a stock-increasing ledger header.
type Purchase struct {
	ID           int64
	CompanyID    int64
	Number       string
	SupplierID   int64
	PurchaseDate time.Time
	Note         string
	DelStatus    shared.DelStatus
	CreatedBy    int64
	CreatedAt    time.Time
}

// PurchaseDetail is one stock-increasing line.
type PurchaseDetail struct {
	ID         int64
	PurchaseID int64
	ItemID     int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	DelStatus  shared.DelStatus
}

// LineInput is a requested purchase line.
type LineInput struct {
	ItemID    int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CreateInput describes a purchase to record.
type CreateInput struct {
	Number       string
	SupplierID   int64
	PurchaseDate time.Time
	Note         string
	ActorID      int64
	Lines        []LineInput
}
