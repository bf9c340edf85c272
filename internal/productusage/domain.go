package productusage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/shared"
)

// ProductUsage is an internal-consumption header, e.g. products used up
// while performing a service. Stock decreases without any sale.
type ProductUsage struct {
	ID        int64
	CompanyID int64
	Number    string
	UsageDate time.Time
	Note      string
	CreatedBy int64
	DelStatus shared.DelStatus
	CreatedAt time.Time
}

// ProductUsageDetail is one consumed line, attributed to the employee
// who used the product.
type ProductUsageDetail struct {
	ID             int64
	ProductUsageID int64
	ItemID         int64
	Quantity       decimal.Decimal
	EmployeeID     int64
	DelStatus      shared.DelStatus
}

// LineInput is one requested usage line.
type LineInput struct {
	ItemID     int64
	Quantity   decimal.Decimal
	EmployeeID int64
}

// CreateInput is the payload for recording internal consumption.
type CreateInput struct {
	Number    string
	UsageDate time.Time
	Note      string
	ActorID   int64
	Lines     []LineInput
}
