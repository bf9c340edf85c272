package damages

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/shared"
)

// Damage is a loss or spoilage header. Each detail row takes stock out
// of circulation without a sale.
type Damage struct {
	ID         int64
	CompanyID  int64
	Number     string
	DamageDate time.Time
	Note       string
	CreatedBy  int64
	DelStatus  shared.DelStatus
	CreatedAt  time.Time
}

// DamageDetail is one damaged line. Quantity decreases derived stock.
type DamageDetail struct {
	ID        int64
	DamageID  int64
	ItemID    int64
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Reason    string
	DelStatus shared.DelStatus
}

// LineInput is one requested damage line. UnitCost is optional; when
// zero the service snapshots the item's last purchase price so the loss
// report has something to value the row with.
type LineInput struct {
	ItemID   int64
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
	Reason   string
}

// CreateInput is the payload for recording damages.
type CreateInput struct {
	Number     string
	DamageDate time.Time
	Note       string
	ActorID    int64
	Lines      []LineInput
}
