package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockRow is one item in the stock report.
type StockRow struct {
	ItemID        int64           `json:"item_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	DisplayQty    decimal.Decimal `json:"display_quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Value         decimal.Decimal `json:"value"`
	LowStock      bool            `json:"low_stock"`
	LowStockLevel decimal.Decimal `json:"low_stock_level"`
}

// LowStockAlert flags a product whose raw derived quantity fell to or
// below its threshold. The raw quantity is reported so an operator can
// see oversold items go negative.
type LowStockAlert struct {
	ItemID    int64           `json:"item_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Threshold decimal.Decimal `json:"threshold"`
}

// ProfitLoss is the period summary: revenue minus purchase cost minus
// damage loss.
type ProfitLoss struct {
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Revenue    decimal.Decimal `json:"revenue"`
	Cost       decimal.Decimal `json:"cost"`
	DamageLoss decimal.Decimal `json:"damage_loss"`
	Net        decimal.Decimal `json:"net"`
}
