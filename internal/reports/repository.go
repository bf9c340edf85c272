package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/platform/db"
	"github.com/lumapos/lumapos/internal/shared"
)

// Repository aggregates reporting sums in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Revenue sums unit_price × quantity over live, non-free sale lines in
// the period.
func (r *Repository) Revenue(ctx context.Context, scope shared.TenantScope, from, to time.Time) (decimal.Decimal, error) {
	return r.sum(ctx,
		`SELECT COALESCE(SUM(sd.unit_price * sd.quantity), 0)
		 FROM sale_details sd
		 JOIN sales s ON s.id = sd.sale_id
		 WHERE s.company_id = $1 AND sd.del_status = $2 AND s.del_status = $2
		   AND sd.is_free = FALSE
		   AND s.sale_date >= $3 AND s.sale_date <= $4`,
		scope, from, to)
}

// PurchaseCost sums unit_price × quantity over live purchase lines in
// the period.
func (r *Repository) PurchaseCost(ctx context.Context, scope shared.TenantScope, from, to time.Time) (decimal.Decimal, error) {
	return r.sum(ctx,
		`SELECT COALESCE(SUM(pd.unit_price * pd.quantity), 0)
		 FROM purchase_details pd
		 JOIN purchases p ON p.id = pd.purchase_id
		 WHERE p.company_id = $1 AND pd.del_status = $2 AND p.del_status = $2
		   AND p.purchase_date >= $3 AND p.purchase_date <= $4`,
		scope, from, to)
}

// DamageLoss sums unit_cost × quantity over live damage lines in the
// period.
func (r *Repository) DamageLoss(ctx context.Context, scope shared.TenantScope, from, to time.Time) (decimal.Decimal, error) {
	return r.sum(ctx,
		`SELECT COALESCE(SUM(dd.unit_cost * dd.quantity), 0)
		 FROM damage_details dd
		 JOIN damages d ON d.id = dd.damage_id
		 WHERE d.company_id = $1 AND dd.del_status = $2 AND d.del_status = $2
		   AND d.damage_date >= $3 AND d.damage_date <= $4`,
		scope, from, to)
}

func (r *Repository) sum(ctx context.Context, query string, scope shared.TenantScope, from, to time.Time) (decimal.Decimal, error) {
	var n pgtype.Numeric
	err := r.pool.QueryRow(ctx, query, scope.CompanyID, string(shared.StatusLive), from, to).Scan(&n)
	if err != nil {
		return decimal.Zero, err
	}
	return db.NumericToDecimal(n), nil
}
