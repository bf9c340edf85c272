package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/platform/db"
	"github.com/lumapos/lumapos/internal/shared"
)

// Repository reads ledger sums from PostgreSQL. Every query filters on the
// tenant and on Live rows for both the detail and its header.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) SumPurchased(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(pd.quantity), 0)
		FROM purchase_details pd
		JOIN purchases p ON p.id = pd.purchase_id
		WHERE pd.item_id = $1 AND p.company_id = $2
		  AND pd.del_status = $3 AND p.del_status = $3`
	return r.sum(ctx, query, itemID, scope.CompanyID)
}

func (r *Repository) SumSoldDirect(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(sd.quantity), 0)
		FROM sale_details sd
		JOIN sales s ON s.id = sd.sale_id
		WHERE sd.item_id = $1 AND s.company_id = $2
		  AND sd.del_status = $3 AND s.del_status = $3`
	return r.sum(ctx, query, itemID, scope.CompanyID)
}

// PackageSales returns, per live package containing the item, the package's
// bill-of-materials quantity for the item and the package's total sold
// quantity. Grouping per package keeps multipliers from cross-contaminating.
func (r *Repository) PackageSales(ctx context.Context, scope shared.TenantScope, itemID int64) ([]PackageSale, error) {
	const query = `
		SELECT d.item_relation_id, d.quantity,
		       COALESCE((
		           SELECT SUM(sd.quantity)
		           FROM sale_details sd
		           JOIN sales s ON s.id = sd.sale_id
		           WHERE sd.item_id = d.item_relation_id AND s.company_id = $2
		             AND sd.del_status = $3 AND s.del_status = $3
		       ), 0)
		FROM item_details d
		JOIN items i ON i.id = d.item_relation_id
		WHERE d.item_id = $1 AND d.company_id = $2 AND d.del_status = $3
		  AND i.company_id = $2 AND i.type = $4 AND i.del_status = $3`
	rows, err := r.pool.Query(ctx, query, itemID, scope.CompanyID, string(shared.StatusLive), "Package")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []PackageSale
	for rows.Next() {
		var sale PackageSale
		var bomQty, soldQty pgtype.Numeric
		if err := rows.Scan(&sale.PackageID, &bomQty, &soldQty); err != nil {
			return nil, err
		}
		sale.BOMQty = db.NumericToDecimal(bomQty)
		sale.SoldQty = db.NumericToDecimal(soldQty)
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (r *Repository) SumUsed(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(ud.quantity), 0)
		FROM product_usage_details ud
		JOIN product_usages u ON u.id = ud.product_usage_id
		WHERE ud.item_id = $1 AND u.company_id = $2
		  AND ud.del_status = $3 AND u.del_status = $3`
	return r.sum(ctx, query, itemID, scope.CompanyID)
}

func (r *Repository) SumDamaged(ctx context.Context, scope shared.TenantScope, itemID int64) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(dd.quantity), 0)
		FROM damage_details dd
		JOIN damages d ON d.id = dd.damage_id
		WHERE dd.item_id = $1 AND d.company_id = $2
		  AND dd.del_status = $3 AND d.del_status = $3`
	return r.sum(ctx, query, itemID, scope.CompanyID)
}

func (r *Repository) CostSnapshot(ctx context.Context, scope shared.TenantScope, itemID int64) (CostSnapshot, error) {
	const query = `
		SELECT last_purchase_price, last_three_purchase_avg
		FROM items
		WHERE id = $1 AND company_id = $2 AND del_status = $3`
	var last, avg pgtype.Numeric
	err := r.pool.QueryRow(ctx, query, itemID, scope.CompanyID, string(shared.StatusLive)).Scan(&last, &avg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostSnapshot{}, shared.ErrNotFound
		}
		return CostSnapshot{}, err
	}
	return CostSnapshot{
		LastPurchasePrice:    db.NumericToDecimal(last),
		LastThreePurchaseAvg: db.NumericToDecimal(avg),
	}, nil
}

func (r *Repository) sum(ctx context.Context, query string, itemID, companyID int64) (decimal.Decimal, error) {
	var n pgtype.Numeric
	if err := r.pool.QueryRow(ctx, query, itemID, companyID, string(shared.StatusLive)).Scan(&n); err != nil {
		return decimal.Zero, err
	}
	return db.NumericToDecimal(n), nil
}
