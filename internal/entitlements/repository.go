package entitlements

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/platform/db"
	"github.com/lumapos/lumapos/internal/shared"
)

// Repository persists the usage ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	LockEntitlement(ctx context.Context, scope shared.TenantScope, saleID, packageID int64) error
	ConsumedByComponent(ctx context.Context, scope shared.TenantScope, customerID, packageID, saleID int64) (map[int64]decimal.Decimal, error)
	InsertUsage(ctx context.Context, scope shared.TenantScope, row UsageRow) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a serializable transaction. The
// validation-then-insert sequence must not run against a snapshot another
// request is concurrently consuming from.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// LockEntitlement takes row locks on the sale lines selling the package,
// serialising concurrent redemptions against the same entitlement.
func (t *txRepository) LockEntitlement(ctx context.Context, scope shared.TenantScope, saleID, packageID int64) error {
	rows, err := t.tx.Query(ctx,
		`SELECT sd.id FROM sale_details sd
		 JOIN sales s ON s.id = sd.sale_id
		 WHERE sd.sale_id = $1 AND sd.item_id = $2 AND s.company_id = $3
		   AND sd.del_status = $4 AND s.del_status = $4
		 FOR UPDATE OF sd`,
		saleID, packageID, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return err
	}
	defer rows.Close()
	found := false
	for rows.Next() {
		found = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !found {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) ConsumedByComponent(ctx context.Context, scope shared.TenantScope, customerID, packageID, saleID int64) (map[int64]decimal.Decimal, error) {
	return consumedByComponent(ctx, t.tx, scope, customerID, packageID, saleID)
}

func (t *txRepository) InsertUsage(ctx context.Context, scope shared.TenantScope, row UsageRow) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO package_usages_summaries
		   (company_id, customer_id, package_id, sale_id, package_item_id, usages_qty, usages_date, usages_time, del_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		scope.CompanyID, row.CustomerID, row.PackageID, row.SaleID, row.ComponentItemID,
		db.DecimalToNumeric(row.Qty), row.UsageDate, row.UsageTime, string(shared.StatusLive), time.Now(),
	).Scan(&id)
	return id, err
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func consumedByComponent(ctx context.Context, q queryer, scope shared.TenantScope, customerID, packageID, saleID int64) (map[int64]decimal.Decimal, error) {
	rows, err := q.Query(ctx,
		`SELECT package_item_id, COALESCE(SUM(usages_qty), 0)
		 FROM package_usages_summaries
		 WHERE company_id = $1 AND customer_id = $2 AND package_id = $3 AND sale_id = $4 AND del_status = $5
		 GROUP BY package_item_id`,
		scope.CompanyID, customerID, packageID, saleID, string(shared.StatusLive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	consumed := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var itemID int64
		var qty pgtype.Numeric
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, err
		}
		consumed[itemID] = db.NumericToDecimal(qty)
	}
	return consumed, rows.Err()
}

// Consumed reads current consumption outside a transaction, for summaries.
func (r *Repository) Consumed(ctx context.Context, scope shared.TenantScope, customerID, packageID, saleID int64) (map[int64]decimal.Decimal, error) {
	return consumedByComponent(ctx, r.pool, scope, customerID, packageID, saleID)
}

// History lists usage entries most recent first.
func (r *Repository) History(ctx context.Context, scope shared.TenantScope, customerID, packageID, saleID int64) ([]UsageRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT package_item_id, usages_date, usages_time, usages_qty
		 FROM package_usages_summaries
		 WHERE company_id = $1 AND customer_id = $2 AND package_id = $3 AND sale_id = $4 AND del_status = $5
		 ORDER BY usages_date DESC, usages_time DESC, id DESC`,
		scope.CompanyID, customerID, packageID, saleID, string(shared.StatusLive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []UsageRecord
	for rows.Next() {
		var rec UsageRecord
		var qty pgtype.Numeric
		if err := rows.Scan(&rec.ComponentItemID, &rec.UsageDate, &rec.UsageTime, &qty); err != nil {
			return nil, err
		}
		rec.Qty = db.NumericToDecimal(qty)
		history = append(history, rec)
	}
	return history, rows.Err()
}

// SaleSoldPackage verifies the sale actually sold this package to scope's
// tenant, both rows Live.
func (r *Repository) SaleSoldPackage(ctx context.Context, scope shared.TenantScope, saleID, packageID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM sale_details sd
		   JOIN sales s ON s.id = sd.sale_id
		   WHERE sd.sale_id = $1 AND sd.item_id = $2 AND s.company_id = $3
		     AND sd.del_status = $4 AND s.del_status = $4
		 )`,
		saleID, packageID, scope.CompanyID, string(shared.StatusLive)).Scan(&exists)
	return exists, err
}
