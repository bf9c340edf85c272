package productusage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumapos/lumapos/internal/platform/db"
	"github.com/lumapos/lumapos/internal/shared"
)

// Repository persists product usages in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertUsage(ctx context.Context, scope shared.TenantScope, usage ProductUsage) (int64, error)
	InsertUsageDetail(ctx context.Context, scope shared.TenantScope, detail ProductUsageDetail) (int64, error)
	SoftDeleteUsage(ctx context.Context, scope shared.TenantScope, usageID int64) ([]int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (t *txRepository) InsertUsage(ctx context.Context, scope shared.TenantScope, usage ProductUsage) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO product_usages (company_id, number, usage_date, note, del_status, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		scope.CompanyID, usage.Number, usage.UsageDate, usage.Note,
		string(shared.StatusLive), usage.CreatedBy, time.Now()).Scan(&id)
	return id, err
}

func (t *txRepository) InsertUsageDetail(ctx context.Context, scope shared.TenantScope, detail ProductUsageDetail) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO product_usage_details (company_id, product_usage_id, item_id, quantity, employee_id, del_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		scope.CompanyID, detail.ProductUsageID, detail.ItemID,
		db.DecimalToNumeric(detail.Quantity), detail.EmployeeID,
		string(shared.StatusLive), time.Now()).Scan(&id)
	return id, err
}

// SoftDeleteUsage flips header and detail rows to Deleted and returns
// the affected item ids so callers can invalidate derived stock.
func (t *txRepository) SoftDeleteUsage(ctx context.Context, scope shared.TenantScope, usageID int64) ([]int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE product_usages SET del_status = $1 WHERE id = $2 AND company_id = $3 AND del_status = $4`,
		string(shared.StatusDeleted), usageID, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	rows, err := t.tx.Query(ctx,
		`UPDATE product_usage_details SET del_status = $1
		 WHERE product_usage_id = $2 AND company_id = $3 AND del_status = $4
		 RETURNING item_id`,
		string(shared.StatusDeleted), usageID, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var itemIDs []int64
	for rows.Next() {
		var itemID int64
		if err := rows.Scan(&itemID); err != nil {
			return nil, err
		}
		itemIDs = append(itemIDs, itemID)
	}
	return itemIDs, rows.Err()
}

// Get loads one live usage with its live details.
func (r *Repository) Get(ctx context.Context, scope shared.TenantScope, id int64) (ProductUsage, []ProductUsageDetail, error) {
	var usage ProductUsage
	var delStatus string
	err := r.pool.QueryRow(ctx,
		`SELECT id, company_id, number, usage_date, note, del_status, created_by, created_at
		 FROM product_usages WHERE id = $1 AND company_id = $2 AND del_status = $3`,
		id, scope.CompanyID, string(shared.StatusLive)).Scan(
		&usage.ID, &usage.CompanyID, &usage.Number, &usage.UsageDate,
		&usage.Note, &delStatus, &usage.CreatedBy, &usage.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductUsage{}, nil, shared.ErrNotFound
		}
		return ProductUsage{}, nil, err
	}
	usage.DelStatus = shared.DelStatus(delStatus)

	rows, err := r.pool.Query(ctx,
		`SELECT id, product_usage_id, item_id, quantity, employee_id, del_status
		 FROM product_usage_details WHERE product_usage_id = $1 AND company_id = $2 AND del_status = $3
		 ORDER BY id`,
		id, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return ProductUsage{}, nil, err
	}
	defer rows.Close()

	var details []ProductUsageDetail
	for rows.Next() {
		var d ProductUsageDetail
		var qty pgtype.Numeric
		var status string
		if err := rows.Scan(&d.ID, &d.ProductUsageID, &d.ItemID, &qty, &d.EmployeeID, &status); err != nil {
			return ProductUsage{}, nil, err
		}
		d.Quantity = db.NumericToDecimal(qty)
		d.DelStatus = shared.DelStatus(status)
		details = append(details, d)
	}
	return usage, details, rows.Err()
}

// List returns live usages newest first.
func (r *Repository) List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]ProductUsage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, number, usage_date, note, del_status, created_by, created_at
		 FROM product_usages WHERE company_id = $1 AND del_status = $2
		 ORDER BY usage_date DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		scope.CompanyID, string(shared.StatusLive), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usages []ProductUsage
	for rows.Next() {
		var u ProductUsage
		var status string
		if err := rows.Scan(&u.ID, &u.CompanyID, &u.Number, &u.UsageDate, &u.Note, &status, &u.CreatedBy, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.DelStatus = shared.DelStatus(status)
		usages = append(usages, u)
	}
	return usages, rows.Err()
}
