package sales

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

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertSale(ctx context.Context, scope shared.TenantScope, sale Sale) (int64, error)
	InsertSaleDetail(ctx context.Context, scope shared.TenantScope, detail SaleDetail) (int64, error)
	SoftDeleteSale(ctx context.Context, scope shared.TenantScope, saleID int64) ([]int64, error)
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

func (t *txRepository) InsertSale(ctx context.Context, scope shared.TenantScope, sale Sale) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO sales (company_id, number, customer_id, sale_date, note, del_status, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		scope.CompanyID, sale.Number, sale.CustomerID, sale.SaleDate,
		sale.Note, string(shared.StatusLive), sale.CreatedBy, time.Now()).Scan(&id)
	return id, err
}

func (t *txRepository) InsertSaleDetail(ctx context.Context, scope shared.TenantScope, detail SaleDetail) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO sale_details (company_id, sale_id, item_id, quantity, unit_price, employee_id, is_free, del_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		scope.CompanyID, detail.SaleID, detail.ItemID,
		db.DecimalToNumeric(detail.Quantity), db.DecimalToNumeric(detail.UnitPrice),
		detail.EmployeeID, detail.IsFree, string(shared.StatusLive), time.Now()).Scan(&id)
	return id, err
}

// SoftDeleteSale flips header and detail rows to Deleted and returns the
// affected item ids so callers can invalidate derived stock.
func (t *txRepository) SoftDeleteSale(ctx context.Context, scope shared.TenantScope, saleID int64) ([]int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sales SET del_status = $1 WHERE id = $2 AND company_id = $3 AND del_status = $4`,
		string(shared.StatusDeleted), saleID, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	rows, err := t.tx.Query(ctx,
		`UPDATE sale_details SET del_status = $1
		 WHERE sale_id = $2 AND company_id = $3 AND del_status = $4
		 RETURNING item_id`,
		string(shared.StatusDeleted), saleID, scope.CompanyID, string(shared.StatusLive))
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

// Get loads one live sale with its live details.
func (r *Repository) Get(ctx context.Context, scope shared.TenantScope, id int64) (Sale, []SaleDetail, error) {
	var sale Sale
	var delStatus string
	err := r.pool.QueryRow(ctx,
		`SELECT id, company_id, number, customer_id, sale_date, note, del_status, created_by, created_at
		 FROM sales WHERE id = $1 AND company_id = $2 AND del_status = $3`,
		id, scope.CompanyID, string(shared.StatusLive)).Scan(
		&sale.ID, &sale.CompanyID, &sale.Number, &sale.CustomerID,
		&sale.SaleDate, &sale.Note, &delStatus, &sale.CreatedBy, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, nil, shared.ErrNotFound
		}
		return Sale{}, nil, err
	}
	sale.DelStatus = shared.DelStatus(delStatus)

	rows, err := r.pool.Query(ctx,
		`SELECT id, sale_id, item_id, quantity, unit_price, employee_id, is_free, del_status
		 FROM sale_details WHERE sale_id = $1 AND company_id = $2 AND del_status = $3
		 ORDER BY id`,
		id, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return Sale{}, nil, err
	}
	defer rows.Close()

	var details []SaleDetail
	for rows.Next() {
		var d SaleDetail
		var qty, price pgtype.Numeric
		var status string
		if err := rows.Scan(&d.ID, &d.SaleID, &d.ItemID, &qty, &price, &d.EmployeeID, &d.IsFree, &status); err != nil {
			return Sale{}, nil, err
		}
		d.Quantity = db.NumericToDecimal(qty)
		d.UnitPrice = db.NumericToDecimal(price)
		d.DelStatus = shared.DelStatus(status)
		details = append(details, d)
	}
	return sale, details, rows.Err()
}

// List returns live sales newest first.
func (r *Repository) List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]Sale, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, number, customer_id, sale_date, note, del_status, created_by, created_at
		 FROM sales WHERE company_id = $1 AND del_status = $2
		 ORDER BY sale_date DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		scope.CompanyID, string(shared.StatusLive), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var s Sale
		var status string
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.Number, &s.CustomerID, &s.SaleDate, &s.Note, &status, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.DelStatus = shared.DelStatus(status)
		sales = append(sales, s)
	}
	return sales, rows.Err()
}
