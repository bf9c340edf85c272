package purchases

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/platform/db"
	"github.com/lumapos/lumapos/internal/shared"
)

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertPurchase(ctx context.Context, scope shared.TenantScope, purchase Purchase) (int64, error)
	InsertPurchaseDetail(ctx context.Context, scope shared.TenantScope, detail PurchaseDetail) (int64, error)
	RecentUnitPrices(ctx context.Context, scope shared.TenantScope, itemID int64, limit int) ([]decimal.Decimal, error)
	UpdateCostSnapshot(ctx context.Context, scope shared.TenantScope, itemID int64, lastPrice, lastThreeAvg decimal.Decimal) error
	SoftDeletePurchase(ctx context.Context, scope shared.TenantScope, purchaseID int64) ([]int64, error)
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

func (t *txRepository) InsertPurchase(ctx context.Context, scope shared.TenantScope, purchase Purchase) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO purchases (company_id, number, supplier_id, purchase_date, note, del_status, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		scope.CompanyID, purchase.Number, purchase.SupplierID, purchase.PurchaseDate,
		purchase.Note, string(shared.StatusLive), purchase.CreatedBy, time.Now()).Scan(&id)
	return id, err
}

func (t *txRepository) InsertPurchaseDetail(ctx context.Context, scope shared.TenantScope, detail PurchaseDetail) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO purchase_details (company_id, purchase_id, item_id, quantity, unit_price, del_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		scope.CompanyID, detail.PurchaseID, detail.ItemID,
		db.DecimalToNumeric(detail.Quantity), db.DecimalToNumeric(detail.UnitPrice),
		string(shared.StatusLive), time.Now()).Scan(&id)
	return id, err
}

// RecentUnitPrices returns unit prices of the most recent live purchase
// details for an item, newest first.
func (t *txRepository) RecentUnitPrices(ctx context.Context, scope shared.TenantScope, itemID int64, limit int) ([]decimal.Decimal, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT pd.unit_price
		 FROM purchase_details pd
		 JOIN purchases p ON p.id = pd.purchase_id
		 WHERE pd.item_id = $1 AND p.company_id = $2
		   AND pd.del_status = $3 AND p.del_status = $3
		 ORDER BY pd.id DESC
		 LIMIT $4`,
		itemID, scope.CompanyID, string(shared.StatusLive), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []decimal.Decimal
	for rows.Next() {
		var n pgtype.Numeric
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		prices = append(prices, db.NumericToDecimal(n))
	}
	return prices, rows.Err()
}

func (t *txRepository) UpdateCostSnapshot(ctx context.Context, scope shared.TenantScope, itemID int64, lastPrice, lastThreeAvg decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE items SET last_purchase_price = $1, last_three_purchase_avg = $2, updated_at = $3
		 WHERE id = $4 AND company_id = $5 AND del_status = $6`,
		db.DecimalToNumeric(lastPrice), db.DecimalToNumeric(lastThreeAvg), time.Now(),
		itemID, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDeletePurchase flips header and detail rows to Deleted and returns
// the affected item ids so callers can invalidate derived stock.
func (t *txRepository) SoftDeletePurchase(ctx context.Context, scope shared.TenantScope, purchaseID int64) ([]int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE purchases SET del_status = $1 WHERE id = $2 AND company_id = $3 AND del_status = $4`,
		string(shared.StatusDeleted), purchaseID, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	rows, err := t.tx.Query(ctx,
		`UPDATE purchase_details SET del_status = $1
		 WHERE purchase_id = $2 AND company_id = $3 AND del_status = $4
		 RETURNING item_id`,
		string(shared.StatusDeleted), purchaseID, scope.CompanyID, string(shared.StatusLive))
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

// Get loads one live purchase with its live details.
func (r *Repository) Get(ctx context.Context, scope shared.TenantScope, id int64) (Purchase, []PurchaseDetail, error) {
	var purchase Purchase
	var delStatus string
	err := r.pool.QueryRow(ctx,
		`SELECT id, company_id, number, supplier_id, purchase_date, note, del_status, created_by, created_at
		 FROM purchases WHERE id = $1 AND company_id = $2 AND del_status = $3`,
		id, scope.CompanyID, string(shared.StatusLive)).Scan(
		&purchase.ID, &purchase.CompanyID, &purchase.Number, &purchase.SupplierID,
		&purchase.PurchaseDate, &purchase.Note, &delStatus, &purchase.CreatedBy, &purchase.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, nil, shared.ErrNotFound
		}
		return Purchase{}, nil, err
	}
	purchase.DelStatus = shared.DelStatus(delStatus)

	rows, err := r.pool.Query(ctx,
		`SELECT id, purchase_id, item_id, quantity, unit_price, del_status
		 FROM purchase_details WHERE purchase_id = $1 AND company_id = $2 AND del_status = $3
		 ORDER BY id`,
		id, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return Purchase{}, nil, err
	}
	defer rows.Close()

	var details []PurchaseDetail
	for rows.Next() {
		var d PurchaseDetail
		var qty, price pgtype.Numeric
		var status string
		if err := rows.Scan(&d.ID, &d.PurchaseID, &d.ItemID, &qty, &price, &status); err != nil {
			return Purchase{}, nil, err
		}
		d.Quantity = db.NumericToDecimal(qty)
		d.UnitPrice = db.NumericToDecimal(price)
		d.DelStatus = shared.DelStatus(status)
		details = append(details, d)
	}
	return purchase, details, rows.Err()
}

// List returns live purchases newest first.
func (r *Repository) List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]Purchase, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, number, supplier_id, purchase_date, note, del_status, created_by, created_at
		 FROM purchases WHERE company_id = $1 AND del_status = $2
		 ORDER BY purchase_date DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		scope.CompanyID, string(shared.StatusLive), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		var status string
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Number, &p.SupplierID, &p.PurchaseDate, &p.Note, &status, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.DelStatus = shared.DelStatus(status)
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
