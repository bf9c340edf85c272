package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumapos/lumapos/internal/platform/db"
	"github.com/lumapos/lumapos/internal/shared"
)

// Repository persists catalog data in PostgreSQL.
type Repository interface {
	Create(ctx context.Context, scope shared.TenantScope, item Item) (Item, error)
	Update(ctx context.Context, scope shared.TenantScope, id int64, item Item) error
	SoftDelete(ctx context.Context, scope shared.TenantScope, id int64) error
	Get(ctx context.Context, scope shared.TenantScope, id int64) (Item, error)
	List(ctx context.Context, scope shared.TenantScope, filters ListFilters) ([]Item, int, error)
	ReplaceComponents(ctx context.Context, scope shared.TenantScope, packageID int64, components []Component) error
	Components(ctx context.Context, scope shared.TenantScope, packageID int64) ([]Component, error)
	ContainingPackages(ctx context.Context, scope shared.TenantScope, componentItemID int64) ([]PackageRef, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const itemColumns = `id, company_id, code, name, type, sale_price, last_purchase_price, last_three_purchase_avg, low_stock_threshold, del_status, created_at, updated_at`

func (r *repository) Create(ctx context.Context, scope shared.TenantScope, item Item) (Item, error) {
	now := time.Now()
	query := `INSERT INTO items (company_id, code, name, type, sale_price, last_purchase_price, last_three_purchase_avg, low_stock_threshold, del_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		scope.CompanyID, item.Code, item.Name, string(item.Type),
		db.DecimalToNumeric(item.SalePrice), db.DecimalToNumeric(item.LastPurchasePrice),
		db.DecimalToNumeric(item.LastThreePurchaseAvg), db.DecimalToNumeric(item.LowStockThreshold),
		string(shared.StatusLive), now, now,
	).Scan(&item.ID)
	if err != nil {
		return Item{}, err
	}
	item.CompanyID = scope.CompanyID
	item.DelStatus = shared.StatusLive
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

func (r *repository) Update(ctx context.Context, scope shared.TenantScope, id int64, item Item) error {
	query := `UPDATE items SET code = $1, name = $2, sale_price = $3, low_stock_threshold = $4, updated_at = $5
		WHERE id = $6 AND company_id = $7 AND del_status = $8`
	tag, err := r.pool.Exec(ctx, query,
		item.Code, item.Name, db.DecimalToNumeric(item.SalePrice), db.DecimalToNumeric(item.LowStockThreshold),
		time.Now(), id, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, scope shared.TenantScope, id int64) error {
	query := `UPDATE items SET del_status = $1, updated_at = $2 WHERE id = $3 AND company_id = $4 AND del_status = $5`
	tag, err := r.pool.Exec(ctx, query, string(shared.StatusDeleted), time.Now(), id, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Get(ctx context.Context, scope shared.TenantScope, id int64) (Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND company_id = $2 AND del_status = $3`
	row := r.pool.QueryRow(ctx, query, id, scope.CompanyID, string(shared.StatusLive))
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func (r *repository) List(ctx context.Context, scope shared.TenantScope, filters ListFilters) ([]Item, int, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE company_id = $1 AND del_status = $2`
	countQuery := `SELECT COUNT(*) FROM items WHERE company_id = $1 AND del_status = $2`
	args := []any{scope.CompanyID, string(shared.StatusLive)}
	argCount := 2

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Type != "" {
		argCount++
		clause := ` AND type = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, string(filters.Type))
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// ReplaceComponents soft-deletes the existing bill-of-materials and inserts
// the new set in one transaction, so stale rows never coexist with new ones.
func (r *repository) ReplaceComponents(ctx context.Context, scope shared.TenantScope, packageID int64, components []Component) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE item_details SET del_status = $1, updated_at = $2 WHERE item_relation_id = $3 AND company_id = $4 AND del_status = $5`,
			string(shared.StatusDeleted), time.Now(), packageID, scope.CompanyID, string(shared.StatusLive))
		if err != nil {
			return err
		}
		for _, c := range components {
			_, err := tx.Exec(ctx,
				`INSERT INTO item_details (company_id, item_relation_id, item_id, quantity, del_status, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
				scope.CompanyID, packageID, c.ItemID, db.DecimalToNumeric(c.Quantity), string(shared.StatusLive))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) Components(ctx context.Context, scope shared.TenantScope, packageID int64) ([]Component, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT item_id, quantity FROM item_details
		 WHERE item_relation_id = $1 AND company_id = $2 AND del_status = $3
		 ORDER BY item_id`,
		packageID, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var components []Component
	for rows.Next() {
		var c Component
		var qty pgtype.Numeric
		if err := rows.Scan(&c.ItemID, &qty); err != nil {
			return nil, err
		}
		c.Quantity = db.NumericToDecimal(qty)
		components = append(components, c)
	}
	return components, rows.Err()
}

func (r *repository) ContainingPackages(ctx context.Context, scope shared.TenantScope, componentItemID int64) ([]PackageRef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT d.item_relation_id, d.quantity
		 FROM item_details d
		 JOIN items i ON i.id = d.item_relation_id
		 WHERE d.item_id = $1 AND d.company_id = $2 AND d.del_status = $3
		   AND i.company_id = $2 AND i.type = $4 AND i.del_status = $3
		 ORDER BY d.item_relation_id`,
		componentItemID, scope.CompanyID, string(shared.StatusLive), string(ItemTypePackage))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []PackageRef
	for rows.Next() {
		var ref PackageRef
		var qty pgtype.Numeric
		if err := rows.Scan(&ref.PackageID, &qty); err != nil {
			return nil, err
		}
		ref.Quantity = db.NumericToDecimal(qty)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var itemType, delStatus string
	var salePrice, lastPrice, lastThreeAvg, threshold pgtype.Numeric
	err := row.Scan(&item.ID, &item.CompanyID, &item.Code, &item.Name, &itemType,
		&salePrice, &lastPrice, &lastThreeAvg, &threshold,
		&delStatus, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	item.Type = ItemType(itemType)
	item.DelStatus = shared.DelStatus(delStatus)
	item.SalePrice = db.NumericToDecimal(salePrice)
	item.LastPurchasePrice = db.NumericToDecimal(lastPrice)
	item.LastThreePurchaseAvg = db.NumericToDecimal(lastThreeAvg)
	item.LowStockThreshold = db.NumericToDecimal(threshold)
	return item, nil
}
