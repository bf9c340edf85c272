package damages

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

// Repository persists damages in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertDamage(ctx context.Context, scope shared.TenantScope, damage Damage) (int64, error)
	InsertDamageDetail(ctx context.Context, scope shared.TenantScope, detail DamageDetail) (int64, error)
	SoftDeleteDamage(ctx context.Context, scope shared.TenantScope, damageID int64) ([]int64, error)
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

func (t *txRepository) InsertDamage(ctx context.Context, scope shared.TenantScope, damage Damage) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO damages (company_id, number, damage_date, note, del_status, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		scope.CompanyID, damage.Number, damage.DamageDate, damage.Note,
		string(shared.StatusLive), damage.CreatedBy, time.Now()).Scan(&id)
	return id, err
}

func (t *txRepository) InsertDamageDetail(ctx context.Context, scope shared.TenantScope, detail DamageDetail) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO damage_details (company_id, damage_id, item_id, quantity, unit_cost, reason, del_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		scope.CompanyID, detail.DamageID, detail.ItemID,
		db.DecimalToNumeric(detail.Quantity), db.DecimalToNumeric(detail.UnitCost),
		detail.Reason, string(shared.StatusLive), time.Now()).Scan(&id)
	return id, err
}

// SoftDeleteDamage flips header and detail rows to Deleted and returns
// the affected item ids so callers can invalidate derived stock.
func (t *txRepository) SoftDeleteDamage(ctx context.Context, scope shared.TenantScope, damageID int64) ([]int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE damages SET del_status = $1 WHERE id = $2 AND company_id = $3 AND del_status = $4`,
		string(shared.StatusDeleted), damageID, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	rows, err := t.tx.Query(ctx,
		`UPDATE damage_details SET del_status = $1
		 WHERE damage_id = $2 AND company_id = $3 AND del_status = $4
		 RETURNING item_id`,
		string(shared.StatusDeleted), damageID, scope.CompanyID, string(shared.StatusLive))
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

// Get loads one live damage with its live details.
func (r *Repository) Get(ctx context.Context, scope shared.TenantScope, id int64) (Damage, []DamageDetail, error) {
	var damage Damage
	var delStatus string
	err := r.pool.QueryRow(ctx,
		`SELECT id, company_id, number, damage_date, note, del_status, created_by, created_at
		 FROM damages WHERE id = $1 AND company_id = $2 AND del_status = $3`,
		id, scope.CompanyID, string(shared.StatusLive)).Scan(
		&damage.ID, &damage.CompanyID, &damage.Number, &damage.DamageDate,
		&damage.Note, &delStatus, &damage.CreatedBy, &damage.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Damage{}, nil, shared.ErrNotFound
		}
		return Damage{}, nil, err
	}
	damage.DelStatus = shared.DelStatus(delStatus)

	rows, err := r.pool.Query(ctx,
		`SELECT id, damage_id, item_id, quantity, unit_cost, reason, del_status
		 FROM damage_details WHERE damage_id = $1 AND company_id = $2 AND del_status = $3
		 ORDER BY id`,
		id, scope.CompanyID, string(shared.StatusLive))
	if err != nil {
		return Damage{}, nil, err
	}
	defer rows.Close()

	var details []DamageDetail
	for rows.Next() {
		var d DamageDetail
		var qty, cost pgtype.Numeric
		var status string
		if err := rows.Scan(&d.ID, &d.DamageID, &d.ItemID, &qty, &cost, &d.Reason, &status); err != nil {
			return Damage{}, nil, err
		}
		d.Quantity = db.NumericToDecimal(qty)
		d.UnitCost = db.NumericToDecimal(cost)
		d.DelStatus = shared.DelStatus(status)
		details = append(details, d)
	}
	return damage, details, rows.Err()
}

// List returns live damages newest first.
func (r *Repository) List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]Damage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_id, number, damage_date, note, del_status, created_by, created_at
		 FROM damages WHERE company_id = $1 AND del_status = $2
		 ORDER BY damage_date DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		scope.CompanyID, string(shared.StatusLive), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var damages []Damage
	for rows.Next() {
		var d Damage
		var status string
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Number, &d.DamageDate, &d.Note, &status, &d.CreatedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.DelStatus = shared.DelStatus(status)
		damages = append(damages, d)
	}
	return damages, rows.Err()
}
