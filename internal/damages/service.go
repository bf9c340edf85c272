package damages

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, scope shared.TenantScope, id int64) (Damage, []DamageDetail, error)
	List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]Damage, error)
}

// CatalogPort resolves items referenced by damage lines.
type CatalogPort interface {
	Get(ctx context.Context, scope shared.TenantScope, id int64) (catalog.Item, error)
}

// StockInvalidator drops cached derived quantities after ledger writes.
type StockInvalidator interface {
	Invalidate(ctx context.Context, companyID int64, itemIDs ...int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records product losses. Only physical stock can be damaged,
// so every line must reference a Product item.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	stock   StockInvalidator
	audit   AuditPort
	logger  *slog.Logger
}

// NewService builds Service. stock, audit and logger may be nil.
func NewService(repo RepositoryPort, catalogPort CatalogPort, stock StockInvalidator, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalogPort, stock: stock, audit: audit, logger: logger}
}

// Create records header and lines in one transaction. Lines with a zero
// unit cost are valued at the item's last purchase price.
func (s *Service) Create(ctx context.Context, scope shared.TenantScope, input CreateInput) (Damage, error) {
	costs, err := s.validate(ctx, scope, input)
	if err != nil {
		return Damage{}, err
	}
	if input.Number == "" {
		input.Number = shared.NewDocumentNumber("DMG")
	}

	damage := Damage{
		Number:     input.Number,
		DamageDate: input.DamageDate,
		Note:       input.Note,
		CreatedBy:  input.ActorID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		damageID, err := tx.InsertDamage(ctx, scope, damage)
		if err != nil {
			return err
		}
		damage.ID = damageID
		for i, line := range input.Lines {
			_, err := tx.InsertDamageDetail(ctx, scope, DamageDetail{
				DamageID: damageID,
				ItemID:   line.ItemID,
				Quantity: line.Quantity,
				UnitCost: costs[i],
				Reason:   line.Reason,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Damage{}, err
	}

	s.afterWrite(ctx, scope, input.ActorID, "damages:create", damage.ID, itemIDs(input.Lines))
	return damage, nil
}

// SoftDelete marks a damage and its details Deleted, restoring the
// derived stock the rows had removed.
func (s *Service) SoftDelete(ctx context.Context, scope shared.TenantScope, damageID, actorID int64) error {
	var affected []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids, err := tx.SoftDeleteDamage(ctx, scope, damageID)
		if err != nil {
			return err
		}
		affected = ids
		return nil
	})
	if err != nil {
		return err
	}
	s.afterWrite(ctx, scope, actorID, "damages:delete", damageID, affected)
	return nil
}

// Get returns one live damage with details.
func (s *Service) Get(ctx context.Context, scope shared.TenantScope, id int64) (Damage, []DamageDetail, error) {
	return s.repo.Get(ctx, scope, id)
}

// List returns live damages newest first.
func (s *Service) List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]Damage, error) {
	return s.repo.List(ctx, scope, limit, offset)
}

// validate checks every line and returns the resolved per-line unit
// costs, falling back to the item's last purchase price.
func (s *Service) validate(ctx context.Context, scope shared.TenantScope, input CreateInput) ([]decimal.Decimal, error) {
	var msgs []string
	if input.DamageDate.IsZero() {
		msgs = append(msgs, "damage date is required")
	}
	if len(input.Lines) == 0 {
		msgs = append(msgs, "at least one line is required")
	}
	costs := make([]decimal.Decimal, len(input.Lines))
	for i, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			msgs = append(msgs, fmt.Sprintf("line %d: quantity must be positive", i+1))
			continue
		}
		item, err := s.catalog.Get(ctx, scope, line.ItemID)
		if err != nil {
			return nil, fmt.Errorf("line %d item %d: %w", i+1, line.ItemID, err)
		}
		if item.Type != catalog.ItemTypeProduct {
			msgs = append(msgs, fmt.Sprintf("line %d: item %d is not a product", i+1, line.ItemID))
			continue
		}
		costs[i] = line.UnitCost
		if costs[i].IsZero() {
			costs[i] = item.LastPurchasePrice
		}
	}
	if len(msgs) > 0 {
		return nil, shared.NewValidationError(msgs...)
	}
	return costs, nil
}

func (s *Service) afterWrite(ctx context.Context, scope shared.TenantScope, actorID int64, action string, entityID int64, items []int64) {
	if s.stock != nil && len(items) > 0 {
		if err := s.stock.Invalidate(ctx, scope.CompanyID, items...); err != nil && s.logger != nil {
			s.logger.Warn("invalidate stock cache", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			CompanyID: scope.CompanyID,
			ActorID:   actorID,
			Action:    action,
			Entity:    "damage",
			EntityID:  strconv.FormatInt(entityID, 10),
			Meta:      map[string]any{"items": items},
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
		}
	}
}

func itemIDs(lines []LineInput) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	return ids
}
