package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, scope shared.TenantScope, id int64) (Sale, []SaleDetail, error)
	List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]Sale, error)
}

// CatalogPort resolves items and package composition for sale lines.
type CatalogPort interface {
	Get(ctx context.Context, scope shared.TenantScope, id int64) (catalog.Item, error)
	ResolveComponents(ctx context.Context, scope shared.TenantScope, packageID int64) ([]catalog.Component, error)
}

// StockInvalidator drops cached derived quantities after ledger writes.
type StockInvalidator interface {
	Invalidate(ctx context.Context, companyID int64, itemIDs ...int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards duplicate document posts. A key inserted for a
// transaction that later fails must be deleted so the client can retry.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, scope shared.TenantScope, key, module string) error
	Delete(ctx context.Context, scope shared.TenantScope, key string) error
}

// Service records sales. Selling a package touches the stock of its
// components, so cache invalidation fans out through the bill of
// materials rather than stopping at the package item itself.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	stock       StockInvalidator
	audit       AuditPort
	idempotency IdempotencyPort
	logger      *slog.Logger
}

// NewService builds Service. stock, audit, idempotency and logger may be nil.
func NewService(repo RepositoryPort, catalogPort CatalogPort, stock StockInvalidator, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalogPort, stock: stock, audit: audit, idempotency: idem, logger: logger}
}

// Create records header and lines in one transaction. Any item type can
// be sold: Products deplete their own stock, Packages deplete component
// stock at derivation time, Services have no stock effect.
func (s *Service) Create(ctx context.Context, scope shared.TenantScope, input CreateInput) (Sale, error) {
	affected, err := s.validate(ctx, scope, input)
	if err != nil {
		return Sale{}, err
	}
	if input.Number == "" {
		input.Number = shared.NewDocumentNumber("SAL")
	}
	key := fmt.Sprintf("sale:%s", input.Number)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, scope, key, "sales"); err != nil {
			return Sale{}, err
		}
		insertedKey = true
	}

	sale := Sale{
		Number:     input.Number,
		CustomerID: input.CustomerID,
		SaleDate:   input.SaleDate,
		Note:       input.Note,
		CreatedBy:  input.ActorID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		saleID, err := tx.InsertSale(ctx, scope, sale)
		if err != nil {
			return err
		}
		sale.ID = saleID
		for _, line := range input.Lines {
			_, err := tx.InsertSaleDetail(ctx, scope, SaleDetail{
				SaleID:     saleID,
				ItemID:     line.ItemID,
				Quantity:   line.Quantity,
				UnitPrice:  line.UnitPrice,
				EmployeeID: line.EmployeeID,
				IsFree:     line.IsFree,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The key must not outlive the rolled-back transaction or a
		// corrected resubmission would be rejected as a duplicate.
		if insertedKey {
			_ = s.idempotency.Delete(ctx, scope, key)
		}
		return Sale{}, err
	}

	s.afterWrite(ctx, scope, input.ActorID, "sales:create", sale.ID, affected)
	return sale, nil
}

// SoftDelete marks a sale and its details Deleted. Package lines need
// their components invalidated, not the package item itself.
func (s *Service) SoftDelete(ctx context.Context, scope shared.TenantScope, saleID, actorID int64) error {
	var soldItems []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids, err := tx.SoftDeleteSale(ctx, scope, saleID)
		if err != nil {
			return err
		}
		soldItems = ids
		return nil
	})
	if err != nil {
		return err
	}

	affected, err := s.stockAffected(ctx, scope, soldItems)
	if err != nil {
		affected = soldItems
	}
	s.afterWrite(ctx, scope, actorID, "sales:delete", saleID, affected)
	return nil
}

// Get returns one live sale with details.
func (s *Service) Get(ctx context.Context, scope shared.TenantScope, id int64) (Sale, []SaleDetail, error) {
	return s.repo.Get(ctx, scope, id)
}

// List returns live sales newest first.
func (s *Service) List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]Sale, error) {
	return s.repo.List(ctx, scope, limit, offset)
}

// validate checks every line and returns the stock-affected item ids:
// the product itself for Product lines, the components for Package
// lines, nothing for Service lines.
func (s *Service) validate(ctx context.Context, scope shared.TenantScope, input CreateInput) ([]int64, error) {
	var msgs []string
	if input.SaleDate.IsZero() {
		msgs = append(msgs, "sale date is required")
	}
	if len(input.Lines) == 0 {
		msgs = append(msgs, "at least one line is required")
	}
	var affected []int64
	seen := make(map[int64]bool)
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			affected = append(affected, id)
		}
	}
	for i, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			msgs = append(msgs, fmt.Sprintf("line %d: quantity must be positive", i+1))
			continue
		}
		if line.UnitPrice.IsNegative() {
			msgs = append(msgs, fmt.Sprintf("line %d: unit price must not be negative", i+1))
		}
		item, err := s.catalog.Get(ctx, scope, line.ItemID)
		if err != nil {
			return nil, fmt.Errorf("line %d item %d: %w", i+1, line.ItemID, err)
		}
		switch item.Type {
		case catalog.ItemTypeProduct:
			add(item.ID)
		case catalog.ItemTypePackage:
			components, err := s.catalog.ResolveComponents(ctx, scope, item.ID)
			if err != nil {
				return nil, err
			}
			for _, c := range components {
				add(c.ItemID)
			}
		case catalog.ItemTypeService:
			// no stock effect
		}
	}
	if len(msgs) > 0 {
		return nil, shared.NewValidationError(msgs...)
	}
	return affected, nil
}

// stockAffected maps sold item ids to the items whose derived stock they
// move, expanding packages into their components.
func (s *Service) stockAffected(ctx context.Context, scope shared.TenantScope, soldItems []int64) ([]int64, error) {
	var affected []int64
	seen := make(map[int64]bool)
	for _, id := range soldItems {
		item, err := s.catalog.Get(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		switch item.Type {
		case catalog.ItemTypeProduct:
			if !seen[id] {
				seen[id] = true
				affected = append(affected, id)
			}
		case catalog.ItemTypePackage:
			components, err := s.catalog.ResolveComponents(ctx, scope, id)
			if err != nil {
				return nil, err
			}
			for _, c := range components {
				if !seen[c.ItemID] {
					seen[c.ItemID] = true
					affected = append(affected, c.ItemID)
				}
			}
		}
	}
	return affected, nil
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
			Entity:    "sale",
			EntityID:  strconv.FormatInt(entityID, 10),
			Meta:      map[string]any{"items": items},
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
		}
	}
}
