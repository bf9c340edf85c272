package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lumapos/lumapos/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalog operations.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create validates and persists a new item.
func (s *Service) Create(ctx context.Context, scope shared.TenantScope, item Item) (Item, error) {
	if err := validateItem(item); err != nil {
		return Item{}, err
	}
	created, err := s.repo.Create(ctx, scope, item)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, scope, "catalog:create", "item", created.ID, map[string]any{
		"name": created.Name,
		"type": string(created.Type),
	})
	return created, nil
}

// Update changes mutable fields of an item. Identity and type are fixed.
func (s *Service) Update(ctx context.Context, scope shared.TenantScope, id int64, item Item) error {
	if err := validateItem(item); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, scope, id, item); err != nil {
		return err
	}
	s.recordAudit(ctx, scope, "catalog:update", "item", id, map[string]any{"name": item.Name})
	return nil
}

// SoftDelete marks an item Deleted. Ledger rows referencing it remain but
// the item stops appearing in listings and aggregates over items.
func (s *Service) SoftDelete(ctx context.Context, scope shared.TenantScope, id int64) error {
	if err := s.repo.SoftDelete(ctx, scope, id); err != nil {
		return err
	}
	s.recordAudit(ctx, scope, "catalog:delete", "item", id, nil)
	return nil
}

// Get fetches a single live item.
func (s *Service) Get(ctx context.Context, scope shared.TenantScope, id int64) (Item, error) {
	return s.repo.Get(ctx, scope, id)
}

// List returns live items with pagination metadata.
func (s *Service) List(ctx context.Context, scope shared.TenantScope, filters ListFilters) ([]Item, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, scope, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// ReplaceComponents swaps a package's bill-of-materials wholesale. Partial
// merges are not supported.
func (s *Service) ReplaceComponents(ctx context.Context, scope shared.TenantScope, packageID int64, components []Component) error {
	pkg, err := s.repo.Get(ctx, scope, packageID)
	if err != nil {
		return err
	}
	if pkg.Type != ItemTypePackage {
		return fmt.Errorf("%w: item %d has type %s", ErrNotPackage, packageID, pkg.Type)
	}
	var msgs []string
	seen := make(map[int64]bool, len(components))
	for i, c := range components {
		if c.ItemID == 0 {
			msgs = append(msgs, "line "+strconv.Itoa(i+1)+": item is required")
			continue
		}
		if !c.Quantity.IsPositive() {
			msgs = append(msgs, "line "+strconv.Itoa(i+1)+": quantity must be positive")
		}
		if seen[c.ItemID] {
			msgs = append(msgs, "line "+strconv.Itoa(i+1)+": duplicate component item")
		}
		seen[c.ItemID] = true
		component, err := s.repo.Get(ctx, scope, c.ItemID)
		if err != nil {
			msgs = append(msgs, "line "+strconv.Itoa(i+1)+": component item not found")
			continue
		}
		if component.Type == ItemTypePackage {
			// Nested packages would make the stock multiplier ambiguous.
			msgs = append(msgs, "line "+strconv.Itoa(i+1)+": packages cannot contain packages")
		}
	}
	if len(msgs) > 0 {
		return shared.NewValidationError(msgs...)
	}
	if err := s.repo.ReplaceComponents(ctx, scope, packageID, components); err != nil {
		return err
	}
	s.recordAudit(ctx, scope, "catalog:replace_components", "item", packageID, map[string]any{
		"components": len(components),
	})
	return nil
}

// ResolveComponents enumerates the live bill-of-materials of a package.
func (s *Service) ResolveComponents(ctx context.Context, scope shared.TenantScope, packageID int64) ([]Component, error) {
	return s.repo.Components(ctx, scope, packageID)
}

// ResolveContainingPackages enumerates every live package bundling the item,
// each with its own per-package quantity.
func (s *Service) ResolveContainingPackages(ctx context.Context, scope shared.TenantScope, componentItemID int64) ([]PackageRef, error) {
	return s.repo.ContainingPackages(ctx, scope, componentItemID)
}

func (s *Service) recordAudit(ctx context.Context, scope shared.TenantScope, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: scope.CompanyID,
		Action:    action,
		Entity:    entity,
		EntityID:  strconv.FormatInt(id, 10),
		Meta:      meta,
	})
}

func validateItem(item Item) error {
	var msgs []string
	if strings.TrimSpace(item.Name) == "" {
		msgs = append(msgs, "item name is required")
	}
	if !item.Type.Valid() {
		msgs = append(msgs, "item type must be Product, Service or Package")
	}
	if item.SalePrice.IsNegative() {
		msgs = append(msgs, "sale price must not be negative")
	}
	if item.LowStockThreshold.IsNegative() {
		msgs = append(msgs, "low stock threshold must not be negative")
	}
	if len(msgs) > 0 {
		return shared.NewValidationError(msgs...)
	}
	return nil
}
