package productusage

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
	Get(ctx context.Context, scope shared.TenantScope, id int64) (ProductUsage, []ProductUsageDetail, error)
	List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]ProductUsage, error)
}

// CatalogPort resolves items referenced by usage lines.
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

// Service records internal product consumption. Each line names the
// employee who used the product, so consumption can be reported per
// staff member.
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

// Create records header and lines in one transaction.
func (s *Service) Create(ctx context.Context, scope shared.TenantScope, input CreateInput) (ProductUsage, error) {
	if err := s.validate(ctx, scope, input); err != nil {
		return ProductUsage{}, err
	}
	if input.Number == "" {
		input.Number = shared.NewDocumentNumber("USE")
	}

	usage := ProductUsage{
		Number:    input.Number,
		UsageDate: input.UsageDate,
		Note:      input.Note,
		CreatedBy: input.ActorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		usageID, err := tx.InsertUsage(ctx, scope, usage)
		if err != nil {
			return err
		}
		usage.ID = usageID
		for _, line := range input.Lines {
			_, err := tx.InsertUsageDetail(ctx, scope, ProductUsageDetail{
				ProductUsageID: usageID,
				ItemID:         line.ItemID,
				Quantity:       line.Quantity,
				EmployeeID:     line.EmployeeID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ProductUsage{}, err
	}

	s.afterWrite(ctx, scope, input.ActorID, "productusage:create", usage.ID, itemIDs(input.Lines))
	return usage, nil
}

// SoftDelete marks a usage and its details Deleted, restoring the
// derived stock the rows had removed.
func (s *Service) SoftDelete(ctx context.Context, scope shared.TenantScope, usageID, actorID int64) error {
	var affected []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids, err := tx.SoftDeleteUsage(ctx, scope, usageID)
		if err != nil {
			return err
		}
		affected = ids
		return nil
	})
	if err != nil {
		return err
	}
	s.afterWrite(ctx, scope, actorID, "productusage:delete", usageID, affected)
	return nil
}

// Get returns one live usage with details.
func (s *Service) Get(ctx context.Context, scope shared.TenantScope, id int64) (ProductUsage, []ProductUsageDetail, error) {
	return s.repo.Get(ctx, scope, id)
}

// List returns live usages newest first.
func (s *Service) List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]ProductUsage, error) {
	return s.repo.List(ctx, scope, limit, offset)
}

func (s *Service) validate(ctx context.Context, scope shared.TenantScope, input CreateInput) error {
	var msgs []string
	if input.UsageDate.IsZero() {
		msgs = append(msgs, "usage date is required")
	}
	if len(input.Lines) == 0 {
		msgs = append(msgs, "at least one line is required")
	}
	for i, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			msgs = append(msgs, fmt.Sprintf("line %d: quantity must be positive", i+1))
			continue
		}
		if line.EmployeeID == 0 {
			msgs = append(msgs, fmt.Sprintf("line %d: employee is required", i+1))
		}
		item, err := s.catalog.Get(ctx, scope, line.ItemID)
		if err != nil {
			return fmt.Errorf("line %d item %d: %w", i+1, line.ItemID, err)
		}
		if item.Type != catalog.ItemTypeProduct {
			msgs = append(msgs, fmt.Sprintf("line %d: item %d is not a product", i+1, line.ItemID))
		}
	}
	if len(msgs) > 0 {
		return shared.NewValidationError(msgs...)
	}
	return nil
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
			Entity:    "product_usage",
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
