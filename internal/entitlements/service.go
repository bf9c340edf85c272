package entitlements

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/catalog"
	"github.com/lumapos/lumapos/internal/shared"
)

// RepositoryPort abstracts the usage ledger store.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Consumed(ctx context.Context, scope shared.TenantScope, customerID, packageID, saleID int64) (map[int64]decimal.Decimal, error)
	History(ctx context.Context, scope shared.TenantScope, customerID, packageID, saleID int64) ([]UsageRecord, error)
	SaleSoldPackage(ctx context.Context, scope shared.TenantScope, saleID, packageID int64) (bool, error)
}

// CatalogPort resolves package composition and item metadata.
type CatalogPort interface {
	Get(ctx context.Context, scope shared.TenantScope, id int64) (catalog.Item, error)
	ResolveComponents(ctx context.Context, scope shared.TenantScope, packageID int64) ([]catalog.Component, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts accepted and rejected usage batches.
type MetricsPort interface {
	UsageAccepted(lines int)
	UsageRejected()
}

// Service enforces entitlement ceilings over the append-only usage ledger.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	audit   AuditPort
	metrics MetricsPort
}

// NewService builds Service. audit and metrics may be nil.
func NewService(repo RepositoryPort, catalogPort CatalogPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, catalog: catalogPort, audit: audit, metrics: metrics}
}

// RecordUsage validates and inserts a redemption batch all-or-nothing.
// Each line is checked against a running per-component total across the
// batch, on top of the already-consumed ledger state, so two lines in one
// batch cannot jointly overconsume. Rejection leaves the ledger untouched.
func (s *Service) RecordUsage(ctx context.Context, scope shared.TenantScope, input RecordUsageInput) ([]int64, error) {
	if err := validateInput(input); err != nil {
		s.countRejected()
		return nil, err
	}

	pkg, err := s.catalog.Get(ctx, scope, input.PackageID)
	if err != nil {
		return nil, err
	}
	if pkg.Type != catalog.ItemTypePackage {
		return nil, fmt.Errorf("entitlements: item %d is not a package: %w", input.PackageID, shared.ErrIntegrity)
	}
	sold, err := s.repo.SaleSoldPackage(ctx, scope, input.SaleID, input.PackageID)
	if err != nil {
		return nil, err
	}
	if !sold {
		return nil, fmt.Errorf("entitlements: sale %d did not sell package %d: %w", input.SaleID, input.PackageID, shared.ErrNotFound)
	}
	components, err := s.catalog.ResolveComponents(ctx, scope, input.PackageID)
	if err != nil {
		return nil, err
	}
	entitled := make(map[int64]decimal.Decimal, len(components))
	for _, c := range components {
		entitled[c.ItemID] = c.Quantity
	}

	var inserted []int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockEntitlement(ctx, scope, input.SaleID, input.PackageID); err != nil {
			return err
		}
		consumed, err := tx.ConsumedByComponent(ctx, scope, input.CustomerID, input.PackageID, input.SaleID)
		if err != nil {
			return err
		}
		running := make(map[int64]decimal.Decimal, len(consumed))
		for itemID, qty := range consumed {
			running[itemID] = qty
		}

		var msgs []string
		for i, line := range input.Lines {
			ceiling, ok := entitled[line.ComponentItemID]
			if !ok {
				msgs = append(msgs, lineMsg(i, "item is not part of the package"))
				continue
			}
			remaining := ceiling.Sub(running[line.ComponentItemID])
			if line.Qty.GreaterThan(remaining) {
				msgs = append(msgs, lineMsg(i, fmt.Sprintf("requested %s exceeds remaining %s", line.Qty, remaining)))
				continue
			}
			running[line.ComponentItemID] = running[line.ComponentItemID].Add(line.Qty)
		}
		if len(msgs) > 0 {
			return shared.NewValidationError(msgs...)
		}

		for _, line := range input.Lines {
			id, err := tx.InsertUsage(ctx, scope, UsageRow{
				CustomerID:      input.CustomerID,
				PackageID:       input.PackageID,
				SaleID:          input.SaleID,
				ComponentItemID: line.ComponentItemID,
				Qty:             line.Qty,
				UsageDate:       line.UsageDate,
				UsageTime:       line.UsageTime,
			})
			if err != nil {
				return err
			}
			inserted = append(inserted, id)
		}
		return nil
	})
	if err != nil {
		s.countRejected()
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.UsageAccepted(len(input.Lines))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: scope.CompanyID,
			ActorID:   input.ActorID,
			Action:    "entitlements:record_usage",
			Entity:    "package_usage",
			EntityID:  strconv.FormatInt(input.SaleID, 10),
			Meta: map[string]any{
				"customer_id": input.CustomerID,
				"package_id":  input.PackageID,
				"lines":       len(input.Lines),
			},
		})
	}
	return inserted, nil
}

// GetSummary builds the customer-facing balance and history view.
func (s *Service) GetSummary(ctx context.Context, scope shared.TenantScope, customerID, packageID, saleID int64) (Summary, error) {
	components, err := s.catalog.ResolveComponents(ctx, scope, packageID)
	if err != nil {
		return Summary{}, err
	}
	if len(components) == 0 {
		return Summary{}, fmt.Errorf("entitlements: package %d has no components: %w", packageID, shared.ErrNotFound)
	}
	consumed, err := s.repo.Consumed(ctx, scope, customerID, packageID, saleID)
	if err != nil {
		return Summary{}, err
	}
	history, err := s.repo.History(ctx, scope, customerID, packageID, saleID)
	if err != nil {
		return Summary{}, err
	}

	balances := make([]ComponentBalance, 0, len(components))
	for _, c := range components {
		used := consumed[c.ItemID]
		balances = append(balances, ComponentBalance{
			ComponentItemID: c.ItemID,
			PurchasedQty:    c.Quantity,
			ConsumedQty:     used,
			RemainingQty:    c.Quantity.Sub(used),
		})
	}
	return Summary{Components: balances, History: history}, nil
}

func (s *Service) countRejected() {
	if s.metrics != nil {
		s.metrics.UsageRejected()
	}
}

func validateInput(input RecordUsageInput) error {
	var msgs []string
	if input.CustomerID == 0 {
		msgs = append(msgs, "customer is required")
	}
	if input.PackageID == 0 {
		msgs = append(msgs, "package is required")
	}
	if input.SaleID == 0 {
		msgs = append(msgs, "sale is required")
	}
	if len(input.Lines) == 0 {
		msgs = append(msgs, "at least one usage line is required")
	}
	for i, line := range input.Lines {
		if line.ComponentItemID == 0 {
			msgs = append(msgs, lineMsg(i, "item is required"))
		}
		if !line.Qty.IsPositive() {
			msgs = append(msgs, lineMsg(i, "quantity must be positive"))
		}
		if line.UsageDate.IsZero() {
			msgs = append(msgs, lineMsg(i, "usage date is required"))
		}
	}
	if len(msgs) > 0 {
		return shared.NewValidationError(msgs...)
	}
	return nil
}

func lineMsg(index int, msg string) string {
	return fmt.Sprintf("line %d: %s", index+1, msg)
}
