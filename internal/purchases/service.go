package purchases

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
	Get(ctx context.Context, scope shared.TenantScope, id int64) (Purchase, []PurchaseDetail, error)
	List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]Purchase, error)
}

// CatalogPort resolves items referenced by purchase lines.
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

// IdempotencyPort guards duplicate document posts. A key inserted for a
// transaction that later fails must be deleted so the client can retry.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, scope shared.TenantScope, key, module string) error
	Delete(ctx context.Context, scope shared.TenantScope, key string) error
}

// Service records purchases and maintains per-item cost snapshots.
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

// costHistoryDepth is how many recent purchase prices feed the average.
const costHistoryDepth = 3

// Create records header and lines in one transaction and recomputes the
// cost snapshot of every purchased item inside that same transaction.
func (s *Service) Create(ctx context.Context, scope shared.TenantScope, input CreateInput) (Purchase, error) {
	if err := s.validate(ctx, scope, input); err != nil {
		return Purchase{}, err
	}
	if input.Number == "" {
		input.Number = shared.NewDocumentNumber("PUR")
	}
	key := fmt.Sprintf("purchase:%s", input.Number)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, scope, key, "purchases"); err != nil {
			return Purchase{}, err
		}
		insertedKey = true
	}

	purchase := Purchase{
		Number:       input.Number,
		SupplierID:   input.SupplierID,
		PurchaseDate: input.PurchaseDate,
		Note:         input.Note,
		CreatedBy:    input.ActorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		purchaseID, err := tx.InsertPurchase(ctx, scope, purchase)
		if err != nil {
			return err
		}
		purchase.ID = purchaseID
		for _, line := range input.Lines {
			_, err := tx.InsertPurchaseDetail(ctx, scope, PurchaseDetail{
				PurchaseID: purchaseID,
				ItemID:     line.ItemID,
				Quantity:   line.Quantity,
				UnitPrice:  line.UnitPrice,
			})
			if err != nil {
				return err
			}
			// Snapshot after the insert so this line is the most recent.
			prices, err := tx.RecentUnitPrices(ctx, scope, line.ItemID, costHistoryDepth)
			if err != nil {
				return err
			}
			if err := tx.UpdateCostSnapshot(ctx, scope, line.ItemID, line.UnitPrice, mean(prices)); err != nil {
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
		return Purchase{}, err
	}

	s.afterWrite(ctx, scope, input.ActorID, "purchases:create", purchase.ID, itemIDs(input.Lines))
	return purchase, nil
}

// SoftDelete marks a purchase and its details Deleted. Derived stock drops
// automatically because the derivation only reads Live rows.
func (s *Service) SoftDelete(ctx context.Context, scope shared.TenantScope, purchaseID, actorID int64) error {
	var affected []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids, err := tx.SoftDeletePurchase(ctx, scope, purchaseID)
		if err != nil {
			return err
		}
		affected = ids
		return nil
	})
	if err != nil {
		return err
	}
	s.afterWrite(ctx, scope, actorID, "purchases:delete", purchaseID, affected)
	return nil
}

// Get loads one purchase with details.
func (s *Service) Get(ctx context.Context, scope shared.TenantScope, id int64) (Purchase, []PurchaseDetail, error) {
	return s.repo.Get(ctx, scope, id)
}

// List returns recent purchases.
func (s *Service) List(ctx context.Context, scope shared.TenantScope, limit, offset int) ([]Purchase, error) {
	return s.repo.List(ctx, scope, limit, offset)
}

func (s *Service) validate(ctx context.Context, scope shared.TenantScope, input CreateInput) error {
	var msgs []string
	if len(input.Lines) == 0 {
		msgs = append(msgs, "at least one purchase line is required")
	}
	if input.PurchaseDate.IsZero() {
		msgs = append(msgs, "purchase date is required")
	}
	for i, line := range input.Lines {
		prefix := "line " + strconv.Itoa(i+1) + ": "
		if !line.Quantity.IsPositive() {
			msgs = append(msgs, prefix+"quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			msgs = append(msgs, prefix+"unit price must not be negative")
		}
		item, err := s.catalog.Get(ctx, scope, line.ItemID)
		if err != nil {
			msgs = append(msgs, prefix+"item not found")
			continue
		}
		if item.Type != catalog.ItemTypeProduct {
			msgs = append(msgs, prefix+"only products can be purchased")
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
			Entity:    "purchase",
			EntityID:  strconv.FormatInt(entityID, 10),
			Meta:      map[string]any{"items": items},
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
		}
	}
}

func mean(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, p := range prices {
		total = total.Add(p)
	}
	return total.Div(decimal.NewFromInt(int64(len(prices))))
}

func itemIDs(lines []LineInput) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	return ids
}
