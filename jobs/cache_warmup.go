package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumapos/lumapos/internal/catalog"
	jobmetrics "github.com/lumapos/lumapos/internal/jobs"
	"github.com/lumapos/lumapos/internal/shared"
	"github.com/lumapos/lumapos/internal/stock"
)

// warmupPageSize is the catalog page size used when walking a tenant's
// full product list.
const warmupPageSize = 500

// CacheWarmupJob derives every product's quantity so the Redis cache is
// hot before store opening traffic arrives.
type CacheWarmupJob struct {
	Catalog *catalog.Service
	Stock   *stock.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(catalogSvc *catalog.Service, stockSvc *stock.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{Catalog: catalogSvc, Stock: stockSvc, Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes cache warmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStockCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	companies, err := j.companies(ctx, payload.CompanyID)
	if err != nil {
		resultErr = err
		j.logger().Error("load warmup companies", slog.Any("error", err))
		return resultErr
	}

	warmed := 0
	for _, companyID := range companies {
		scope := shared.TenantScope{CompanyID: companyID}
		for page := 1; ; page++ {
			items, _, err := j.Catalog.List(ctx, scope, catalog.ListFilters{
				Type:  catalog.ItemTypeProduct,
				Page:  page,
				Limit: warmupPageSize,
			})
			if err != nil {
				resultErr = err
				return resultErr
			}
			for _, item := range items {
				if _, err := j.Stock.Quantity(ctx, scope, item.ID); err != nil {
					resultErr = err
					j.logger().Error("warm item",
						slog.Int64("company_id", companyID),
						slog.Int64("item_id", item.ID),
						slog.Any("error", err))
					return resultErr
				}
				warmed++
			}
			if len(items) < warmupPageSize {
				break
			}
		}
	}
	j.logger().Info("stock cache warmed", slog.Int("items", warmed))
	return resultErr
}

func (j *CacheWarmupJob) companies(ctx context.Context, companyID int64) ([]int64, error) {
	if companyID > 0 {
		return []int64{companyID}, nil
	}
	rows, err := j.Pool.Query(ctx,
		`SELECT id FROM companies WHERE del_status = $1 ORDER BY id`,
		string(shared.StatusLive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
