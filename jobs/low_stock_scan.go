package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/lumapos/lumapos/internal/jobs"
	"github.com/lumapos/lumapos/internal/reports"
	"github.com/lumapos/lumapos/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockScanJob derives stock for every product and logs items at or
// below their threshold, per tenant.
type LowStockScanJob struct {
	Reports *reports.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(reportsSvc *reports.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Reports: reportsSvc, Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes low stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStockLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	companies, err := j.companies(ctx, payload.CompanyID)
	if err != nil {
		resultErr = err
		j.logger().Error("load scan companies", slog.Any("error", err))
		return resultErr
	}

	for _, companyID := range companies {
		scope := shared.TenantScope{CompanyID: companyID}
		alerts, err := j.Reports.LowStockAlerts(ctx, scope)
		if err != nil {
			resultErr = err
			j.logger().Error("low stock scan", slog.Int64("company_id", companyID), slog.Any("error", err))
			return resultErr
		}
		j.metrics().AddLowStockAlerts(companyID, len(alerts))
		for _, alert := range alerts {
			j.logger().Warn("low stock",
				slog.Int64("company_id", companyID),
				slog.Int64("item_id", alert.ItemID),
				slog.String("code", alert.Code),
				slog.String("quantity", alert.Quantity.String()),
				slog.String("threshold", alert.Threshold.String()))
		}
	}
	return resultErr
}

// companies resolves the tenant list for a scan. A non-zero company id
// narrows the scan to that tenant.
func (j *LowStockScanJob) companies(ctx context.Context, companyID int64) ([]int64, error) {
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

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
