package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockLowStockScan scans every tenant for items at or below
	// their low stock threshold.
	TaskStockLowStockScan = "stock:low_stock_scan"
	// TaskStockCacheWarmup pre-derives product quantities into the
	// Redis stock cache.
	TaskStockCacheWarmup = "stock:cache_warmup"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// LowStockScanPayload scopes a scan to one company, or all when zero.
type LowStockScanPayload struct {
	CompanyID int64 `json:"company_id"`
}

// NewLowStockScanTask constructs an Asynq task for the low stock scan.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockLowStockScan, data), nil
}

// CacheWarmupPayload scopes a warmup to one company, or all when zero.
type CacheWarmupPayload struct {
	CompanyID int64 `json:"company_id"`
}

// NewCacheWarmupTask constructs an Asynq task for the cache warmup.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockCacheWarmup, data), nil
}

// IdempotencyCleanupPayload sets the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
