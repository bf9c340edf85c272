package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Cache is a Redis-backed read-through cache of derived quantities. It is
// invalidated on every ledger write and short-lived besides, so a missed
// invalidation self-heals.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds Cache. A non-positive ttl falls back to 30 seconds.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(companyID, itemID int64) string {
	return fmt.Sprintf("stock:%d:%d", companyID, itemID)
}

// Get returns the cached quantity, reporting whether it was present.
func (c *Cache) Get(ctx context.Context, companyID, itemID int64) (decimal.Decimal, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(companyID, itemID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	qty, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, nil
	}
	return qty, true, nil
}

// Set stores a derived quantity.
func (c *Cache) Set(ctx context.Context, companyID, itemID int64, qty decimal.Decimal) error {
	return c.client.Set(ctx, cacheKey(companyID, itemID), qty.String(), c.ttl).Err()
}

// Invalidate removes cached quantities for the given items.
func (c *Cache) Invalidate(ctx context.Context, companyID int64, itemIDs ...int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		keys = append(keys, cacheKey(companyID, itemID))
	}
	return c.client.Del(ctx, keys...).Err()
}
