package stock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumapos/lumapos/internal/shared"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, 1, 10, decimal.RequireFromString("41.5")))

	qty, ok, err := cache.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, qty.Equal(decimal.RequireFromString("41.5")))
}

func TestCacheInvalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 1, 10, decimal.NewFromInt(7)))
	require.NoError(t, cache.Set(ctx, 1, 11, decimal.NewFromInt(8)))
	require.NoError(t, cache.Set(ctx, 2, 10, decimal.NewFromInt(9)))

	require.NoError(t, cache.Invalidate(ctx, 1, 10, 11))

	_, ok, err := cache.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = cache.Get(ctx, 1, 11)
	require.NoError(t, err)
	require.False(t, ok)

	// other tenant untouched
	qty, ok, err := cache.Get(ctx, 2, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, qty.Equal(decimal.NewFromInt(9)))
}

func TestServiceReadsThroughCache(t *testing.T) {
	cache := newTestCache(t)
	repo := newLedgerRepo()
	repo.purchases = append(repo.purchases, ledgerRow{1, shampooID, dec(30), shared.StatusLive})

	svc := NewService(repo, cache)
	ctx := context.Background()

	qty, err := svc.Quantity(ctx, scope, shampooID)
	require.NoError(t, err)
	require.True(t, qty.Equal(dec(30)))

	// A stale cached value keeps being served until invalidated; the cache
	// is deliberately not authoritative.
	repo.purchases = append(repo.purchases, ledgerRow{1, shampooID, dec(5), shared.StatusLive})
	qty, err = svc.Quantity(ctx, scope, shampooID)
	require.NoError(t, err)
	require.True(t, qty.Equal(dec(30)))

	require.NoError(t, svc.Invalidate(ctx, scope.CompanyID, shampooID))
	qty, err = svc.Quantity(ctx, scope, shampooID)
	require.NoError(t, err)
	require.True(t, qty.Equal(dec(35)))
}
