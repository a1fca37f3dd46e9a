package cache

import (
	"context"
	"testing"
	"time"

	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func verdictFor(sender string, expiresAt time.Time) *core.CachedVerdict {
	return &core.CachedVerdict{
		Sender:     sender,
		Label:      core.LabelSpam,
		Confidence: 0.9,
		Strategy:   core.StrategyModel,
		LastSeen:   time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
}

func newTestCache(t *testing.T) *MemoryCache {
	t.Helper()
	cache := NewMemoryCache(zap.NewNop(), time.Hour)
	t.Cleanup(cache.Stop)
	return cache
}

func TestMemoryCacheSetAndGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	stored := verdictFor("a@x.test", time.Now().Add(time.Hour))
	require.NoError(t, cache.Set(ctx, stored))

	got, err := cache.Get(ctx, "a@x.test")
	require.NoError(t, err)
	assert.Equal(t, core.LabelSpam, got.Label)
	assert.Equal(t, core.StrategyModel, got.Strategy)

	// The returned verdict is a copy.
	got.Label = core.LabelHam
	again, err := cache.Get(ctx, "a@x.test")
	require.NoError(t, err)
	assert.Equal(t, core.LabelSpam, again.Label)
}

func TestMemoryCacheMissReturnsErrNotFound(t *testing.T) {
	cache := newTestCache(t)

	_, err := cache.Get(context.Background(), "nobody@x.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheExpiredVerdictIsAMiss(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, verdictFor("a@x.test", time.Now().Add(-time.Minute))))

	_, err := cache.Get(ctx, "a@x.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheDelete(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, verdictFor("a@x.test", time.Now().Add(time.Hour))))
	require.NoError(t, cache.Delete(ctx, "a@x.test"))

	_, err := cache.Get(ctx, "a@x.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCacheCleanupDropsOnlyExpired(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, verdictFor("fresh@x.test", time.Now().Add(time.Hour))))
	require.NoError(t, cache.Set(ctx, verdictFor("stale@x.test", time.Now().Add(-time.Minute))))

	require.NoError(t, cache.Cleanup(ctx))

	_, err := cache.Get(ctx, "fresh@x.test")
	assert.NoError(t, err)
	_, err = cache.Get(ctx, "stale@x.test")
	assert.ErrorIs(t, err, ErrNotFound)
}
