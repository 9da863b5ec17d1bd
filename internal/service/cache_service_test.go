package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

type memoryCache struct {
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

func TestCachedLoadsOnceThenHits(t *testing.T) {
	metrics := NewMetricsService()
	cache := NewCacheService(newMemoryCache(), metrics, time.Minute, nil, true)
	calls := 0
	load := func() (map[string]int, error) {
		calls++
		return map[string]int{"total": 3}, nil
	}

	first, err := cached(context.Background(), cache, "stats:reports:all", load)
	require.NoError(t, err)
	second, err := cached(context.Background(), cache, "stats:reports:all", load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)

	cache.Invalidate(context.Background(), cacheKeyReportStats)
	_, err = cached(context.Background(), cache, "stats:reports:all", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedDisabledAlwaysLoads(t *testing.T) {
	var cache *CacheService
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := cached(context.Background(), cache, "k", func() (int, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "stats:reports:all", cacheKey(cacheKeyReportStats, ""))
	assert.Equal(t, "stats:supervisions:s1:all", cacheKey(cacheKeySupervisionStats, "s1", ""))
}
