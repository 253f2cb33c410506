package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/pageflow/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr := miniredis.RunT(t)

	cfg := Config{
		Addr:       mr.Addr(),
		DefaultTTL: 1 * time.Minute,
	}

	manager, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager(t *testing.T) {
	_, manager := setupTestRedis(t)

	assert.NotNil(t, manager.redis)
	assert.NotNil(t, manager.logger)
}

func TestNewManager_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.MaxRetries = 0
	cfg.HealthCheckInterval = 0

	_, err := NewManager(cfg, nil)
	assert.Error(t, err)
}

func TestManager_SetAndGet(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", time.Minute))

	value, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestManager_GetMiss(t *testing.T) {
	_, manager := setupTestRedis(t)

	_, err := manager.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.True(t, IsCacheMiss(err))
	assert.True(t, IsCacheMiss(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsCacheMiss(nil))
}

func TestManager_Delete(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", 0))
	require.NoError(t, manager.Set(ctx, "b", "2", 0))
	require.NoError(t, manager.Delete(ctx, "a", "b"))
	require.NoError(t, manager.Delete(ctx))

	_, err := manager.Get(ctx, "a")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	records := []map[string]string{{"title": "Item 1", "price": ""}}
	require.NoError(t, manager.SetJSON(ctx, "records", records, 0))

	var got []map[string]string
	require.NoError(t, manager.GetJSON(ctx, "records", &got))
	assert.Equal(t, records, got)

	t.Run("miss", func(t *testing.T) {
		var dest []map[string]string
		err := manager.GetJSON(ctx, "nope", &dest)
		assert.True(t, IsCacheMiss(err))
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		err := manager.SetJSON(ctx, "bad", make(chan int), 0)
		assert.Error(t, err)
	})

	t.Run("corrupt entry", func(t *testing.T) {
		require.NoError(t, manager.Set(ctx, "corrupt", "{not json", 0))
		var dest []map[string]string
		err := manager.GetJSON(ctx, "corrupt", &dest)
		require.Error(t, err)
		assert.False(t, IsCacheMiss(err))
	})
}

func TestManager_DefaultTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "ttl", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("ttl"))

	mr.FastForward(2 * time.Minute)
	_, err := manager.Get(ctx, "ttl")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_PurgePrefix(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, manager.Set(ctx, fmt.Sprintf("pageflow:html:%d", i), "x", 0))
	}
	require.NoError(t, manager.Set(ctx, "other:key", "y", 0))

	n, err := manager.PurgePrefix(ctx, "pageflow:")
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestManager_Closed(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := NewManager(Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	ctx := context.Background()
	_, err = manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "k", "v", 0), ErrClosed)
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	_, err = manager.PurgePrefix(ctx, "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_HealthCheckLoopStops(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := NewManager(Config{Addr: mr.Addr(), HealthCheckInterval: 10 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, manager.Close())
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id)
			assert.NoError(t, manager.Set(ctx, key, "value", time.Minute))
			_, err := manager.Get(ctx, key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

// =============================================================================
// 📊 统计与配置
// =============================================================================

func TestParseInfo(t *testing.T) {
	info := "# Stats\r\n" +
		"keyspace_hits:42\r\n" +
		"keyspace_misses:7\r\n" +
		"\r\n" +
		"# Memory\r\n" +
		"used_memory:1048576\r\n" +
		"maxmemory:0\r\n" +
		"# Clients\r\n" +
		"connected_clients:3\r\n" +
		"garbage line\r\n"

	stats := parseInfo(info)
	assert.Equal(t, uint64(42), stats.Hits)
	assert.Equal(t, uint64(7), stats.Misses)
	assert.Equal(t, int64(1048576), stats.UsedMemory)
	assert.Equal(t, int64(0), stats.MaxMemory)
	assert.Equal(t, 3, stats.Connections)
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.CacheConfig{
		Addr:     "redis:6380",
		Password: "secret",
		DB:       2,
		PoolSize: 0,
		TTL:      time.Hour,
		TLS:      true,
	})

	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, DefaultConfig().PoolSize, cfg.PoolSize)
	assert.Equal(t, time.Hour, cfg.DefaultTTL)
	assert.Zero(t, cfg.HealthCheckInterval)
	assert.True(t, cfg.TLS)
}
