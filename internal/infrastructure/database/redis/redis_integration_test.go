//go:build integration

package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/haven/internal/domain/presence"
	"github.com/havenloop/haven/internal/infrastructure/database/redis"
	"github.com/havenloop/haven/internal/testutil"
	"github.com/havenloop/haven/pkg/types/geo"
)

// Requires a reachable Redis; set HAVEN_TEST_REDIS_ADDR, e.g. localhost:6379.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("HAVEN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HAVEN_TEST_REDIS_ADDR not set")
	}
	return redis.NewClientWithRedis(goredis.NewClient(&goredis.Options{Addr: addr}), testutil.NewMockLogger())
}

func TestCache_RoundTripAndExpiry(t *testing.T) {
	client := testClient(t)
	defer client.Close()
	cache := redis.NewCache(client, "haven-test:", time.Minute, testutil.NewMockLogger())
	ctx := context.Background()

	key := "cache-" + time.Now().Format("150405.000000")
	require.NoError(t, cache.Set(ctx, key, map[string]int{"n": 7}, time.Minute))

	var got map[string]int
	require.NoError(t, cache.Get(ctx, key, &got))
	assert.Equal(t, 7, got["n"])

	require.NoError(t, cache.Delete(ctx, key))
	exists, err := cache.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCache_GetOrSetLoadsOnce(t *testing.T) {
	client := testClient(t)
	defer client.Close()
	cache := redis.NewCache(client, "haven-test:", time.Minute, testutil.NewMockLogger())
	ctx := context.Background()

	key := "loader-" + time.Now().Format("150405.000000")
	loads := 0
	loader := func(ctx context.Context) (interface{}, error) {
		loads++
		return "value", nil
	}

	var got string
	require.NoError(t, cache.GetOrSet(ctx, key, &got, time.Minute, loader))
	require.NoError(t, cache.GetOrSet(ctx, key, &got, time.Minute, loader))
	assert.Equal(t, "value", got)
	assert.Equal(t, 1, loads)
}

func TestDistributedLock_MutualExclusion(t *testing.T) {
	client := testClient(t)
	defer client.Close()
	factory := redis.NewLockFactory(client, testutil.NewMockLogger())
	ctx := context.Background()

	name := "lock-" + time.Now().Format("150405.000000")
	first := factory.NewMutex(name)
	require.NoError(t, first.Lock(ctx))

	second := factory.NewMutex(name)
	ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock(ctx))
	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock(ctx))
}

func TestPresenceCache_ReadThroughBackfill(t *testing.T) {
	client := testClient(t)
	defer client.Close()
	cache := redis.NewCache(client, "haven-test:", time.Minute, testutil.NewMockLogger())
	inner := testutil.NewMemPresenceRepo()
	repo := redis.NewPresenceCache(inner, cache, 30*time.Second, testutil.NewMockLogger())
	ctx := context.Background()

	memberID := "member-" + time.Now().Format("150405.000000")
	require.NoError(t, inner.Save(ctx, &presence.Presence{
		MemberID: memberID,
		Location: geo.Point{Lat: 48.85, Lng: 2.35},
		Battery:  80,
		LastSeen: time.Now().UTC(),
	}))

	// First read misses the cache and backfills from the inner store.
	got, err := repo.Get(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, memberID, got.MemberID)

	// Second read is served from the cache.
	got, err = repo.Get(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 80, got.Battery)
}
