package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/medalyze/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache + cleanup.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rc, err := cache.NewRedisCache("redis://" + host + ":" + port.Port())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	return rc
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := cache.NewRedisCache("not a url")
	assert.Error(t, err)
}

// --- Redis ---

func TestRedis_Ping(t *testing.T) {
	rc := setupRedis(t)
	assert.NoError(t, rc.Ping(context.Background()))
}

func TestRedis_SetGetDelete(t *testing.T) {
	rc := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "test:key", []byte("hello"), 10*time.Second))

	val, found, err := rc.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), val)

	require.NoError(t, rc.Delete(ctx, "test:key"))

	val, found, err = rc.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestRedis_TTLExpiry(t *testing.T) {
	rc := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "expiry:key", []byte("temp"), 1*time.Second))

	time.Sleep(1500 * time.Millisecond)

	_, found, err := rc.Get(ctx, "expiry:key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_IncrWithExpiry(t *testing.T) {
	rc := setupRedis(t)
	ctx := context.Background()
	key := cache.RateLimitKey("test:" + uuid.NewString()[:8])

	for want := int64(1); want <= 3; want++ {
		val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, val)
	}
}

// --- Memory ---

func TestMemory_SetGetDelete(t *testing.T) {
	mc := cache.NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, mc.Ping(ctx))
	require.NoError(t, mc.Set(ctx, "k", []byte("v"), time.Minute))

	val, found, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, mc.Delete(ctx, "k"))
	_, found, err = mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	mc := cache.NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("abc"), 0))
	val, _, _ := mc.Get(ctx, "k")
	val[0] = 'z'

	again, _, _ := mc.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemory_IncrWithExpiry(t *testing.T) {
	mc := cache.NewMemoryCache()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		val, err := mc.IncrWithExpiry(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, val)
	}
}

// --- Key builders ---

func TestSessionKey(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "session:11111111-1111-1111-1111-111111111111:results", cache.SessionKey(id))
}

func TestAnswerKey(t *testing.T) {
	assert.Equal(t, "analysis:answer:A-42", cache.AnswerKey("A-42"))
}

func TestRateLimitKey(t *testing.T) {
	assert.Equal(t, "ratelimit:mdz_abcd", cache.RateLimitKey("mdz_abcd"))
}

func TestKeyBuilders_NonColliding(t *testing.T) {
	keys := map[string]bool{
		cache.SessionKey(uuid.New()): true,
		cache.AnswerKey("x"):         true,
		cache.RateLimitKey("x"):      true,
	}
	assert.Len(t, keys, 3, "all keys should be unique")
}
