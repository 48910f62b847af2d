package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"meal-pipeline/internal/infrastructure/config"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type payload struct {
	Terms []string `json:"terms"`
}

func newTestCache(ttl time.Duration) (*ResultCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New("test", NewMemoryStore(10), ttl, WithClock(clock.Now)), clock
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "greek yogurt", NormalizeKey("  Greek   YOGURT \t"))
	assert.Equal(t, "", NormalizeKey("   "))
}

func TestGetNeverSetIsMiss(t *testing.T) {
	c, _ := newTestCache(30 * time.Minute)

	_, ok := c.Get(context.Background(), "chicken")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestSetThenGetUsesNormalizedKey(t *testing.T) {
	c, _ := newTestCache(30 * time.Minute)
	ctx := context.Background()

	c.Set(ctx, "Chicken  Breast", payload{Terms: []string{"a", "b"}})

	var got payload
	require.True(t, c.Load(ctx, "chicken breast", &got))
	assert.Equal(t, []string{"a", "b"}, got.Terms)
}

func TestEntryOlderThanTTLIsMiss(t *testing.T) {
	c, clock := newTestCache(30 * time.Minute)
	ctx := context.Background()

	c.Set(ctx, "oats", payload{Terms: []string{"oats"}})

	clock.Advance(29 * time.Minute)
	_, ok := c.Get(ctx, "oats")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get(ctx, "oats")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Expired)

	// 過期只在讀取時判斷，不會從儲存層刪除
	assert.Equal(t, 1, c.Stats().Size)
}

func TestLastWriteWins(t *testing.T) {
	c, clock := newTestCache(30 * time.Minute)
	ctx := context.Background()

	c.Set(ctx, "k", payload{Terms: []string{"old"}})
	clock.Advance(31 * time.Minute)
	c.Set(ctx, "K", payload{Terms: []string{"new"}})

	var got payload
	require.True(t, c.Load(ctx, "k", &got))
	assert.Equal(t, []string{"new"}, got.Terms)
}

func TestDisabledCache(t *testing.T) {
	c, _ := newTestCache(0)
	ctx := context.Background()

	c.Set(ctx, "k", payload{})
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Size)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *ResultCache
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	c.Set(context.Background(), "k", payload{})
	assert.NoError(t, c.Close())
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("storage unavailable")
}
func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("storage unavailable")
}
func (failingStore) Len() int     { return 0 }
func (failingStore) Close() error { return nil }

func TestStoreFailuresAreSwallowed(t *testing.T) {
	c := New("failing", failingStore{}, time.Minute)
	ctx := context.Background()

	assert.NotPanics(t, func() { c.Set(ctx, "k", payload{}) })
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, int64(2), c.Stats().Errors)
}

func TestCorruptEntryIsMiss(t *testing.T) {
	store := NewMemoryStore(10)
	require.NoError(t, store.Set(context.Background(), "k", []byte("not json")))
	c := New("corrupt", store, time.Minute)

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestMemoryStoreEvictsLeastUsed(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1")))
	require.NoError(t, store.Set(ctx, "b", []byte("2")))
	_, err := store.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "c", []byte("3")))

	assert.Equal(t, 2, store.Len())
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, int64(1), store.Evictions())

	c := New("search", store, time.Minute)
	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Equal(t, 2, c.Stats().Size)
}

func TestRedisKeysOutliveCacheTTL(t *testing.T) {
	assert.Equal(t, time.Hour, BackstopExpiration(30*time.Minute))
	assert.Equal(t, time.Duration(0), BackstopExpiration(0))

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	store := NewRedisStoreFromClient(client, "test:", BackstopExpiration(30*time.Minute))
	assert.Equal(t, time.Hour, store.expiration)
}

func TestUnreachableRedisDegradesToMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := New("redis", NewRedisStoreFromClient(client, "test:", BackstopExpiration(30*time.Minute)), 30*time.Minute)
	ctx := context.Background()

	c.Set(ctx, "chicken", payload{Terms: []string{"x"}})
	_, ok := c.Get(ctx, "chicken")
	assert.False(t, ok)
	assert.GreaterOrEqual(t, c.Stats().Errors, int64(2))
}

func TestNewCachesFallsBackToMemory(t *testing.T) {
	cfg := &config.CacheConfig{
		Backend:       "redis",
		RedisAddr:     "127.0.0.1:1",
		SearchTTL:     30 * time.Minute,
		SuggestionTTL: time.Minute,
		MaxSize:       10,
	}

	caches := NewCaches(context.Background(), cfg)
	defer caches.Close()

	_, isMemory := caches.Search.store.(*MemoryStore)
	assert.True(t, isMemory)

	caches.Search.Set(context.Background(), "k", payload{Terms: []string{"v"}})
	var got payload
	assert.True(t, caches.Search.Load(context.Background(), "k", &got))
}
