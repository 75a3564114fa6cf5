package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratdeck/stratdeck/internal/strategy"
)

// fakeRedis implements Client over a map, recording TTLs.
type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func testResult(version int) *strategy.Result {
	return &strategy.Result{
		StrategyID:      "s1",
		StrategyVersion: version,
		StatusHint:      strategy.StatusHintReady,
		CompiledAt:      time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func TestCompileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := New(fake, 0, zerolog.Nop())

	_, ok := c.Get(ctx, "s1", 3)
	assert.False(t, ok, "cold cache misses")

	c.Put(ctx, testResult(3))

	got, ok := c.Get(ctx, "s1", 3)
	require.True(t, ok)
	assert.Equal(t, "s1", got.StrategyID)
	assert.Equal(t, 3, got.StrategyVersion)

	// A version bump is a natural miss.
	_, ok = c.Get(ctx, "s1", 4)
	assert.False(t, ok)

	assert.Equal(t, DefaultTTL, fake.ttls["stratdeck:compile:s1:v3"])
}

func TestCompileCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := New(fake, time.Minute, zerolog.Nop())

	c.Put(ctx, testResult(1))
	c.Invalidate(ctx, "s1", 1)

	_, ok := c.Get(ctx, "s1", 1)
	assert.False(t, ok)
}

func TestCompileCacheNilIsNoop(t *testing.T) {
	var c *CompileCache
	_, ok := c.Get(context.Background(), "s1", 1)
	assert.False(t, ok)
	c.Put(context.Background(), testResult(1))
	c.Invalidate(context.Background(), "s1", 1)
}

func TestCompileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.data["stratdeck:compile:s1:v1"] = "{not json"
	c := New(fake, time.Minute, zerolog.Nop())

	_, ok := c.Get(ctx, "s1", 1)
	assert.False(t, ok, "corrupt entries degrade to a miss")
}
