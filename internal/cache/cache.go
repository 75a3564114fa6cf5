// Package cache provides a short-TTL Redis cache for compile results.
// Compilation is pure over (strategy content, card revisions), so results
// are keyed by strategy id and version: any strategy write bumps the
// version and naturally misses the cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stratdeck/stratdeck/internal/strategy"
)

// DefaultTTL bounds staleness from card edits that do not touch the
// strategy version.
const DefaultTTL = 30 * time.Second

// Client is the slice of the Redis API the cache uses; *redis.Client
// satisfies it, and tests substitute a fake.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CompileCache caches serialized compile results. A nil *CompileCache is a
// valid no-op cache, so callers never branch on whether Redis is configured.
type CompileCache struct {
	client Client
	ttl    time.Duration
	log    zerolog.Logger
}

// New creates a compile cache over a Redis client. Zero ttl means
// DefaultTTL.
func New(client Client, ttl time.Duration, log zerolog.Logger) *CompileCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CompileCache{client: client, ttl: ttl, log: log}
}

func compileKey(strategyID string, version int) string {
	return fmt.Sprintf("stratdeck:compile:%s:v%d", strategyID, version)
}

// Get returns the cached result for (strategyID, version), or (nil, false)
// on a miss. Redis failures degrade to a miss; the cache never breaks a
// compile.
func (c *CompileCache) Get(ctx context.Context, strategyID string, version int) (*strategy.Result, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, compileKey(strategyID, version)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("strategy_id", strategyID).Msg("compile cache read failed")
		}
		return nil, false
	}
	var res strategy.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.log.Warn().Err(err).Str("strategy_id", strategyID).Msg("compile cache entry corrupt")
		return nil, false
	}
	return &res, true
}

// Put stores a compile result under its strategy id and version.
func (c *CompileCache) Put(ctx context.Context, res *strategy.Result) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		c.log.Warn().Err(err).Str("strategy_id", res.StrategyID).Msg("compile cache encode failed")
		return
	}
	if err := c.client.Set(ctx, compileKey(res.StrategyID, res.StrategyVersion), data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("strategy_id", res.StrategyID).Msg("compile cache write failed")
	}
}

// Invalidate drops the cached result for one strategy version. Writes bump
// the version anyway; this exists for explicit cache busting on delete.
func (c *CompileCache) Invalidate(ctx context.Context, strategyID string, version int) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, compileKey(strategyID, version)).Err(); err != nil {
		c.log.Warn().Err(err).Str("strategy_id", strategyID).Msg("compile cache invalidate failed")
	}
}
