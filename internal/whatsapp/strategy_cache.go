package whatsapp

import (
	"context"
	"errors"
	"time"

	"procurement_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// RedisStrategyCache stores winning strategies in Redis with a TTL so a
// gateway contract change is re-probed eventually.
type RedisStrategyCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisStrategyCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisStrategyCache {
	return &RedisStrategyCache{client: client, ttl: ttl, log: log}
}

func (c *RedisStrategyCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "strategy cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (c *RedisStrategyCache) Set(ctx context.Context, key, strategy string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, strategy, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "strategy cache write failed", "key", key, "error", err)
	}
}
