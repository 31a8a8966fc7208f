package slots

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const generationKey = "slots:generation"

// Cache keeps computed slot results in redis. Keys carry a generation
// number so that a rule or exception change can drop every cached date at
// once by bumping it.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache returns nil when caching is disabled.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &Cache{redis: client, ttl: ttl}
}

func (c *Cache) key(ctx context.Context, date string) (string, error) {
	gen, err := c.redis.Get(ctx, generationKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("slots:%d:%s", gen, date), nil
}

// Get loads a cached result. Misses and redis errors both report false.
func (c *Cache) Get(ctx context.Context, date string) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	key, err := c.key(ctx, date)
	if err != nil {
		return nil, false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal([]byte(val), &res); err != nil {
		return nil, false
	}
	return &res, true
}

// Set stores a result for the cache TTL.
func (c *Cache) Set(ctx context.Context, res *Result) error {
	if c == nil {
		return nil
	}
	key, err := c.key(ctx, res.Date)
	if err != nil {
		return err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate drops the cached result of one date.
func (c *Cache) Invalidate(ctx context.Context, date string) error {
	if c == nil {
		return nil
	}
	key, err := c.key(ctx, date)
	if err != nil {
		return err
	}
	return c.redis.Del(ctx, key).Err()
}

// InvalidateAll drops every cached result.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.redis.Incr(ctx, generationKey).Err()
}
