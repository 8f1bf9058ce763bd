package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StatusCache fronts order status lookups so the hot GET path skips the
// document store. Misses and errors fall through to the repository.
type StatusCache struct {
	rdb *redis.Client
}

func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb}
}

func (c *StatusCache) Get(ctx context.Context, key string) (string, bool) {
	s, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, key)).Result()
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

func (c *StatusCache) Set(ctx context.Context, key, status string) {
	_ = c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, key), status, TTLStatusCache).Err()
}
