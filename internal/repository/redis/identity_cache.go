package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trieu/leo-activation/business/affinity"
)

const identityKeyPrefix = "affinity:resolve:"

// IdentityCache memoizes display-name -> surrogate-id resolutions so the
// per-batch profile scan runs once per TTL instead of once per invocation.
type IdentityCache struct {
	client *redis.Client
}

var _ affinity.IdentityCache = (*IdentityCache)(nil)

func NewIdentityCache(client *redis.Client) *IdentityCache {
	return &IdentityCache{client: client}
}

func (c *IdentityCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, identityKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read identity cache: %w", err)
	}

	return val, true, nil
}

func (c *IdentityCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, identityKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write identity cache: %w", err)
	}

	return nil
}
