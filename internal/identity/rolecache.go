package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const roleCacheKey = "identity:roles"

// RoleCache keeps the role catalog in Redis. The catalog changes rarely and
// is read on every registration and login, so a short TTL plus explicit
// invalidation on role mutation is enough.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoleCache instantiates the cache helper. A nil client disables caching.
func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	return &RoleCache{client: client, ttl: ttl}
}

// Get loads the cached catalog. The second return is false on miss or when
// the cache is disabled.
func (c *RoleCache) Get(ctx context.Context) ([]Role, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, roleCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var roles []Role
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil, false
	}
	return roles, true
}

// Set stores the catalog with the configured TTL.
func (c *RoleCache) Set(ctx context.Context, roles []Role) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, roleCacheKey, raw, c.ttl).Err()
}

// Invalidate drops the cached catalog after a role mutation.
func (c *RoleCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, roleCacheKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
