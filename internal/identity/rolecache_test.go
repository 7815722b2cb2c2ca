package identity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoleCache(t *testing.T) *RoleCache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRoleCache(client, time.Minute)
}

func TestRoleCacheRoundTrip(t *testing.T) {
	cache := newTestRoleCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx)
	assert.False(t, ok, "cold cache misses")

	roles := []Role{
		{ID: 1, Name: RoleAdministrator},
		{ID: 2, Name: RoleOrdinaryUser, IsDefault: true},
	}
	require.NoError(t, cache.Set(ctx, roles))

	got, ok := cache.Get(ctx)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, RoleAdministrator, got[0].Name)
	assert.True(t, got[1].IsDefault)
}

func TestRoleCacheInvalidate(t *testing.T) {
	cache := newTestRoleCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, []Role{{ID: 1, Name: RoleAdministrator}}))
	require.NoError(t, cache.Invalidate(ctx))

	_, ok := cache.Get(ctx)
	assert.False(t, ok)

	// Invalidating an empty cache is fine.
	assert.NoError(t, cache.Invalidate(ctx))
}

func TestRoleCacheExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRoleCache(client, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, []Role{{ID: 1, Name: RoleAdministrator}}))
	srv.FastForward(time.Second)

	_, ok := cache.Get(ctx)
	assert.False(t, ok)
}

func TestRoleCacheDisabled(t *testing.T) {
	ctx := context.Background()

	var nilCache *RoleCache
	_, ok := nilCache.Get(ctx)
	assert.False(t, ok)
	assert.NoError(t, nilCache.Set(ctx, nil))
	assert.NoError(t, nilCache.Invalidate(ctx))

	disabled := NewRoleCache(nil, time.Minute)
	_, ok = disabled.Get(ctx)
	assert.False(t, ok)
	assert.NoError(t, disabled.Set(ctx, []Role{{ID: 1}}))
}
