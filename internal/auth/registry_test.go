package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRoundTrip(t *testing.T) {
	reg := NewRegistry(time.Hour)

	sess := NewSession()
	token := reg.Put(sess)
	require.NotEmpty(t, token)

	got, ok := reg.Get(token)
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryUnknownToken(t *testing.T) {
	reg := NewRegistry(time.Hour)

	_, ok := reg.Get("no-such-token")
	assert.False(t, ok)
	_, ok = reg.Get("")
	assert.False(t, ok)
}

func TestRegistryDelete(t *testing.T) {
	reg := NewRegistry(time.Hour)

	token := reg.Put(NewSession())
	reg.Delete(token)
	_, ok := reg.Get(token)
	assert.False(t, ok)
	assert.Zero(t, reg.Len())

	reg.Delete("no-such-token")
}

func TestRegistryExpiresIdleSessions(t *testing.T) {
	reg := NewRegistry(10 * time.Millisecond)

	token := reg.Put(NewSession())
	time.Sleep(25 * time.Millisecond)

	_, ok := reg.Get(token)
	assert.False(t, ok)
	assert.Zero(t, reg.Len())
}

func TestRegistryGetRefreshesIdleTimer(t *testing.T) {
	reg := NewRegistry(40 * time.Millisecond)

	token := reg.Put(NewSession())
	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		_, ok := reg.Get(token)
		require.True(t, ok)
	}
}

func TestRegistryTokensAreUnique(t *testing.T) {
	reg := NewRegistry(0)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token := reg.Put(NewSession())
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}
