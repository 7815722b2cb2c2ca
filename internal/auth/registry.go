package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks live sessions by opaque token. Sessions live only in this
// process; restarting it logs everyone out.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	ttl     time.Duration
}

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// NewRegistry constructs a Registry. Sessions idle longer than ttl are
// dropped by Sweep; a non-positive ttl disables expiry.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		ttl:     ttl,
	}
}

// Put stores the session and returns its token.
func (r *Registry) Put(sess *Session) string {
	token := uuid.NewString()
	r.mu.Lock()
	r.entries[token] = &registryEntry{session: sess, lastSeen: time.Now()}
	r.mu.Unlock()
	return token
}

// Get resolves a token to its session, refreshing the idle timer.
func (r *Registry) Get(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[token]
	if !ok {
		return nil, false
	}
	if r.ttl > 0 && now.Sub(entry.lastSeen) > r.ttl {
		delete(r.entries, token)
		return nil, false
	}
	entry.lastSeen = now
	return entry.session, true
}

// Delete removes a token. Unknown tokens are ignored.
func (r *Registry) Delete(token string) {
	r.mu.Lock()
	delete(r.entries, token)
	r.mu.Unlock()
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep drops expired sessions every interval until ctx is cancelled.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration) error {
	if r.ttl <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.mu.Lock()
			for token, entry := range r.entries {
				if now.Sub(entry.lastSeen) > r.ttl {
					delete(r.entries, token)
				}
			}
			r.mu.Unlock()
		}
	}
}
