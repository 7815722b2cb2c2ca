package auth

import (
	"sort"
	"sync"

	"github.com/atrium-hq/atrium/internal/identity"
)

// Session is the in-memory record of one logical actor's authenticated
// identity and its resolved role set. The role set is a snapshot taken at
// login and is not refreshed until the next login: a role granted or
// revoked mid-session takes effect only after the user logs in again.
// Sessions are never serialized.
type Session struct {
	mu            sync.RWMutex
	user          *identity.User
	roles         map[string]struct{}
	authenticated bool

	// opInFlight serialises login/logout on this session; see Service.
	opInFlight chan struct{}
}

// NewSession returns a fresh anonymous session.
func NewSession() *Session {
	return &Session{
		opInFlight: make(chan struct{}, 1),
	}
}

// IsAuthenticated reports whether the session holds an authenticated user.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// User returns a copy of the authenticated user, or nil when anonymous.
func (s *Session) User() *identity.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UserID returns the authenticated user's identifier, or zero when anonymous.
func (s *Session) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

// HasRole reports whether the session is authenticated and holds the named
// role. The match is case-sensitive against the login-time snapshot.
func (s *Session) HasRole(roleName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authenticated {
		return false
	}
	_, ok := s.roles[roleName]
	return ok
}

// RoleNames returns the snapshot's role names sorted alphabetically.
func (s *Session) RoleNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.roles))
	for name := range s.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// establish transitions the session to Authenticated with the given user
// and role snapshot.
func (s *Session) establish(user *identity.User, roles []identity.Role) {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		set[role.Name] = struct{}{}
	}
	s.mu.Lock()
	s.user = user
	s.roles = set
	s.authenticated = true
	s.mu.Unlock()
}

// clear transitions the session back to Anonymous.
func (s *Session) clear() {
	s.mu.Lock()
	s.user = nil
	s.roles = nil
	s.authenticated = false
	s.mu.Unlock()
}

// setUser replaces the stored user snapshot, keeping the role set.
func (s *Session) setUser(user *identity.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

// tryAcquire takes the in-flight latch without blocking.
func (s *Session) tryAcquire() bool {
	select {
	case s.opInFlight <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Session) release() {
	<-s.opInFlight
}
