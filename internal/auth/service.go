package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atrium-hq/atrium/internal/identity"
	"github.com/atrium-hq/atrium/internal/shared"
)

// ServiceConfig tunes authentication policy.
type ServiceConfig struct {
	// PasswordMinLength is the hard floor for passwords at registration and
	// password change. Zero falls back to the historical default of 6.
	PasswordMinLength int
}

func (c ServiceConfig) minPasswordLength() int {
	if c.PasswordMinLength > 0 {
		return c.PasswordMinLength
	}
	return 6
}

// AuthStateListener is invoked with the new authenticated state on every
// login/logout transition.
type AuthStateListener func(authenticated bool)

// Service orchestrates the authentication lifecycle against the identity
// store and credential hasher. Each Session it manages moves through
// Anonymous -> Authenticated -> Anonymous; the machine restarts on the next
// login.
type Service struct {
	store  identity.Store
	hasher Hasher
	audit  shared.AuditRecorder
	logger *slog.Logger
	cfg    ServiceConfig

	listenerMu sync.Mutex
	listeners  []AuthStateListener
}

// NewService constructs a Service.
func NewService(store identity.Store, hasher Hasher, audit shared.AuditRecorder, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, hasher: hasher, audit: audit, logger: logger, cfg: cfg}
}

// SubscribeAuthState registers a listener for authentication-state changes.
// Listeners run synchronously in registration order.
func (s *Service) SubscribeAuthState(fn AuthStateListener) {
	if fn == nil {
		return
	}
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenerMu.Unlock()
}

func (s *Service) notifyAuthState(authenticated bool) {
	s.listenerMu.Lock()
	listeners := make([]AuthStateListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(authenticated)
	}
}

// Register creates a new account and grants every role flagged as default.
// It does not log the new user in. A taken email fails with a conflict,
// matched case-insensitively against non-deleted users.
func (s *Service) Register(ctx context.Context, firstName, lastName, email, password string) (*identity.User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = identity.NormalizeEmail(email)
	if err := identity.ValidateProfile(firstName, lastName, email); err != nil {
		return nil, err
	}
	if len(password) < s.cfg.minPasswordLength() {
		return nil, shared.Validationf("password must be at least %d characters", s.cfg.minPasswordLength())
	}

	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return nil, shared.Conflictf("email already registered")
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(password, salt)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, identity.UserDraft{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: digest,
		PasswordSalt: salt,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return nil, shared.Conflictf("email already registered")
		}
		return nil, err
	}

	defaults, err := s.store.ListDefaultRoles(ctx)
	if err != nil {
		return nil, err
	}
	for _, role := range defaults {
		if err := s.store.GrantRole(ctx, user.ID, role.ID); err != nil && !errors.Is(err, shared.ErrConflict) {
			return nil, err
		}
	}

	s.record(ctx, user.ID, "auth.register", user.ID, nil)
	return user, nil
}

// Login authenticates the credential and transitions sess to Authenticated,
// caching the user's active role names. Unknown email, inactive account and
// wrong password all fail with the same ErrInvalidCredentials so the result
// cannot be used to enumerate accounts. A login overlapping another
// login/logout on the same session fails with ErrOperationInFlight.
func (s *Service) Login(ctx context.Context, sess *Session, email, password string) error {
	if sess == nil {
		return errors.New("auth: session required")
	}
	if !sess.tryAcquire() {
		return shared.ErrOperationInFlight
	}
	defer sess.release()

	user, err := s.store.FindUserByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrInvalidCredentials
		}
		return err
	}
	if !user.IsActive || user.IsDeleted() {
		return shared.ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordSalt, user.PasswordHash) {
		return shared.ErrInvalidCredentials
	}

	roles, err := s.store.GetActiveRoleAssignments(ctx, user.ID)
	if err != nil {
		return err
	}

	sess.establish(user, roles)
	s.notifyAuthState(true)
	s.record(ctx, user.ID, "auth.login", user.ID, nil)
	return nil
}

// Logout clears the session unconditionally and fires the state-changed
// notification. Logging out an anonymous session is not an error.
func (s *Service) Logout(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if !sess.tryAcquire() {
		return shared.ErrOperationInFlight
	}
	defer sess.release()

	userID := sess.UserID()
	sess.clear()
	s.notifyAuthState(false)
	if userID != 0 {
		s.record(ctx, userID, "auth.logout", userID, nil)
	}
	return nil
}

// ChangePassword verifies the current credential and replaces it with a
// freshly salted digest. It reports success as a plain boolean and never
// reveals which check failed.
func (s *Service) ChangePassword(ctx context.Context, sess *Session, currentPassword, newPassword string) bool {
	if sess == nil || !sess.IsAuthenticated() {
		return false
	}
	user := sess.User()
	if user == nil {
		return false
	}
	if !s.hasher.Verify(currentPassword, user.PasswordSalt, user.PasswordHash) {
		return false
	}
	if len(newPassword) < s.cfg.minPasswordLength() {
		return false
	}
	if newPassword == currentPassword {
		return false
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		s.logger.Error("generate salt", slog.Any("error", err))
		return false
	}
	digest, err := s.hasher.Hash(newPassword, salt)
	if err != nil {
		s.logger.Error("hash password", slog.Any("error", err))
		return false
	}

	user.PasswordHash = digest
	user.PasswordSalt = salt
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Error("persist password change", slog.Any("error", err))
		return false
	}

	sess.setUser(user)
	s.record(ctx, user.ID, "auth.password_change", user.ID, nil)
	return true
}

// HasRole is the authorization predicate: true iff the session is
// authenticated and the role name is present in its login-time snapshot.
func (s *Service) HasRole(sess *Session, roleName string) bool {
	return sess != nil && sess.HasRole(roleName)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	event := shared.AuditEvent{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("record audit event", slog.String("action", action), slog.Any("error", err))
	}
}
