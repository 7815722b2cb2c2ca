package identity

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/atrium-hq/atrium/internal/shared"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Hasher is the credential-hashing capability the service needs when an
// administrator sets an initial password.
type Hasher interface {
	GenerateSalt() (string, error)
	Hash(plaintext, salt string) (string, error)
}

// ServiceConfig tunes user management policy.
type ServiceConfig struct {
	// PasswordMinLength is the hard floor for new passwords. Zero falls back
	// to the historical default of 6.
	PasswordMinLength int
}

func (c ServiceConfig) minPasswordLength() int {
	if c.PasswordMinLength > 0 {
		return c.PasswordMinLength
	}
	return 6
}

// Service owns administrator-facing user and role-assignment management.
type Service struct {
	store  Store
	hasher Hasher
	cache  *RoleCache
	audit  shared.AuditRecorder
	logger *slog.Logger
	cfg    ServiceConfig
}

// NewService constructs a Service.
func NewService(store Store, hasher Hasher, cache *RoleCache, audit shared.AuditRecorder, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, hasher: hasher, cache: cache, audit: audit, logger: logger, cfg: cfg}
}

// CreateUserInput carries the fields for admin-initiated user creation.
type CreateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	IsActive  bool
}

// UpdateUserInput carries the mutable profile fields.
type UpdateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	IsActive  bool
}

// ListUsers returns all non-deleted users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// GetUser fetches one user together with their active roles.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, []Role, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	roles, err := s.store.GetActiveRoleAssignments(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return user, roles, nil
}

// CreateUser validates and creates a user on behalf of an administrator.
func (s *Service) CreateUser(ctx context.Context, actorID int64, input CreateUserInput) (*User, error) {
	draft, err := s.validateDraft(input)
	if err != nil {
		return nil, err
	}
	user, err := s.store.CreateUser(ctx, *draft)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "user.create", "user", user.ID, nil)
	return user, nil
}

// UpdateUser applies profile changes to an existing user.
func (s *Service) UpdateUser(ctx context.Context, actorID, id int64, input UpdateUserInput) (*User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted() {
		return nil, shared.ErrNotFound
	}

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	email := NormalizeEmail(input.Email)
	if err := ValidateProfile(firstName, lastName, email); err != nil {
		return nil, err
	}

	user.FirstName = firstName
	user.LastName = lastName
	user.Email = email
	user.IsActive = input.IsActive
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "user.update", "user", user.ID, nil)
	return user, nil
}

// DeleteUser soft-deletes a user. Idempotent; an administrator cannot
// delete their own account.
func (s *Service) DeleteUser(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return shared.Validationf("cannot delete the signed-in account")
	}
	if err := s.store.SoftDeleteUser(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.delete", "user", id, nil)
	return nil
}

// ListRoles returns the role catalog ordered by name, served from cache
// when warm.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	if roles, ok := s.cache.Get(ctx); ok {
		return roles, nil
	}
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, roles); err != nil {
		s.logger.Warn("cache role catalog", slog.Any("error", err))
	}
	return roles, nil
}

// GrantRole grants a role to a user. Granting an already-active role fails
// with a conflict.
func (s *Service) GrantRole(ctx context.Context, actorID, userID, roleID int64) error {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsDeleted() {
		return shared.ErrNotFound
	}
	if err := s.store.GrantRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.grant", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// RevokeRole revokes an active role from a user. The assignment row is kept
// for audit; only its active flag is cleared.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.store.RevokeRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.record(ctx, actorID, "role.revoke", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// RoleHistory returns the full grant/revoke trail for a user.
func (s *Service) RoleHistory(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	return s.store.ListRoleHistory(ctx, userID)
}

func (s *Service) validateDraft(input CreateUserInput) (*UserDraft, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	email := NormalizeEmail(input.Email)
	if err := ValidateProfile(firstName, lastName, email); err != nil {
		return nil, err
	}
	if len(input.Password) < s.cfg.minPasswordLength() {
		return nil, shared.Validationf("password must be at least %d characters", s.cfg.minPasswordLength())
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(input.Password, salt)
	if err != nil {
		return nil, err
	}
	return &UserDraft{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: digest,
		PasswordSalt: salt,
		IsActive:     input.IsActive,
	}, nil
}

// ValidateProfile checks presence, length and shape of profile fields.
func ValidateProfile(firstName, lastName, email string) error {
	switch {
	case firstName == "":
		return shared.Validationf("first name is required")
	case lastName == "":
		return shared.Validationf("last name is required")
	case email == "":
		return shared.Validationf("email is required")
	case len(firstName) > MaxNameLength || len(lastName) > MaxNameLength:
		return shared.Validationf("name exceeds %d characters", MaxNameLength)
	case len(email) > MaxEmailLength:
		return shared.Validationf("email exceeds %d characters", MaxEmailLength)
	case !emailPattern.MatchString(email):
		return shared.Validationf("email address is not valid")
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	event := shared.AuditEvent{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("record audit event", slog.String("action", action), slog.Any("error", err))
	}
}
