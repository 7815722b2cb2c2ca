package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atrium-hq/atrium/internal/platform/db"
	"github.com/atrium-hq/atrium/internal/shared"
)

const pgUniqueViolation = "23505"

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool    PGXPool
	timeout time.Duration
}

// NewPGStore constructs a PostgreSQL store. Every round trip is bounded by
// the given timeout; zero disables the bound.
func NewPGStore(pool PGXPool, timeout time.Duration) *PGStore {
	return &PGStore{pool: pool, timeout: timeout}
}

var _ Store = (*PGStore)(nil)

const userColumns = `id, email, first_name, last_name, password_hash, password_salt, is_active, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.PasswordSalt, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// mapError translates driver errors into the domain taxonomy. Expected
// conditions come back as sentinel values; anything else is an
// infrastructure fault.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return shared.ErrConflict
	}
	return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
}

// FindUserByEmail fetches a non-deleted user by case-insensitive email.
func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1 AND deleted_at IS NULL`,
		NormalizeEmail(email))
	user, err := scanUser(row)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// FindUserByID fetches a user by identifier, soft-deleted rows included.
func (s *PGStore) FindUserByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// CreateUser inserts a new user row. The partial unique index on
// lower(email) among non-deleted rows turns duplicates into ErrConflict.
func (s *PGStore) CreateUser(ctx context.Context, draft UserDraft) (*User, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, first_name, last_name, password_hash, password_salt, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING `+userColumns,
		NormalizeEmail(draft.Email), draft.FirstName, draft.LastName, draft.PasswordHash, draft.PasswordSalt, draft.IsActive)
	user, err := scanUser(row)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// UpdateUser persists profile, credential and activity changes.
func (s *PGStore) UpdateUser(ctx context.Context, user *User) error {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET email = $2, first_name = $3, last_name = $4, password_hash = $5, password_salt = $6, is_active = $7, updated_at = NOW()
		 WHERE id = $1`,
		user.ID, NormalizeEmail(user.Email), user.FirstName, user.LastName, user.PasswordHash, user.PasswordSalt, user.IsActive)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SoftDeleteUser deactivates the row and stamps deleted_at. Idempotent.
func (s *PGStore) SoftDeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET is_active = FALSE, deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	return mapError(err)
}

// ListUsers returns all non-deleted users ordered by identifier.
func (s *PGStore) ListUsers(ctx context.Context) ([]User, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, mapError(err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

const roleColumns = `id, name, description, is_default, created_at, updated_at`

func scanRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.IsDefault, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return roles, nil
}

// ListRoles returns all roles ordered by name.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, mapError(err)
	}
	return scanRoles(rows)
}

// GetRoleByName fetches a role by its exact name.
func (s *PGStore) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	var r Role
	err := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name).
		Scan(&r.ID, &r.Name, &r.Description, &r.IsDefault, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

// ListDefaultRoles returns the roles auto-granted at self-registration.
func (s *PGStore) ListDefaultRoles(ctx context.Context) ([]Role, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE is_default ORDER BY name`)
	if err != nil {
		return nil, mapError(err)
	}
	return scanRoles(rows)
}

// GetActiveRoleAssignments resolves the roles currently granted to a user.
func (s *PGStore) GetActiveRoleAssignments(ctx context.Context, userID int64) ([]Role, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.name, r.description, r.is_default, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1 AND ur.is_active
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	return scanRoles(rows)
}

// GrantRole inserts a new active assignment row. The check and insert run in
// one transaction so concurrent grants for the same pair cannot both apply.
func (s *PGStore) GrantRole(ctx context.Context, userID, roleID int64) error {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapError(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var existing int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM user_roles WHERE user_id = $1 AND role_id = $2 AND is_active FOR UPDATE`,
		userID, roleID).Scan(&existing)
	switch {
	case err == nil:
		return shared.ErrConflict
	case errors.Is(err, pgx.ErrNoRows):
		// no active row; proceed with the insert
	default:
		return mapError(err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id, is_active, created_at) VALUES ($1, $2, TRUE, NOW())`,
		userID, roleID); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// RevokeRole soft-deletes the active assignment for the pair. Revoking a
// role that is not granted is a no-op rather than an error.
func (s *PGStore) RevokeRole(ctx context.Context, userID, roleID int64) error {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.pool.Exec(ctx,
		`UPDATE user_roles SET is_active = FALSE, deleted_at = NOW()
		 WHERE user_id = $1 AND role_id = $2 AND is_active`,
		userID, roleID)
	return mapError(err)
}

// ListRoleHistory returns every assignment row for the user, newest first.
func (s *PGStore) ListRoleHistory(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.pool.Query(ctx,
		`SELECT ur.id, ur.user_id, ur.role_id, r.name, ur.is_active, ur.created_at, ur.deleted_at
		 FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1
		 ORDER BY ur.created_at DESC, ur.id DESC`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var history []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.RoleName, &a.IsActive, &a.CreatedAt, &a.DeletedAt); err != nil {
			return nil, mapError(err)
		}
		history = append(history, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return history, nil
}
