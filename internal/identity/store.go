package identity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the sole authority over durable User/Role/RoleAssignment rows.
// All mutating operations are atomic: a grant or revoke either fully
// applies or not at all.
type Store interface {
	// FindUserByEmail matches non-deleted users only, case-insensitively.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	// CreateUser returns shared.ErrConflict when a non-deleted user with the
	// same email already exists.
	CreateUser(ctx context.Context, draft UserDraft) (*User, error)
	// UpdateUser returns shared.ErrNotFound when the identifier does not exist.
	UpdateUser(ctx context.Context, user *User) error
	// SoftDeleteUser deactivates and stamps the row. Deleting an
	// already-deleted user is a no-op.
	SoftDeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]User, error)

	// ListRoles returns all roles ordered by name.
	ListRoles(ctx context.Context) ([]Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	ListDefaultRoles(ctx context.Context) ([]Role, error)

	// GetActiveRoleAssignments resolves the roles currently granted to a user.
	GetActiveRoleAssignments(ctx context.Context, userID int64) ([]Role, error)
	// GrantRole returns shared.ErrConflict when an active assignment for the
	// pair already exists.
	GrantRole(ctx context.Context, userID, roleID int64) error
	// RevokeRole soft-deletes the active assignment; no-op when none is active.
	RevokeRole(ctx context.Context, userID, roleID int64) error
	// ListRoleHistory returns every assignment row for the user, revoked
	// rows included, newest first.
	ListRoleHistory(ctx context.Context, userID int64) ([]RoleAssignment, error)
}

// PGXPool is the subset of pgxpool.Pool the postgres store uses. Narrowed so
// repository tests can substitute a pgxmock pool.
type PGXPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}
