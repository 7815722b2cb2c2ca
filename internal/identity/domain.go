package identity

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Well-known role names. The store may hold additional roles beyond these.
const (
	RoleAdministrator = "administrator"
	RoleOrdinaryUser  = "ordinary-user"
	RoleSpecialUser   = "special-user"
)

// WellKnownRoles lists the fixed role-name enumeration.
var WellKnownRoles = []string{RoleAdministrator, RoleOrdinaryUser, RoleSpecialUser}

// Column length limits enforced before hitting the store.
const (
	MaxEmailLength       = 255
	MaxNameLength        = 100
	MaxRoleNameLength    = 100
	MaxDescriptionLength = 500
)

// User is an identity row. Users are never physically removed; deletion
// deactivates the row and stamps DeletedAt.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PasswordHash string     `json:"-"`
	PasswordSalt string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// FullName joins the user's first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsDeleted reports whether the user row is soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// Role is a named permission grouping. Roles flagged IsDefault are granted
// automatically to self-registered users.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleAssignment is one row of the user-role join. Revocation soft-deletes
// the row; a re-grant inserts a fresh row, so the full grant history stays
// queryable.
type RoleAssignment struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	RoleID    int64      `json:"role_id"`
	RoleName  string     `json:"role_name"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// UserDraft carries the fields required to create a user row.
type UserDraft struct {
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	PasswordSalt string
	IsActive     bool
}

var emailFolder = cases.Fold()

// NormalizeEmail trims surrounding whitespace and case-folds the address so
// lookups and uniqueness checks are case-insensitive.
func NormalizeEmail(email string) string {
	return emailFolder.String(strings.TrimSpace(email))
}
