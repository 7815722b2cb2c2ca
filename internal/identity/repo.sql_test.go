package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-hq/atrium/internal/shared"
)

func newMockStore(t *testing.T) (*PGStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPGStore(mock, 0), mock
}

func userRow(id int64, email string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "password_hash", "password_salt",
		"is_active", "created_at", "updated_at", "deleted_at",
	}).AddRow(id, email, "Ada", "Lovelace", "digest", "salt", true, now, now, nil)
}

func TestFindUserByEmailNormalizesArgument(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE lower\(email\) = \$1 AND deleted_at IS NULL`).
		WithArgs("ada@example.com").
		WillReturnRows(userRow(1, "ada@example.com"))

	user, err := store.FindUserByEmail(context.Background(), "  ADA@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE lower\(email\)`).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.FindUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("ada@example.com", "Ada", "Lovelace", "digest", "salt", true).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.CreateUser(context.Background(), UserDraft{
		Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
		PasswordHash: "digest", PasswordSalt: "salt", IsActive: true,
	})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateUserWrapsDriverFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(errors.New("connection refused"))

	_, err := store.CreateUser(context.Background(), UserDraft{
		Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
		PasswordHash: "digest", PasswordSalt: "salt", IsActive: true,
	})
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

func TestUpdateUserNotFoundOnZeroRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE users`).
		WithArgs(int64(42), "ada@example.com", "Ada", "Lovelace", "digest", "salt", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateUser(context.Background(), &User{
		ID: 42, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
		PasswordHash: "digest", PasswordSalt: "salt", IsActive: true,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSoftDeleteUserScopedToLiveRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE users SET is_active = FALSE, deleted_at = NOW\(\).+WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SoftDeleteUser(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRoleConflictOnActiveRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM user_roles WHERE user_id = \$1 AND role_id = \$2 AND is_active FOR UPDATE`).
		WithArgs(int64(1), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectRollback()

	err := store.GrantRole(context.Background(), 1, 3)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRoleInsertsWhenNoneActive(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM user_roles`).
		WithArgs(int64(1), int64(3)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO user_roles`).
		WithArgs(int64(1), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, store.GrantRole(context.Background(), 1, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRoleTargetsActiveAssignment(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE user_roles SET is_active = FALSE, deleted_at = NOW\(\).+WHERE user_id = \$1 AND role_id = \$2 AND is_active`).
		WithArgs(int64(1), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	// Zero rows touched is still success: revoking an unassigned role is a no-op.
	require.NoError(t, store.RevokeRole(context.Background(), 1, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRoleHistoryScansJoinedRows(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	then := now.Add(-time.Hour)

	rows := pgxmock.NewRows([]string{"id", "user_id", "role_id", "name", "is_active", "created_at", "deleted_at"}).
		AddRow(int64(2), int64(1), int64(3), RoleSpecialUser, true, now, nil).
		AddRow(int64(1), int64(1), int64(3), RoleSpecialUser, false, then, &then)
	mock.ExpectQuery(`SELECT ur\.id, ur\.user_id, ur\.role_id, r\.name`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	history, err := store.ListRoleHistory(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].IsActive)
	assert.Equal(t, RoleSpecialUser, history[0].RoleName)
	assert.False(t, history[1].IsActive)
	assert.NotNil(t, history[1].DeletedAt)
}
