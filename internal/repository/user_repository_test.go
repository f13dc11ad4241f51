package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeadmin/api/internal/models"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var userColumnNames = []string{
	"id", "first_name", "last_name", "email", "phone", "password_hash", "role", "is_active",
	"mfa_secret", "mfa_enabled", "backup_codes", "failed_login_attempts", "locked_until",
	"password_reset_token_hash", "password_reset_expires_at", "password_changed_at", "require_password_change",
	"last_login_at", "last_login_ip", "last_login_user_agent", "created_at", "updated_at",
}

func userRow(id, email string, role models.UserRole, failed int) []any {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []any{
		id, "Ana", "Diaz", email, nil, []byte("$argon2id$hash"), role, true,
		nil, false, []string{}, failed, nil,
		nil, nil, nil, false,
		nil, nil, nil, now, now,
	}
}

func TestUserRepositoryFindActiveByEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1 AND is_active = TRUE")).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow("u-1", "ana@example.com", models.UserRoleAdmin, 2)...))

	user, err := repo.FindActiveByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, models.UserRoleAdmin, user.Role)
	assert.Equal(t, 2, user.FailedLoginAttempts)
	assert.Nil(t, user.LockedUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicateEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := repo.Create(context.Background(), models.User{ID: "u-1", Email: "ana@example.com", Role: models.UserRoleUser})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryConsumeBackupCodeIsConditional(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("array_remove(backup_codes, $2)")).
		WithArgs("u-1", "$2a$hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND $2 = ANY(backup_codes)")).
		WithArgs("u-1", "$2a$hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	consumed, err := repo.ConsumeBackupCode(context.Background(), "u-1", "$2a$hash")
	require.NoError(t, err)
	assert.True(t, consumed)

	consumed, err = repo.ConsumeBackupCode(context.Background(), "u-1", "$2a$hash")
	require.NoError(t, err)
	assert.False(t, consumed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRecordLoginFailure(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	until := time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("SET failed_login_attempts = $2, locked_until = $3")).
		WithArgs("u-1", 5, &until).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("SET failed_login_attempts = $2, locked_until = $3")).
		WithArgs("gone", 1, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.RecordLoginFailure(context.Background(), "u-1", 5, &until))
	assert.ErrorIs(t, repo.RecordLoginFailure(context.Background(), "gone", 1, nil), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRecordLoginSuccessIsOneStatement(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`SET failed_login_attempts = 0,\s+locked_until = NULL,\s+last_login_at = \$2`).
		WithArgs("u-1", at, "10.0.0.1", "curl/8").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.RecordLoginSuccess(context.Background(), "u-1", at, "10.0.0.1", "curl/8"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySuperAdminCounts(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = TRUE")).
		WithArgs(models.UserRoleSuperAdmin).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("AND id = ANY($2::uuid[])")).
		WithArgs(models.UserRoleSuperAdmin, []string{"a", "b"}).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	total, err := repo.CountActiveSuperAdmins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	among, err := repo.CountActiveSuperAdminsAmong(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, among)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListBuildsFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	active := true

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE (LOWER(email) LIKE $1 OR LOWER(first_name) LIKE $1 OR LOWER(last_name) LIKE $1) AND role = $2 AND is_active = $3")).
		WithArgs("%ana%", models.UserRoleAdmin, true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $4 OFFSET $5")).
		WithArgs("%ana%", models.UserRoleAdmin, true, 10, 20).
		WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(userRow("u-1", "ana@example.com", models.UserRoleAdmin, 0)...))

	users, total, err := repo.List(context.Background(), models.UserFilter{
		Search:   "Ana",
		Role:     models.UserRoleAdmin,
		IsActive: &active,
		Limit:    10,
		Offset:   20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "ana@example.com", users[0].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}
