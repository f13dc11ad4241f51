package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"storeadmin/api/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const userColumns = `
	id, first_name, last_name, email, phone, password_hash, role, is_active,
	mfa_secret, mfa_enabled, backup_codes, failed_login_attempts, locked_until,
	password_reset_token_hash, password_reset_expires_at, password_changed_at, require_password_change,
	last_login_at, last_login_ip, last_login_user_agent, created_at, updated_at`

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.MFASecret,
		&user.MFAEnabled,
		&user.BackupCodes,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.PasswordResetTokenHash,
		&user.PasswordResetExpiresAt,
		&user.PasswordChangedAt,
		&user.RequirePasswordChange,
		&user.LastLoginAt,
		&user.LastLoginIP,
		&user.LastLoginUserAgent,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, first_name, last_name, email, phone, password_hash, role, is_active,
			require_password_change, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.RequirePasswordChange,
	)
	if pgErrorCode(err) == pgUniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// FindByEmail ignores the active flag.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindActiveByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = TRUE`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE password_reset_token_hash = $1 AND password_reset_expires_at > $2`
	return scanUser(r.db.QueryRow(ctx, query, hash, now))
}

func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d)", n, n, n))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := clampLimit(filter.Limit)
	args = append(args, limit, filter.Offset)
	query := `SELECT ` + userColumns + ` FROM users` + clause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]models.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	const query = `
		UPDATE users
		SET failed_login_attempts = $2, locked_until = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, attempts, lockedUntil)
}

// RecordLoginSuccess clears lockout state and stamps the last-login fields in one statement.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time, ip, userAgent string) error {
	const query = `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login_at = $2,
		    last_login_ip = NULLIF($3, ''),
		    last_login_user_agent = NULLIF($4, ''),
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, at, ip, userAgent)
}

func (r *UserRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_activity_at = $2 WHERE id = $1`
	return r.exec(ctx, query, id, at)
}

func (r *UserRepository) ResetLockout(ctx context.Context, id string) error {
	const query = `
		UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW() WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// UpdatePassword also clears any pending reset token and the must-change flag.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, hash []byte, changedAt time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $2,
		    password_changed_at = $3,
		    require_password_change = FALSE,
		    password_reset_token_hash = NULL,
		    password_reset_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, hash, changedAt)
}

// ReplacePasswordHash swaps the stored hash without touching password metadata.
func (r *UserRepository) ReplacePasswordHash(ctx context.Context, id string, hash []byte) error {
	const query = `UPDATE users SET password_hash = $2 WHERE id = $1`
	return r.exec(ctx, query, id, hash)
}

func (r *UserRepository) SetResetToken(ctx context.Context, id string, hash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET password_reset_token_hash = $2, password_reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, hash, expiresAt)
}

func (r *UserRepository) SetMFASecret(ctx context.Context, id string, secret string, backupHashes []string) error {
	const query = `
		UPDATE users
		SET mfa_secret = $2, backup_codes = $3, mfa_enabled = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, secret, backupHashes)
}

func (r *UserRepository) EnableMFA(ctx context.Context, id string) error {
	const query = `UPDATE users SET mfa_enabled = TRUE, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *UserRepository) DisableMFA(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET mfa_enabled = FALSE, mfa_secret = NULL, backup_codes = '{}', updated_at = NOW()
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

// ConsumeBackupCode removes hash from the user's backup codes. It reports
// false when the hash was already gone, so a code is accepted at most once.
func (r *UserRepository) ConsumeBackupCode(ctx context.Context, id, hash string) (bool, error) {
	const query = `
		UPDATE users
		SET backup_codes = array_remove(backup_codes, $2), updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(backup_codes)
	`
	cmd, err := r.db.Exec(ctx, query, id, hash)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd models.UserProfileUpdate) error {
	const query = `
		UPDATE users
		SET first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name),
		    email = COALESCE($4, email),
		    phone = COALESCE($5, phone),
		    is_active = COALESCE($6, is_active),
		    updated_at = NOW()
		WHERE id = $1
	`
	err := r.exec(ctx, query, id, upd.FirstName, upd.LastName, upd.Email, upd.Phone, upd.IsActive)
	if pgErrorCode(err) == pgUniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	const query = `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, role)
}

func (r *UserRepository) SetActive(ctx context.Context, ids []string, active bool) (int64, error) {
	const query = `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = ANY($1::uuid[])`
	cmd, err := r.db.Exec(ctx, query, ids, active)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	const query = `DELETE FROM users WHERE id = ANY($1::uuid[])`
	cmd, err := r.db.Exec(ctx, query, ids)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) CountActiveSuperAdmins(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = TRUE`
	var count int
	err := r.db.QueryRow(ctx, query, models.UserRoleSuperAdmin).Scan(&count)
	return count, err
}

func (r *UserRepository) CountActiveSuperAdminsAmong(ctx context.Context, ids []string) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = TRUE AND id = ANY($2::uuid[])`
	var count int
	err := r.db.QueryRow(ctx, query, models.UserRoleSuperAdmin, ids).Scan(&count)
	return count, err
}

func (r *UserRepository) CountLocked(ctx context.Context, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE locked_until > $1`
	var count int
	err := r.db.QueryRow(ctx, query, now).Scan(&count)
	return count, err
}

func (r *UserRepository) Stats(ctx context.Context, now time.Time) (models.UserStats, error) {
	const totals = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE mfa_enabled),
		       COUNT(*) FILTER (WHERE locked_until > $1)
		FROM users
	`
	stats := models.UserStats{ByRole: map[models.UserRole]int{}}
	if err := r.db.QueryRow(ctx, totals, now).Scan(&stats.Total, &stats.Active, &stats.MFAEnabled, &stats.Locked); err != nil {
		return models.UserStats{}, err
	}
	stats.Inactive = stats.Total - stats.Active

	rows, err := r.db.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return models.UserStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			role  models.UserRole
			count int
		)
		if err := rows.Scan(&role, &count); err != nil {
			return models.UserStats{}, err
		}
		stats.ByRole[role] = count
	}
	return stats, rows.Err()
}
