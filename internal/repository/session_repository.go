package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"storeadmin/api/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `
	id, user_id, session_token, ip_address, user_agent, location, device,
	is_active, expires_at, last_activity_at, created_at`

type SessionRepository struct {
	db DB
}

func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row rowScanner) (models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.IPAddress,
		&session.UserAgent,
		&session.Location,
		&session.Device,
		&session.IsActive,
		&session.ExpiresAt,
		&session.LastActivityAt,
		&session.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	return session, err
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO user_sessions (
			id, user_id, session_token, ip_address, user_agent, location, device,
			is_active, expires_at, last_activity_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9, $9
		)
	`

	_, err := r.db.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		session.IPAddress,
		session.UserAgent,
		session.Location,
		session.Device,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return err
}

func (r *SessionRepository) FindActiveByToken(ctx context.Context, token string) (models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE session_token = $1 AND is_active = TRUE`
	return scanSession(r.db.QueryRow(ctx, query, token))
}

func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE user_sessions SET last_activity_at = $2 WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeactivateByToken(ctx context.Context, token string) error {
	const query = `UPDATE user_sessions SET is_active = FALSE WHERE session_token = $1 AND is_active = TRUE`
	cmd, err := r.db.Exec(ctx, query, token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Deactivate ends one session, only if it belongs to userID.
func (r *SessionRepository) Deactivate(ctx context.Context, userID, sessionID string) error {
	const query = `UPDATE user_sessions SET is_active = FALSE WHERE id = $1 AND user_id = $2 AND is_active = TRUE`
	cmd, err := r.db.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	const query = `UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`
	cmd, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY last_activity_at DESC`

	rows, err := r.db.Query(ctx, query, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) CountActive(ctx context.Context, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM user_sessions WHERE is_active = TRUE AND expires_at > $1`
	var count int
	err := r.db.QueryRow(ctx, query, now).Scan(&count)
	return count, err
}
