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

var ErrSecurityLogNotFound = errors.New("security log not found")

const securityLogColumns = `
	id, user_id, event_type, risk_level, description, ip_address, user_agent, location,
	metadata, is_resolved, resolved_by, resolved_at, resolution_notes, created_at`

type SecurityLogRepository struct {
	db DB
}

func NewSecurityLogRepository(db DB) *SecurityLogRepository {
	return &SecurityLogRepository{db: db}
}

func scanSecurityLog(row rowScanner) (models.SecurityLog, error) {
	var entry models.SecurityLog
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.EventType,
		&entry.RiskLevel,
		&entry.Description,
		&entry.IPAddress,
		&entry.UserAgent,
		&entry.Location,
		&entry.Metadata,
		&entry.IsResolved,
		&entry.ResolvedBy,
		&entry.ResolvedAt,
		&entry.ResolutionNotes,
		&entry.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SecurityLog{}, ErrSecurityLogNotFound
	}
	return entry, err
}

func (r *SecurityLogRepository) Create(ctx context.Context, entry models.SecurityLog) error {
	const query = `
		INSERT INTO security_logs (
			id, user_id, event_type, risk_level, description, ip_address, user_agent, location, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.EventType,
		entry.RiskLevel,
		entry.Description,
		entry.IPAddress,
		entry.UserAgent,
		entry.Location,
		entry.Metadata,
		entry.CreatedAt,
	)
	return err
}

func (r *SecurityLogRepository) List(ctx context.Context, filter models.SecurityLogFilter) ([]models.SecurityLog, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if filter.RiskLevel != "" {
		args = append(args, filter.RiskLevel)
		where = append(where, fmt.Sprintf("risk_level = $%d", len(args)))
	}
	if filter.Resolved != nil {
		args = append(args, *filter.Resolved)
		where = append(where, fmt.Sprintf("is_resolved = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM security_logs`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, clampLimit(filter.Limit), filter.Offset)
	query := `SELECT ` + securityLogColumns + ` FROM security_logs` + clause +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	entries, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *SecurityLogRepository) query(ctx context.Context, query string, args ...any) ([]models.SecurityLog, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.SecurityLog
	for rows.Next() {
		entry, err := scanSecurityLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *SecurityLogRepository) Resolve(ctx context.Context, id, resolvedBy, notes string, at time.Time) error {
	const query = `
		UPDATE security_logs
		SET is_resolved = TRUE, resolved_by = $2, resolution_notes = NULLIF($3, ''), resolved_at = $4
		WHERE id = $1
	`
	cmd, err := r.db.Exec(ctx, query, id, resolvedBy, notes, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSecurityLogNotFound
	}
	return nil
}

// Counts returns all events and the high or critical ones created since since.
func (r *SecurityLogRepository) Counts(ctx context.Context, since time.Time) (total int, highRisk int, err error) {
	const query = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE risk_level IN ('high', 'critical') AND created_at >= $1)
		FROM security_logs
	`
	err = r.db.QueryRow(ctx, query, since).Scan(&total, &highRisk)
	return total, highRisk, err
}

// ListResolvedBefore pages resolved entries older than cutoff in id order, starting after afterID.
func (r *SecurityLogRepository) ListResolvedBefore(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]models.SecurityLog, error) {
	query := `SELECT ` + securityLogColumns + ` FROM security_logs
		WHERE is_resolved = TRUE AND created_at < $1 AND id > $2
		ORDER BY id
		LIMIT $3`
	return r.query(ctx, query, cutoff, afterID, limit)
}

func (r *SecurityLogRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	const query = `DELETE FROM security_logs WHERE id = ANY($1)`
	cmd, err := r.db.Exec(ctx, query, ids)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
