package repository

import (
	"context"
	"errors"
	"fmt"

	"storeadmin/api/internal/models"
)

var ErrUnknownPermission = errors.New("unknown permission id")

type PermissionRepository struct {
	db DB
}

func NewPermissionRepository(db DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) scanAll(ctx context.Context, query string, args ...any) ([]models.Permission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *PermissionRepository) ListAll(ctx context.Context) ([]models.Permission, error) {
	const query = `
		SELECT id, resource, action, name, description, created_at
		FROM permissions
		ORDER BY resource, action
	`
	return r.scanAll(ctx, query)
}

// ListGrantedForUser returns the permissions the user holds with is_granted = TRUE.
func (r *PermissionRepository) ListGrantedForUser(ctx context.Context, userID string) ([]models.Permission, error) {
	const query = `
		SELECT p.id, p.resource, p.action, p.name, p.description, p.created_at
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1 AND up.is_granted = TRUE
		ORDER BY p.resource, p.action
	`
	return r.scanAll(ctx, query, userID)
}

func (r *PermissionRepository) HasGrant(ctx context.Context, userID string, resource models.Resource, action models.Action) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM user_permissions up
			JOIN permissions p ON p.id = up.permission_id
			WHERE up.user_id = $1 AND p.resource = $2 AND p.action = $3 AND up.is_granted = TRUE
		)
	`
	var granted bool
	err := r.db.QueryRow(ctx, query, userID, resource, action).Scan(&granted)
	return granted, err
}

// ReplaceGrants deletes every grant row of the user and inserts one granted row per
// permission id, in a single transaction.
func (r *PermissionRepository) ReplaceGrants(ctx context.Context, userID string, permissionIDs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("delete grants: %w", err)
	}

	if len(permissionIDs) > 0 {
		const insert = `
			INSERT INTO user_permissions (id, user_id, permission_id, is_granted, created_at)
			SELECT gen_random_uuid(), $1, pid, TRUE, NOW()
			FROM unnest($2::uuid[]) AS pid
		`
		if _, err := tx.Exec(ctx, insert, userID, permissionIDs); err != nil {
			_ = tx.Rollback(ctx)
			switch pgErrorCode(err) {
			case pgForeignKeyViolation, pgInvalidTextRepr:
				return ErrUnknownPermission
			}
			return fmt.Errorf("insert grants: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Seed inserts the catalog entries missing from the table and reports how many were added.
func (r *PermissionRepository) Seed(ctx context.Context, perms []models.Permission) (int, error) {
	const query = `
		INSERT INTO permissions (id, resource, action, name, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (resource, action) DO NOTHING
	`
	inserted := 0
	for _, p := range perms {
		cmd, err := r.db.Exec(ctx, query, p.ID, p.Resource, p.Action, p.Name, p.Description)
		if err != nil {
			return inserted, fmt.Errorf("seed %s:%s: %w", p.Resource, p.Action, err)
		}
		inserted += int(cmd.RowsAffected())
	}
	return inserted, nil
}
