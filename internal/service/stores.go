package service

import (
	"context"
	"time"

	"storeadmin/api/internal/models"
)

// UserStore is satisfied by *repository.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindActiveByEmail(ctx context.Context, email string) (models.User, error)
	FindByResetTokenHash(ctx context.Context, hash string, now time.Time) (models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	RecordLoginSuccess(ctx context.Context, id string, at time.Time, ip, userAgent string) error
	ResetLockout(ctx context.Context, id string) error
	TouchActivity(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, hash []byte, changedAt time.Time) error
	ReplacePasswordHash(ctx context.Context, id string, hash []byte) error
	SetResetToken(ctx context.Context, id string, hash string, expiresAt time.Time) error
	SetMFASecret(ctx context.Context, id string, secret string, backupHashes []string) error
	EnableMFA(ctx context.Context, id string) error
	DisableMFA(ctx context.Context, id string) error
	ConsumeBackupCode(ctx context.Context, id, hash string) (bool, error)
	UpdateProfile(ctx context.Context, id string, upd models.UserProfileUpdate) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	SetActive(ctx context.Context, ids []string, active bool) (int64, error)
	Delete(ctx context.Context, ids []string) (int64, error)
	CountActiveSuperAdmins(ctx context.Context) (int, error)
	CountActiveSuperAdminsAmong(ctx context.Context, ids []string) (int, error)
	CountLocked(ctx context.Context, now time.Time) (int, error)
	Stats(ctx context.Context, now time.Time) (models.UserStats, error)
}

// SessionStore is satisfied by *repository.SessionRepository.
type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	FindActiveByToken(ctx context.Context, token string) (models.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	DeactivateByToken(ctx context.Context, token string) error
	Deactivate(ctx context.Context, userID, sessionID string) error
	DeactivateAllForUser(ctx context.Context, userID string) (int64, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.Session, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
}

// SecurityLogStore is satisfied by *repository.SecurityLogRepository.
type SecurityLogStore interface {
	Create(ctx context.Context, entry models.SecurityLog) error
	List(ctx context.Context, filter models.SecurityLogFilter) ([]models.SecurityLog, int, error)
	Resolve(ctx context.Context, id, resolvedBy, notes string, at time.Time) error
	Counts(ctx context.Context, since time.Time) (total int, highRisk int, err error)
}

// PermissionStore is satisfied by *repository.PermissionRepository.
type PermissionStore interface {
	ListAll(ctx context.Context) ([]models.Permission, error)
	ListGrantedForUser(ctx context.Context, userID string) ([]models.Permission, error)
	HasGrant(ctx context.Context, userID string, resource models.Resource, action models.Action) (bool, error)
	ReplaceGrants(ctx context.Context, userID string, permissionIDs []string) error
	Seed(ctx context.Context, perms []models.Permission) (int, error)
}

// AlertPublisher receives security events of elevated risk.
type AlertPublisher interface {
	Publish(ctx context.Context, entry models.SecurityLog) error
}

// EventRecorder is the metrics hook for security events and login outcomes.
type EventRecorder interface {
	SecurityEvent(eventType models.SecurityEventType, risk models.RiskLevel)
	LoginOutcome(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) SecurityEvent(models.SecurityEventType, models.RiskLevel) {}
func (noopRecorder) LoginOutcome(string)                                      {}
