package models

import "time"

type SecurityEventType string

const (
	EventLoginSuccess           SecurityEventType = "login_success"
	EventLoginFailed            SecurityEventType = "login_failed"
	EventLoginBlocked           SecurityEventType = "login_blocked"
	EventLogout                 SecurityEventType = "logout"
	EventPasswordChanged        SecurityEventType = "password_changed"
	EventPasswordResetRequested SecurityEventType = "password_reset_requested"
	EventPasswordResetCompleted SecurityEventType = "password_reset_completed"
	EventMFAEnabled             SecurityEventType = "mfa_enabled"
	EventMFADisabled            SecurityEventType = "mfa_disabled"
	EventMFABackupUsed          SecurityEventType = "mfa_backup_used"
	EventAccountLocked          SecurityEventType = "account_locked"
	EventAccountUnlocked        SecurityEventType = "account_unlocked"
	EventEmailVerified          SecurityEventType = "email_verified"
	EventSuspiciousActivity     SecurityEventType = "suspicious_activity"
	EventPermissionChanged      SecurityEventType = "permission_changed"
)

func (t SecurityEventType) Valid() bool {
	switch t {
	case EventLoginSuccess, EventLoginFailed, EventLoginBlocked, EventLogout,
		EventPasswordChanged, EventPasswordResetRequested, EventPasswordResetCompleted,
		EventMFAEnabled, EventMFADisabled, EventMFABackupUsed,
		EventAccountLocked, EventAccountUnlocked, EventEmailVerified,
		EventSuspiciousActivity, EventPermissionChanged:
		return true
	}
	return false
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Elevated risks are the ones pushed to the alert stream.
func (r RiskLevel) Elevated() bool {
	return r == RiskHigh || r == RiskCritical
}

type SecurityLog struct {
	ID              string            `json:"id"`
	UserID          *string           `json:"userId"`
	EventType       SecurityEventType `json:"eventType"`
	RiskLevel       RiskLevel         `json:"riskLevel"`
	Description     string            `json:"description"`
	IPAddress       string            `json:"ipAddress"`
	UserAgent       string            `json:"userAgent"`
	Location        string            `json:"location"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
	IsResolved      bool              `json:"isResolved"`
	ResolvedBy      *string           `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time        `json:"resolvedAt,omitempty"`
	ResolutionNotes *string           `json:"resolutionNotes,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

type SecurityLogFilter struct {
	UserID    string
	EventType SecurityEventType
	RiskLevel RiskLevel
	Resolved  *bool
	Limit     int
	Offset    int
}

type SecurityStats struct {
	TotalEvents    int `json:"totalEvents"`
	HighRiskEvents int `json:"highRiskEvents"`
	LockedAccounts int `json:"lockedAccounts"`
	ActiveSessions int `json:"activeSessions"`
}
