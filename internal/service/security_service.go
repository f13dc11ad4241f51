package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storeadmin/api/internal/ids"
	"storeadmin/api/internal/models"
	"storeadmin/api/internal/repository"
	"storeadmin/api/internal/security"
)

type SecurityPolicy struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	SessionTTL        time.Duration
}

var DefaultSecurityPolicy = SecurityPolicy{
	MaxFailedAttempts: 5,
	LockoutDuration:   30 * time.Minute,
	SessionTTL:        24 * time.Hour,
}

// SecurityService owns lockout state, server-side sessions and the security event log.
type SecurityService struct {
	users    UserStore
	sessions SessionStore
	logs     SecurityLogStore
	alerts   AlertPublisher
	recorder EventRecorder
	policy   SecurityPolicy
	now      func() time.Time
	log      zerolog.Logger
}

func NewSecurityService(
	users UserStore,
	sessions SessionStore,
	logs SecurityLogStore,
	policy SecurityPolicy,
	log zerolog.Logger,
) *SecurityService {
	return &SecurityService{
		users:    users,
		sessions: sessions,
		logs:     logs,
		recorder: noopRecorder{},
		policy:   policy,
		now:      time.Now,
		log:      log,
	}
}

func (s *SecurityService) WithClock(now func() time.Time) *SecurityService {
	s.now = now
	return s
}

func (s *SecurityService) WithAlerts(alerts AlertPublisher) *SecurityService {
	s.alerts = alerts
	return s
}

func (s *SecurityService) WithRecorder(recorder EventRecorder) *SecurityService {
	s.recorder = recorder
	return s
}

func (s *SecurityService) Now() time.Time {
	return s.now()
}

// Event describes one security log entry to append.
type Event struct {
	UserID      string
	Type        models.SecurityEventType
	Risk        models.RiskLevel
	Description string
	Client      models.ClientContext
	Metadata    map[string]any
}

// LogEvent appends to the security log. Failures are logged and never returned.
func (s *SecurityService) LogEvent(ctx context.Context, ev Event) {
	entry := models.SecurityLog{
		ID:          ids.NewSortable(),
		EventType:   ev.Type,
		RiskLevel:   ev.Risk,
		Description: ev.Description,
		IPAddress:   ev.Client.IPAddress,
		UserAgent:   ev.Client.UserAgent,
		Location:    ev.Client.Location,
		Metadata:    ev.Metadata,
		CreatedAt:   s.now(),
	}
	if ev.UserID != "" {
		userID := ev.UserID
		entry.UserID = &userID
	}

	s.recorder.SecurityEvent(ev.Type, ev.Risk)

	if err := s.logs.Create(ctx, entry); err != nil {
		s.log.Error().Err(err).
			Str("event_type", string(ev.Type)).
			Str("user_id", ev.UserID).
			Msg("write security log failed")
	}

	if s.alerts != nil && ev.Risk.Elevated() {
		if err := s.alerts.Publish(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("publish security alert failed")
		}
	}
}

func (s *SecurityService) IsAccountLocked(ctx context.Context, email string) (bool, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsLocked(s.now()), nil
}

// RecordFailedLogin bumps the failure counter and locks the account once the
// threshold is reached. The read-modify-write can lose updates under concurrent
// failures for the same account; the counter is a heuristic.
func (s *SecurityService) RecordFailedLogin(ctx context.Context, user models.User, client models.ClientContext, reason string) (bool, error) {
	attempts := user.FailedLoginAttempts + 1

	var lockedUntil *time.Time
	if attempts >= s.policy.MaxFailedAttempts {
		until := s.now().Add(s.policy.LockoutDuration)
		lockedUntil = &until
	}

	if err := s.users.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil); err != nil {
		return false, fmt.Errorf("record login failure: %w", err)
	}

	if lockedUntil != nil {
		s.LogEvent(ctx, Event{
			UserID:      user.ID,
			Type:        models.EventAccountLocked,
			Risk:        models.RiskHigh,
			Description: fmt.Sprintf("Account locked after %d failed login attempts", attempts),
			Client:      client,
			Metadata:    map[string]any{"attempts": attempts, "reason": reason},
		})
		return true, nil
	}

	s.LogEvent(ctx, Event{
		UserID:      user.ID,
		Type:        models.EventLoginFailed,
		Risk:        models.RiskMedium,
		Description: fmt.Sprintf("Failed login attempt %d/%d", attempts, s.policy.MaxFailedAttempts),
		Client:      client,
		Metadata:    map[string]any{"attempts": attempts, "reason": reason},
	})
	return false, nil
}

// RecordUnknownLogin logs a failed login for an email that resolved to no active user.
func (s *SecurityService) RecordUnknownLogin(ctx context.Context, email string, client models.ClientContext) {
	s.LogEvent(ctx, Event{
		Type:        models.EventLoginFailed,
		Risk:        models.RiskMedium,
		Description: "Failed login attempt for unknown account",
		Client:      client,
		Metadata:    map[string]any{"email": email},
	})
}

func (s *SecurityService) RecordSuccessfulLogin(ctx context.Context, user models.User, client models.ClientContext) error {
	if err := s.users.RecordLoginSuccess(ctx, user.ID, s.now(), client.IPAddress, client.UserAgent); err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	s.LogEvent(ctx, Event{
		UserID:      user.ID,
		Type:        models.EventLoginSuccess,
		Risk:        models.RiskLow,
		Description: "Successful login",
		Client:      client,
	})
	return nil
}

func (s *SecurityService) UnlockAccount(ctx context.Context, userID, actorID string, client models.ClientContext) error {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return notFound("User not found")
	}
	if err != nil {
		return err
	}
	return s.unlock(ctx, user, actorID, client)
}

func (s *SecurityService) UnlockByEmail(ctx context.Context, email, actorID string, client models.ClientContext) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return notFound("User not found")
	}
	if err != nil {
		return err
	}
	return s.unlock(ctx, user, actorID, client)
}

func (s *SecurityService) unlock(ctx context.Context, user models.User, actorID string, client models.ClientContext) error {
	if err := s.users.ResetLockout(ctx, user.ID); err != nil {
		return err
	}
	s.LogEvent(ctx, Event{
		UserID:      user.ID,
		Type:        models.EventAccountUnlocked,
		Risk:        models.RiskLow,
		Description: "Account unlocked by administrator",
		Client:      client,
		Metadata:    map[string]any{"unlockedBy": actorID},
	})
	return nil
}

func (s *SecurityService) CreateSession(ctx context.Context, userID string, client models.ClientContext) (models.Session, error) {
	token, err := security.NewSessionToken()
	if err != nil {
		return models.Session{}, err
	}
	now := s.now()
	session := models.Session{
		ID:             ids.New(),
		UserID:         userID,
		Token:          token,
		IPAddress:      client.IPAddress,
		UserAgent:      client.UserAgent,
		Location:       client.Location,
		Device:         client.Device,
		IsActive:       true,
		ExpiresAt:      now.Add(s.policy.SessionTTL),
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// ValidateSession returns the active session for token and refreshes its activity.
// Expired sessions are deactivated and reported as not found.
func (s *SecurityService) ValidateSession(ctx context.Context, token string) (models.Session, bool, error) {
	session, err := s.sessions.FindActiveByToken(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, err
	}

	now := s.now()
	if session.Expired(now) {
		if err := s.sessions.DeactivateByToken(ctx, token); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
			s.log.Warn().Err(err).Str("session_id", session.ID).Msg("deactivate expired session failed")
		}
		return models.Session{}, false, nil
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID).Msg("touch session failed")
	}
	session.LastActivityAt = now
	return session, true, nil
}

// RevokeSession ends the session identified by token when it belongs to
// userID. Unknown tokens and other users' sessions are left alone.
func (s *SecurityService) RevokeSession(ctx context.Context, userID, token string) error {
	session, err := s.sessions.FindActiveByToken(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if session.UserID != userID {
		s.log.Warn().Str("user_id", userID).Str("session_owner", session.UserID).Msg("logout presented another user's session token")
		return nil
	}
	err = s.sessions.Deactivate(ctx, userID, session.ID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (s *SecurityService) RevokeUserSession(ctx context.Context, userID, sessionID string) error {
	err := s.sessions.Deactivate(ctx, userID, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return notFound("Session not found")
	}
	return err
}

// RevokeAllSessions ends every session of userID on behalf of actorID.
func (s *SecurityService) RevokeAllSessions(ctx context.Context, userID, actorID string, client models.ClientContext) (int64, error) {
	n, err := s.endAllSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.LogEvent(ctx, Event{
		UserID:      userID,
		Type:        models.EventLogout,
		Risk:        models.RiskMedium,
		Description: "All sessions revoked",
		Client:      client,
		Metadata:    map[string]any{"revokedBy": actorID, "count": n},
	})
	return n, nil
}

// endAllSessions is used by flows that write their own security event.
func (s *SecurityService) endAllSessions(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessions.DeactivateAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}

func (s *SecurityService) ActiveSessions(ctx context.Context, userID string) ([]models.Session, error) {
	return s.sessions.ListActiveByUser(ctx, userID, s.now())
}

func (s *SecurityService) ListLogs(ctx context.Context, filter models.SecurityLogFilter) ([]models.SecurityLog, int, error) {
	if filter.EventType != "" && !filter.EventType.Valid() {
		return nil, 0, badRequest("Unknown event type %q", filter.EventType)
	}
	if filter.RiskLevel != "" && !filter.RiskLevel.Valid() {
		return nil, 0, badRequest("Unknown risk level %q", filter.RiskLevel)
	}
	return s.logs.List(ctx, filter)
}

func (s *SecurityService) ResolveLog(ctx context.Context, id, actorID, notes string) error {
	err := s.logs.Resolve(ctx, id, actorID, notes, s.now())
	if errors.Is(err, repository.ErrSecurityLogNotFound) {
		return notFound("Security log not found")
	}
	return err
}

func (s *SecurityService) Stats(ctx context.Context) (models.SecurityStats, error) {
	now := s.now()
	total, high, err := s.logs.Counts(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return models.SecurityStats{}, err
	}
	locked, err := s.users.CountLocked(ctx, now)
	if err != nil {
		return models.SecurityStats{}, err
	}
	active, err := s.sessions.CountActive(ctx, now)
	if err != nil {
		return models.SecurityStats{}, err
	}
	return models.SecurityStats{
		TotalEvents:    total,
		HighRiskEvents: high,
		LockedAccounts: locked,
		ActiveSessions: active,
	}, nil
}
