package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storeadmin/api/internal/ids"
	"storeadmin/api/internal/models"
	"storeadmin/api/internal/repository"
	"storeadmin/api/internal/revocation"
	"storeadmin/api/internal/security"
)

// Login outcomes reported to the EventRecorder.
const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeLocked      = "locked"
	OutcomeMFARequired = "mfa_required"
)

// ResetNotifier delivers password reset tokens to their owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user models.User, token string, expiresAt time.Time) error
}

type AuthService struct {
	users    UserStore
	security *SecurityService
	mfa      *MFAService
	tokens   *security.TokenIssuer
	revoked  revocation.Registry
	hasher   *security.PasswordHasher
	notifier ResetNotifier
	recorder EventRecorder
	resetTTL time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewAuthService(
	users UserStore,
	securitySvc *SecurityService,
	mfa *MFAService,
	tokens *security.TokenIssuer,
	revoked revocation.Registry,
	hasher *security.PasswordHasher,
	resetTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		security: securitySvc,
		mfa:      mfa,
		tokens:   tokens,
		revoked:  revoked,
		hasher:   hasher,
		notifier: NewLogResetNotifier(log, false),
		recorder: noopRecorder{},
		resetTTL: resetTTL,
		now:      time.Now,
		log:      log,
	}
}

func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) WithNotifier(notifier ResetNotifier) *AuthService {
	s.notifier = notifier
	return s
}

func (s *AuthService) WithRecorder(recorder EventRecorder) *AuthService {
	s.recorder = recorder
	return s
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
}

type LoginInput struct {
	Email    string
	Password string
	MFACode  string
}

// AuthResult carries a token pair on success. When RequiresMFA is set nothing
// was issued and the client must retry with an MFA code.
type AuthResult struct {
	AccessToken  string         `json:"accessToken,omitempty"`
	ExpiresAt    *time.Time     `json:"expiresAt,omitempty"`
	SessionToken string         `json:"sessionToken,omitempty"`
	User         *models.Public `json:"user,omitempty"`
	RequiresMFA  bool           `json:"requiresMfa,omitempty"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput, client models.ClientContext) (AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, badRequest("Email and password are required")
	}
	if err := security.ValidatePasswordStrength(input.Password); err != nil {
		return AuthResult{}, badRequest("%s", err.Error())
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, conflict("Email already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:           ids.New(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        input.Email,
		PasswordHash: hash,
		Role:         models.UserRoleUser,
		IsActive:     true,
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		user.Phone = &phone
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return AuthResult{}, conflict("Email already registered")
		}
		return AuthResult{}, err
	}
	user.CreatedAt = s.now()
	user.UpdatedAt = user.CreatedAt

	return s.issue(ctx, user, client)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput, client models.ClientContext) (AuthResult, error) {
	email := normalizeEmail(input.Email)

	locked, err := s.security.IsAccountLocked(ctx, email)
	if err != nil {
		return AuthResult{}, err
	}
	if locked {
		s.security.LogEvent(ctx, Event{
			Type:        models.EventLoginBlocked,
			Risk:        models.RiskMedium,
			Description: "Login attempt on locked account",
			Client:      client,
			Metadata:    map[string]any{"email": email},
		})
		s.recorder.LoginOutcome(OutcomeLocked)
		return AuthResult{}, unauthorized(msgAccountLocked)
	}

	user, err := s.users.FindActiveByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.security.RecordUnknownLogin(ctx, email, client)
		s.recorder.LoginOutcome(OutcomeFailed)
		return AuthResult{}, unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return AuthResult{}, err
	}

	ok, rehash, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrUnknownHashFormat) {
		return AuthResult{}, err
	}
	if !ok {
		return AuthResult{}, s.failLogin(ctx, user, client, "invalid_password")
	}

	if user.MFAEnabled {
		if input.MFACode == "" {
			s.recorder.LoginOutcome(OutcomeMFARequired)
			return AuthResult{RequiresMFA: true}, nil
		}
		valid, err := s.mfa.verify(ctx, user, input.MFACode, client)
		if err != nil {
			return AuthResult{}, err
		}
		if !valid {
			return AuthResult{}, s.failLogin(ctx, user, client, "invalid_mfa_code")
		}
	}

	if user.RequirePasswordChange {
		s.recorder.LoginOutcome(OutcomeFailed)
		return AuthResult{}, &Error{
			Kind:    ErrUnauthorized,
			Message: "Password change required before signing in",
			Code:    CodePasswordChangeRequired,
		}
	}

	if rehash {
		s.upgradeHash(ctx, user.ID, input.Password)
	}

	if err := s.security.RecordSuccessfulLogin(ctx, user, client); err != nil {
		return AuthResult{}, err
	}
	s.recorder.LoginOutcome(OutcomeSuccess)

	now := s.now()
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	return s.issue(ctx, user, client)
}

func (s *AuthService) failLogin(ctx context.Context, user models.User, client models.ClientContext, reason string) error {
	locked, err := s.security.RecordFailedLogin(ctx, user, client, reason)
	if err != nil {
		return err
	}
	if locked {
		s.recorder.LoginOutcome(OutcomeLocked)
	} else {
		s.recorder.LoginOutcome(OutcomeFailed)
	}
	return unauthorized(msgInvalidCredentials)
}

func (s *AuthService) upgradeHash(ctx context.Context, userID, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.ReplacePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("password rehash failed")
	}
}

func (s *AuthService) issue(ctx context.Context, user models.User, client models.ClientContext) (AuthResult, error) {
	session, err := s.security.CreateSession(ctx, user.ID, client)
	if err != nil {
		return AuthResult{}, err
	}
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, string(user.Role))
	if err != nil {
		return AuthResult{}, err
	}
	public := user.Public()
	return AuthResult{
		AccessToken:  token,
		ExpiresAt:    &expiresAt,
		SessionToken: session.Token,
		User:         &public,
	}, nil
}

// Logout blacklists the bearer token and ends the session when one is given.
// Activity bookkeeping afterwards is best effort.
func (s *AuthService) Logout(ctx context.Context, bearer, sessionToken string, client models.ClientContext) error {
	if err := s.revoked.Blacklist(ctx, bearer); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	claims, err := security.Decode(bearer)
	if err != nil || claims.UserID() == "" {
		s.log.Debug().Err(err).Msg("logout token not decodable, skipping session and activity update")
		return nil
	}

	if sessionToken != "" {
		if err := s.security.RevokeSession(ctx, claims.UserID(), sessionToken); err != nil {
			s.log.Warn().Err(err).Msg("deactivate session on logout failed")
		}
	}

	if err := s.users.TouchActivity(ctx, claims.UserID(), s.now()); err != nil {
		s.log.Warn().Err(err).Str("user_id", claims.UserID()).Msg("update last activity failed")
	}
	s.security.LogEvent(ctx, Event{
		UserID:      claims.UserID(),
		Type:        models.EventLogout,
		Risk:        models.RiskLow,
		Description: "User logged out",
		Client:      client,
	})
	return nil
}

// Authenticate resolves a bearer token to its active user. Revoked tokens fail
// even when their signature and expiry are valid.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (models.User, *security.AccessClaims, error) {
	if bearer == "" {
		return models.User{}, nil, unauthorized("Missing bearer token")
	}
	revoked, err := s.revoked.IsBlacklisted(ctx, bearer)
	if err != nil {
		return models.User{}, nil, err
	}
	if revoked {
		return models.User{}, nil, unauthorized("Token has been revoked")
	}

	claims, err := s.tokens.Parse(bearer)
	if err != nil {
		return models.User{}, nil, unauthorized("Invalid or expired token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, nil, unauthorized("Invalid or expired token")
	}
	if err != nil {
		return models.User{}, nil, err
	}
	if !user.IsActive {
		return models.User{}, nil, unauthorized("Account is disabled")
	}
	return user, claims, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (models.Public, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.Public{}, notFound("User not found")
	}
	if err != nil {
		return models.Public{}, err
	}
	return user.Public(), nil
}

// ChangePassword ends every session of the user. Issuing a fresh token for the
// current client is up to the caller.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string, client models.ClientContext) error {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return notFound("User not found")
	}
	if err != nil {
		return err
	}

	ok, _, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrUnknownHashFormat) {
		return err
	}
	if !ok {
		return badRequest("Current password is incorrect")
	}
	return s.setPassword(ctx, user, next, client, models.EventPasswordChanged, "Password changed")
}

// ChangeExpiredPassword lets a user blocked by the must-change flag pick a new
// password without a token. Wrong credentials count toward lockout.
func (s *AuthService) ChangeExpiredPassword(ctx context.Context, email, current, next string, client models.ClientContext) error {
	email = normalizeEmail(email)

	locked, err := s.security.IsAccountLocked(ctx, email)
	if err != nil {
		return err
	}
	if locked {
		return unauthorized(msgAccountLocked)
	}

	user, err := s.users.FindActiveByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.security.RecordUnknownLogin(ctx, email, client)
		return unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return err
	}

	ok, _, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrUnknownHashFormat) {
		return err
	}
	if !ok {
		return s.failLogin(ctx, user, client, "invalid_password")
	}
	if err := s.setPassword(ctx, user, next, client, models.EventPasswordChanged, "Expired password changed"); err != nil {
		return err
	}
	if err := s.users.ResetLockout(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("reset lockout after password change failed")
	}
	return nil
}

func (s *AuthService) setPassword(
	ctx context.Context,
	user models.User,
	password string,
	client models.ClientContext,
	event models.SecurityEventType,
	description string,
) error {
	if err := security.ValidatePasswordStrength(password); err != nil {
		return badRequest("%s", err.Error())
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
		return err
	}

	revoked, err := s.security.endAllSessions(ctx, user.ID)
	if err != nil {
		return err
	}

	risk := models.RiskLow
	if event == models.EventPasswordResetCompleted {
		risk = models.RiskMedium
	}
	s.security.LogEvent(ctx, Event{
		UserID:      user.ID,
		Type:        event,
		Risk:        risk,
		Description: description,
		Client:      client,
		Metadata:    map[string]any{"revokedSessions": revoked},
	})
	return nil
}

// RequestPasswordReset answers with the same message whether or not the email
// belongs to an account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, client models.ClientContext) (string, error) {
	email = normalizeEmail(email)

	user, err := s.users.FindActiveByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.log.Debug().Str("email", email).Msg("password reset requested for unknown account")
		return msgResetRequested, nil
	}
	if err != nil {
		return "", err
	}

	token, hash, err := security.NewResetToken()
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return "", err
	}

	s.security.LogEvent(ctx, Event{
		UserID:      user.ID,
		Type:        models.EventPasswordResetRequested,
		Risk:        models.RiskMedium,
		Description: "Password reset requested",
		Client:      client,
	})

	if err := s.notifier.SendPasswordReset(ctx, user, token, expiresAt); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("deliver password reset failed")
	}
	return msgResetRequested, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, next string, client models.ClientContext) error {
	if token == "" {
		return badRequest("Invalid or expired reset token")
	}
	user, err := s.users.FindByResetTokenHash(ctx, security.HashResetToken(token), s.now())
	if errors.Is(err, repository.ErrUserNotFound) {
		return badRequest("Invalid or expired reset token")
	}
	if err != nil {
		return err
	}
	return s.setPassword(ctx, user, next, client, models.EventPasswordResetCompleted, "Password reset completed")
}

// BootstrapAdmin provisions a super administrator with a generated temporary
// password that must be changed at first login.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email, firstName, lastName string) (models.Public, string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return models.Public{}, "", badRequest("Email is required")
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.Public{}, "", conflict("Email already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.Public{}, "", err
	}

	password, err := security.NewTemporaryPassword()
	if err != nil {
		return models.Public{}, "", err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Public{}, "", err
	}

	user := models.User{
		ID:                    ids.New(),
		FirstName:             firstName,
		LastName:              lastName,
		Email:                 email,
		PasswordHash:          hash,
		Role:                  models.UserRoleSuperAdmin,
		IsActive:              true,
		RequirePasswordChange: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.Public{}, "", conflict("Email already registered")
		}
		return models.Public{}, "", err
	}

	s.log.Info().Str("user_id", user.ID).Str("email", email).Msg("super admin provisioned")
	return user.Public(), password, nil
}

type logResetNotifier struct {
	log         zerolog.Logger
	exposeToken bool
}

// NewLogResetNotifier writes reset notices to the log. The token itself is only
// included when exposeToken is set, which is meant for development.
func NewLogResetNotifier(log zerolog.Logger, exposeToken bool) ResetNotifier {
	return logResetNotifier{log: log, exposeToken: exposeToken}
}

func (n logResetNotifier) SendPasswordReset(_ context.Context, user models.User, token string, expiresAt time.Time) error {
	ev := n.log.Info().Str("user_id", user.ID).Time("expires_at", expiresAt)
	if n.exposeToken {
		ev = ev.Str("reset_token", token)
	}
	ev.Msg("password reset issued")
	return nil
}
