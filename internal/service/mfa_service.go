package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"storeadmin/api/internal/models"
	"storeadmin/api/internal/repository"
	"storeadmin/api/internal/security"
)

// MFASetup is returned once; the plaintext backup codes are not recoverable afterwards.
type MFASetup struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauthUrl"`
	QRCode      string   `json:"qrCode"`
	BackupCodes []string `json:"backupCodes"`
}

type MFAService struct {
	users          UserStore
	security       *SecurityService
	totp           *security.TOTP
	hasher         *security.PasswordHasher
	backupCodeCost int
	log            zerolog.Logger
}

func NewMFAService(
	users UserStore,
	securitySvc *SecurityService,
	totp *security.TOTP,
	hasher *security.PasswordHasher,
	backupCodeCost int,
	log zerolog.Logger,
) *MFAService {
	return &MFAService{
		users:          users,
		security:       securitySvc,
		totp:           totp,
		hasher:         hasher,
		backupCodeCost: backupCodeCost,
		log:            log,
	}
}

func (s *MFAService) Setup(ctx context.Context, userID string, client models.ClientContext) (MFASetup, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return MFASetup{}, err
	}
	if user.MFAEnabled {
		return MFASetup{}, badRequest("MFA is already enabled")
	}

	key, err := s.totp.Generate(user.Email)
	if err != nil {
		return MFASetup{}, err
	}
	codes, err := security.NewBackupCodes(security.BackupCodeCount)
	if err != nil {
		return MFASetup{}, err
	}
	hashes, err := security.HashBackupCodes(codes, s.backupCodeCost)
	if err != nil {
		return MFASetup{}, err
	}

	if err := s.users.SetMFASecret(ctx, user.ID, key.Secret, hashes); err != nil {
		return MFASetup{}, err
	}

	s.security.LogEvent(ctx, Event{
		UserID:      user.ID,
		Type:        models.EventMFAEnabled,
		Risk:        models.RiskLow,
		Description: "MFA setup initiated",
		Client:      client,
	})

	return MFASetup{
		Secret:      key.Secret,
		OTPAuthURL:  key.URL,
		QRCode:      key.QRCodePNG,
		BackupCodes: codes,
	}, nil
}

// Enable turns MFA on after the first valid code. An invalid code changes nothing.
func (s *MFAService) Enable(ctx context.Context, userID, code string, client models.ClientContext) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFASecret == nil {
		return badRequest("MFA setup has not been started")
	}
	if !s.totp.Validate(code, *user.MFASecret) {
		return badRequest("Invalid MFA code")
	}

	if err := s.users.EnableMFA(ctx, user.ID); err != nil {
		return err
	}
	s.security.LogEvent(ctx, Event{
		UserID:      user.ID,
		Type:        models.EventMFAEnabled,
		Risk:        models.RiskLow,
		Description: "MFA enabled",
		Client:      client,
	})
	return nil
}

// Verify accepts a current TOTP code or an unused backup code. A matching
// backup code is consumed.
func (s *MFAService) Verify(ctx context.Context, userID, code string, client models.ClientContext) (bool, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.verify(ctx, user, code, client)
}

func (s *MFAService) verify(ctx context.Context, user models.User, code string, client models.ClientContext) (bool, error) {
	if !user.MFAEnabled || user.MFASecret == nil {
		return false, nil
	}

	if security.IsBackupCodeShape(code) {
		idx := security.MatchBackupCode(user.BackupCodes, code)
		if idx < 0 {
			return false, nil
		}
		// user may be stale; the conditional delete decides who used the code.
		consumed, err := s.users.ConsumeBackupCode(ctx, user.ID, user.BackupCodes[idx])
		if err != nil {
			return false, err
		}
		if !consumed {
			return false, nil
		}
		s.security.LogEvent(ctx, Event{
			UserID:      user.ID,
			Type:        models.EventMFABackupUsed,
			Risk:        models.RiskMedium,
			Description: "Backup code used for MFA",
			Client:      client,
			Metadata:    map[string]any{"remainingCodes": len(user.BackupCodes) - 1},
		})
		return true, nil
	}

	return s.totp.Validate(code, *user.MFASecret), nil
}

func (s *MFAService) Disable(ctx context.Context, userID, password string, client models.ClientContext) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	ok, _, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrUnknownHashFormat) {
		return err
	}
	if !ok {
		return badRequest("Invalid password")
	}

	if err := s.users.DisableMFA(ctx, user.ID); err != nil {
		return err
	}
	s.security.LogEvent(ctx, Event{
		UserID:      user.ID,
		Type:        models.EventMFADisabled,
		Risk:        models.RiskMedium,
		Description: "MFA disabled",
		Client:      client,
	})
	return nil
}

func (s *MFAService) loadUser(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, notFound("User not found")
	}
	return user, err
}
