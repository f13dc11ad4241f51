package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storeadmin/api/internal/ids"
	"storeadmin/api/internal/models"
	"storeadmin/api/internal/repository"
	"storeadmin/api/internal/security"
)

// UserService backs the admin user management endpoints.
type UserService struct {
	users       UserStore
	security    *SecurityService
	permissions *PermissionService
	hasher      *security.PasswordHasher
	now         func() time.Time
	log         zerolog.Logger
}

func NewUserService(
	users UserStore,
	securitySvc *SecurityService,
	permissions *PermissionService,
	hasher *security.PasswordHasher,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		users:       users,
		security:    securitySvc,
		permissions: permissions,
		hasher:      hasher,
		now:         time.Now,
		log:         log,
	}
}

func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

type CreateUserInput struct {
	FirstName     string
	LastName      string
	Email         string
	Password      string
	Phone         string
	Role          models.UserRole
	IsActive      *bool
	PermissionIDs []string
}

type UpdateUserInput struct {
	Profile       models.UserProfileUpdate
	Role          *models.UserRole
	Password      *string
	PermissionIDs *[]string
}

func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.Public, int, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, 0, badRequest("Unknown role %q", filter.Role)
	}
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Public, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, total, nil
}

func (s *UserService) Get(ctx context.Context, id string) (models.Public, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return models.Public{}, err
	}
	return user.Public(), nil
}

func (s *UserService) Create(ctx context.Context, input CreateUserInput, actorID string, client models.ClientContext) (models.Public, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return models.Public{}, badRequest("Email and password are required")
	}
	role := input.Role
	if role == "" {
		role = models.UserRoleUser
	}
	if !role.Valid() {
		return models.Public{}, badRequest("Unknown role %q", role)
	}
	if err := security.ValidatePasswordStrength(input.Password); err != nil {
		return models.Public{}, badRequest("%s", err.Error())
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.Public{}, conflict("Email already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.Public{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.Public{}, err
	}

	user := models.User{
		ID:           ids.New(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		user.Phone = &phone
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.Public{}, conflict("Email already registered")
		}
		return models.Public{}, err
	}

	if len(input.PermissionIDs) > 0 {
		if err := s.permissions.UpdatePermissions(ctx, user.ID, input.PermissionIDs, actorID, client); err != nil {
			return models.Public{}, err
		}
	}

	s.log.Info().Str("user_id", user.ID).Str("role", string(role)).Str("created_by", actorID).Msg("user created")
	return s.Get(ctx, user.ID)
}

func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput, actorID string, client models.ClientContext) (models.Public, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return models.Public{}, err
	}

	upd := input.Profile
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if email == "" {
			return models.Public{}, badRequest("Email cannot be empty")
		}
		if email != user.Email {
			if _, err := s.users.FindByEmail(ctx, email); err == nil {
				return models.Public{}, conflict("Email already registered")
			} else if !errors.Is(err, repository.ErrUserNotFound) {
				return models.Public{}, err
			}
		}
		upd.Email = &email
	}
	if input.Role != nil && !input.Role.Valid() {
		return models.Public{}, badRequest("Unknown role %q", *input.Role)
	}
	deactivating := upd.IsActive != nil && !*upd.IsActive
	demoting := input.Role != nil && *input.Role != user.Role && *input.Role != models.UserRoleSuperAdmin
	if deactivating || demoting {
		if err := s.guardLastSuperAdmin(ctx, user); err != nil {
			return models.Public{}, err
		}
	}
	if input.Password != nil {
		if err := security.ValidatePasswordStrength(*input.Password); err != nil {
			return models.Public{}, badRequest("%s", err.Error())
		}
	}

	// The profile write is the one that can hit an email conflict, so it goes
	// before role and password changes.
	if err := s.users.UpdateProfile(ctx, id, upd); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.Public{}, conflict("Email already registered")
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Public{}, notFound("User not found")
		}
		return models.Public{}, err
	}
	if upd.IsActive != nil && *upd.IsActive != user.IsActive {
		if !*upd.IsActive {
			s.endSessions(ctx, id)
		}
		s.logChange(ctx, id, actorID, client, "Account status changed", map[string]any{"isActive": *upd.IsActive})
	}

	if input.Role != nil && *input.Role != user.Role {
		if err := s.UpdateRole(ctx, id, *input.Role, actorID, client); err != nil {
			return models.Public{}, err
		}
	}
	if input.Password != nil {
		if err := s.UpdatePassword(ctx, id, *input.Password, actorID, client); err != nil {
			return models.Public{}, err
		}
	}
	if input.PermissionIDs != nil {
		if err := s.permissions.UpdatePermissions(ctx, id, *input.PermissionIDs, actorID, client); err != nil {
			return models.Public{}, err
		}
	}
	return s.Get(ctx, id)
}

// UpdatePassword sets a password on behalf of the user and signs them out everywhere.
func (s *UserService) UpdatePassword(ctx context.Context, id, password, actorID string, client models.ClientContext) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := security.ValidatePasswordStrength(password); err != nil {
		return badRequest("%s", err.Error())
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash, s.now()); err != nil {
		return err
	}
	s.endSessions(ctx, id)
	s.security.LogEvent(ctx, Event{
		UserID:      id,
		Type:        models.EventPasswordChanged,
		Risk:        models.RiskMedium,
		Description: "Password set by administrator",
		Client:      client,
		Metadata:    map[string]any{"changedBy": actorID},
	})
	return nil
}

func (s *UserService) UpdateRole(ctx context.Context, id string, role models.UserRole, actorID string, client models.ClientContext) error {
	if !role.Valid() {
		return badRequest("Unknown role %q", role)
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == role {
		return nil
	}
	if role != models.UserRoleSuperAdmin {
		if err := s.guardLastSuperAdmin(ctx, user); err != nil {
			return err
		}
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return err
	}
	s.logChange(ctx, id, actorID, client, "Role changed", map[string]any{
		"previousRole": user.Role,
		"role":         role,
	})
	return nil
}

func (s *UserService) ToggleStatus(ctx context.Context, id, actorID string, client models.ClientContext) (models.Public, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return models.Public{}, err
	}
	if err := s.SetStatus(ctx, id, !user.IsActive, actorID, client); err != nil {
		return models.Public{}, err
	}
	return s.Get(ctx, id)
}

func (s *UserService) SetStatus(ctx context.Context, id string, active bool, actorID string, client models.ClientContext) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !active {
		if err := s.guardLastSuperAdmin(ctx, user); err != nil {
			return err
		}
	}
	if _, err := s.users.SetActive(ctx, []string{id}, active); err != nil {
		return err
	}
	if !active {
		s.endSessions(ctx, id)
	}
	s.logChange(ctx, id, actorID, client, "Account status changed", map[string]any{"isActive": active})
	return nil
}

func (s *UserService) Delete(ctx context.Context, id, actorID string, client models.ClientContext) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guardLastSuperAdmin(ctx, user); err != nil {
		return err
	}
	n, err := s.users.Delete(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("User not found")
	}
	s.logDeletion(ctx, []string{id}, actorID, client)
	return nil
}

func (s *UserService) BulkSetStatus(ctx context.Context, userIDs []string, active bool, actorID string, client models.ClientContext) (int64, error) {
	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return 0, badRequest("No users selected")
	}
	if !active {
		if err := s.guardLastSuperAdminAmong(ctx, userIDs); err != nil {
			return 0, err
		}
	}
	n, err := s.users.SetActive(ctx, userIDs, active)
	if err != nil {
		return 0, err
	}
	for _, id := range userIDs {
		if !active {
			s.endSessions(ctx, id)
		}
		s.logChange(ctx, id, actorID, client, "Account status changed", map[string]any{"isActive": active, "bulk": true})
	}
	return n, nil
}

func (s *UserService) BulkDelete(ctx context.Context, userIDs []string, actorID string, client models.ClientContext) (int64, error) {
	userIDs = dedupe(userIDs)
	if len(userIDs) == 0 {
		return 0, badRequest("No users selected")
	}
	if err := s.guardLastSuperAdminAmong(ctx, userIDs); err != nil {
		return 0, err
	}
	n, err := s.users.Delete(ctx, userIDs)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logDeletion(ctx, userIDs, actorID, client)
	}
	return n, nil
}

func (s *UserService) Stats(ctx context.Context) (models.UserStats, error) {
	return s.users.Stats(ctx, s.now())
}

// guardLastSuperAdmin fails when removing user would leave no active super
// admin. The count is read right before the caller mutates; two concurrent
// removals of the last two super admins can still both pass.
func (s *UserService) guardLastSuperAdmin(ctx context.Context, user models.User) error {
	if user.Role != models.UserRoleSuperAdmin || !user.IsActive {
		return nil
	}
	count, err := s.users.CountActiveSuperAdmins(ctx)
	if err != nil {
		return err
	}
	if count <= 1 {
		return badRequest(msgLastSuperAdmin)
	}
	return nil
}

func (s *UserService) guardLastSuperAdminAmong(ctx context.Context, userIDs []string) error {
	among, err := s.users.CountActiveSuperAdminsAmong(ctx, userIDs)
	if err != nil {
		return err
	}
	if among == 0 {
		return nil
	}
	total, err := s.users.CountActiveSuperAdmins(ctx)
	if err != nil {
		return err
	}
	if total-among < 1 {
		return badRequest(msgLastSuperAdmin)
	}
	return nil
}

func (s *UserService) endSessions(ctx context.Context, userID string) {
	if _, err := s.security.endAllSessions(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("revoke sessions failed")
	}
}

func (s *UserService) logChange(ctx context.Context, userID, actorID string, client models.ClientContext, description string, metadata map[string]any) {
	metadata["changedBy"] = actorID
	s.security.LogEvent(ctx, Event{
		UserID:      userID,
		Type:        models.EventPermissionChanged,
		Risk:        models.RiskMedium,
		Description: description,
		Client:      client,
		Metadata:    metadata,
	})
}

// logDeletion files the entry under the actor; the deleted rows can no longer
// be referenced by security_logs.user_id.
func (s *UserService) logDeletion(ctx context.Context, userIDs []string, actorID string, client models.ClientContext) {
	s.security.LogEvent(ctx, Event{
		UserID:      actorID,
		Type:        models.EventPermissionChanged,
		Risk:        models.RiskMedium,
		Description: "Users deleted",
		Client:      client,
		Metadata:    map[string]any{"deletedUserIds": userIDs, "changedBy": actorID},
	})
}

func (s *UserService) load(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, notFound("User not found")
	}
	return user, err
}
