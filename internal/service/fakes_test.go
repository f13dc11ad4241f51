package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"storeadmin/api/internal/models"
	"storeadmin/api/internal/repository"
	"storeadmin/api/internal/revocation"
	"storeadmin/api/internal/security"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeUsers struct {
	mu       sync.Mutex
	byID     map[string]models.User
	activity map[string]time.Time
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]models.User{}, activity: map[string]time.Time{}}
}

func (f *fakeUsers) put(u models.User) {
	f.mu.Lock()
	f.byID[u.ID] = u
	f.mu.Unlock()
}

func (f *fakeUsers) get(id string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeUsers) update(id string, fn func(u *models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) Create(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) find(match func(models.User) bool) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.Email == email })
}

func (f *fakeUsers) FindActiveByEmail(_ context.Context, email string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.Email == email && u.IsActive })
}

func (f *fakeUsers) FindByResetTokenHash(_ context.Context, hash string, now time.Time) (models.User, error) {
	return f.find(func(u models.User) bool {
		return u.PasswordResetTokenHash != nil && *u.PasswordResetTokenHash == hash &&
			u.PasswordResetExpiresAt != nil && u.PasswordResetExpiresAt.After(now)
	})
}

func (f *fakeUsers) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.byID {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, len(out), nil
}

func (f *fakeUsers) RecordLoginFailure(_ context.Context, id string, attempts int, lockedUntil *time.Time) error {
	return f.update(id, func(u *models.User) {
		u.FailedLoginAttempts = attempts
		u.LockedUntil = lockedUntil
	})
}

func (f *fakeUsers) RecordLoginSuccess(_ context.Context, id string, at time.Time, ip, userAgent string) error {
	return f.update(id, func(u *models.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLoginAt = &at
		u.LastLoginIP = &ip
		u.LastLoginUserAgent = &userAgent
	})
}

func (f *fakeUsers) ResetLockout(_ context.Context, id string) error {
	return f.update(id, func(u *models.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (f *fakeUsers) TouchActivity(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	f.activity[id] = at
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id string, hash []byte, changedAt time.Time) error {
	return f.update(id, func(u *models.User) {
		u.PasswordHash = hash
		u.PasswordChangedAt = &changedAt
		u.RequirePasswordChange = false
		u.PasswordResetTokenHash = nil
		u.PasswordResetExpiresAt = nil
	})
}

func (f *fakeUsers) ReplacePasswordHash(_ context.Context, id string, hash []byte) error {
	return f.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (f *fakeUsers) SetResetToken(_ context.Context, id string, hash string, expiresAt time.Time) error {
	return f.update(id, func(u *models.User) {
		u.PasswordResetTokenHash = &hash
		u.PasswordResetExpiresAt = &expiresAt
	})
}

func (f *fakeUsers) SetMFASecret(_ context.Context, id string, secret string, backupHashes []string) error {
	return f.update(id, func(u *models.User) {
		u.MFASecret = &secret
		u.BackupCodes = backupHashes
		u.MFAEnabled = false
	})
}

func (f *fakeUsers) EnableMFA(_ context.Context, id string) error {
	return f.update(id, func(u *models.User) { u.MFAEnabled = true })
}

func (f *fakeUsers) DisableMFA(_ context.Context, id string) error {
	return f.update(id, func(u *models.User) {
		u.MFAEnabled = false
		u.MFASecret = nil
		u.BackupCodes = nil
	})
}

func (f *fakeUsers) ConsumeBackupCode(_ context.Context, id, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	for i, h := range u.BackupCodes {
		if h == hash {
			remaining := make([]string, 0, len(u.BackupCodes)-1)
			remaining = append(remaining, u.BackupCodes[:i]...)
			u.BackupCodes = append(remaining, u.BackupCodes[i+1:]...)
			f.byID[id] = u
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id string, upd models.UserProfileUpdate) error {
	return f.update(id, func(u *models.User) {
		if upd.FirstName != nil {
			u.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			u.LastName = *upd.LastName
		}
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if upd.Phone != nil {
			u.Phone = upd.Phone
		}
		if upd.IsActive != nil {
			u.IsActive = *upd.IsActive
		}
	})
}

func (f *fakeUsers) UpdateRole(_ context.Context, id string, role models.UserRole) error {
	return f.update(id, func(u *models.User) { u.Role = role })
}

func (f *fakeUsers) SetActive(_ context.Context, ids []string, active bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			u.IsActive = active
			f.byID[id] = u
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) Delete(_ context.Context, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := f.byID[id]; ok {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) CountActiveSuperAdmins(ctx context.Context) (int, error) {
	f.mu.Lock()
	ids := make([]string, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	f.mu.Unlock()
	return f.CountActiveSuperAdminsAmong(ctx, ids)
}

func (f *fakeUsers) CountActiveSuperAdminsAmong(_ context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, id := range ids {
		if u, ok := f.byID[id]; ok && u.IsActive && u.Role == models.UserRoleSuperAdmin {
			count++
		}
	}
	return count, nil
}

func (f *fakeUsers) CountLocked(_ context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, u := range f.byID {
		if u.IsLocked(now) {
			count++
		}
	}
	return count, nil
}

func (f *fakeUsers) Stats(_ context.Context, now time.Time) (models.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := models.UserStats{ByRole: map[models.UserRole]int{}}
	for _, u := range f.byID {
		stats.Total++
		if u.IsActive {
			stats.Active++
		}
		if u.MFAEnabled {
			stats.MFAEnabled++
		}
		if u.IsLocked(now) {
			stats.Locked++
		}
		stats.ByRole[u.Role]++
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

type fakeSessions struct {
	mu      sync.Mutex
	byToken map[string]models.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byToken: map[string]models.Session{}}
}

func (f *fakeSessions) Create(_ context.Context, session models.Session) error {
	f.mu.Lock()
	f.byToken[session.Token] = session
	f.mu.Unlock()
	return nil
}

func (f *fakeSessions) FindActiveByToken(_ context.Context, token string) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byToken[token]
	if !ok || !s.IsActive {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Touch(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, s := range f.byToken {
		if s.ID == id {
			s.LastActivityAt = at
			f.byToken[token] = s
			return nil
		}
	}
	return repository.ErrSessionNotFound
}

func (f *fakeSessions) DeactivateByToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byToken[token]
	if !ok || !s.IsActive {
		return repository.ErrSessionNotFound
	}
	s.IsActive = false
	f.byToken[token] = s
	return nil
}

func (f *fakeSessions) Deactivate(_ context.Context, userID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, s := range f.byToken {
		if s.ID == sessionID && s.UserID == userID && s.IsActive {
			s.IsActive = false
			f.byToken[token] = s
			return nil
		}
	}
	return repository.ErrSessionNotFound
}

func (f *fakeSessions) DeactivateAllForUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for token, s := range f.byToken {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			f.byToken[token] = s
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.byToken {
		if s.UserID == userID && s.IsActive && !s.Expired(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessions) CountActive(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, s := range f.byToken {
		if s.IsActive && !s.Expired(now) {
			count++
		}
	}
	return count, nil
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []models.SecurityLog
}

func (f *fakeLogs) Create(_ context.Context, entry models.SecurityLog) error {
	f.mu.Lock()
	f.entries = append(f.entries, entry)
	f.mu.Unlock()
	return nil
}

func (f *fakeLogs) List(_ context.Context, filter models.SecurityLogFilter) ([]models.SecurityLog, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SecurityLog
	for _, e := range f.entries {
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (f *fakeLogs) Resolve(_ context.Context, id, resolvedBy, notes string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.ID == id {
			f.entries[i].IsResolved = true
			f.entries[i].ResolvedBy = &resolvedBy
			f.entries[i].ResolvedAt = &at
			f.entries[i].ResolutionNotes = &notes
			return nil
		}
	}
	return repository.ErrSecurityLogNotFound
}

func (f *fakeLogs) Counts(_ context.Context, since time.Time) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total, high := 0, 0
	for _, e := range f.entries {
		total++
		if e.RiskLevel.Elevated() && !e.CreatedAt.Before(since) {
			high++
		}
	}
	return total, high, nil
}

func (f *fakeLogs) ofType(t models.SecurityEventType) []models.SecurityLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SecurityLog
	for _, e := range f.entries {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

type fakePerms struct {
	mu     sync.Mutex
	byID   map[string]models.Permission
	grants map[string]map[string]struct{}
}

func newFakePerms() *fakePerms {
	return &fakePerms{byID: map[string]models.Permission{}, grants: map[string]map[string]struct{}{}}
}

func (f *fakePerms) ListAll(_ context.Context) ([]models.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Permission, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePerms) ListGrantedForUser(_ context.Context, userID string) ([]models.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Permission
	for id := range f.grants[userID] {
		out = append(out, f.byID[id])
	}
	return out, nil
}

func (f *fakePerms) HasGrant(_ context.Context, userID string, resource models.Resource, action models.Action) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.grants[userID] {
		p := f.byID[id]
		if p.Resource == resource && p.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePerms) ReplaceGrants(_ context.Context, userID string, permissionIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := make(map[string]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		if _, ok := f.byID[id]; !ok {
			return repository.ErrUnknownPermission
		}
		next[id] = struct{}{}
	}
	f.grants[userID] = next
	return nil
}

func (f *fakePerms) Seed(_ context.Context, perms []models.Permission) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	added := 0
	for _, p := range perms {
		exists := false
		for _, existing := range f.byID {
			if existing.Resource == p.Resource && existing.Action == p.Action {
				exists = true
				break
			}
		}
		if !exists {
			f.byID[p.ID] = p
			added++
		}
	}
	return added, nil
}

func (f *fakePerms) idFor(resource models.Resource, action models.Action) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.byID {
		if p.Resource == resource && p.Action == action {
			return id
		}
	}
	return ""
}

type recordingAlerts struct {
	mu      sync.Mutex
	entries []models.SecurityLog
}

func (r *recordingAlerts) Publish(_ context.Context, entry models.SecurityLog) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) SecurityEvent(models.SecurityEventType, models.RiskLevel) {}

func (r *countingRecorder) LoginOutcome(outcome string) {
	r.mu.Lock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
	r.mu.Unlock()
}

var testArgon2 = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1}

type harness struct {
	clock    *fakeClock
	users    *fakeUsers
	sessions *fakeSessions
	logs     *fakeLogs
	perms    *fakePerms
	alerts   *recordingAlerts
	recorder *countingRecorder
	registry *revocation.MemoryRegistry
	tokens   *security.TokenIssuer
	totp     *security.TOTP
	hasher   *security.PasswordHasher

	security    *SecurityService
	mfa         *MFAService
	auth        *AuthService
	permissions *PermissionService
	admin       *UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:    &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		users:    newFakeUsers(),
		sessions: newFakeSessions(),
		logs:     &fakeLogs{},
		perms:    newFakePerms(),
		alerts:   &recordingAlerts{},
		recorder: &countingRecorder{},
		hasher:   security.NewPasswordHasher(testArgon2),
	}
	log := zerolog.Nop()

	h.registry = revocation.NewMemoryRegistry().WithClock(h.clock.Now)
	h.tokens = security.NewTokenIssuer("test-secret-test-secret-test-secret!", 24*time.Hour).WithClock(h.clock.Now)
	h.totp = security.NewTOTP("Store Admin").WithClock(h.clock.Now)

	h.security = NewSecurityService(h.users, h.sessions, h.logs, DefaultSecurityPolicy, log).
		WithClock(h.clock.Now).
		WithAlerts(h.alerts)
	h.mfa = NewMFAService(h.users, h.security, h.totp, h.hasher, bcrypt.MinCost, log)
	h.auth = NewAuthService(h.users, h.security, h.mfa, h.tokens, h.registry, h.hasher, time.Hour, log).
		WithClock(h.clock.Now).
		WithRecorder(h.recorder)
	h.permissions = NewPermissionService(h.perms, h.users, h.security, log)
	h.admin = NewUserService(h.users, h.security, h.permissions, h.hasher, log).WithClock(h.clock.Now)
	return h
}

// seedUser stores an active user with the given role and password.
func (h *harness) seedUser(t *testing.T, id, email string, role models.UserRole, password string) models.User {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		ID:           id,
		FirstName:    "Test",
		LastName:     string(role),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    h.clock.Now(),
		UpdatedAt:    h.clock.Now(),
	}
	h.users.put(user)
	return user
}

var bg = context.Background()

type capturingNotifier struct {
	token string
}

func (n *capturingNotifier) SendPasswordReset(_ context.Context, _ models.User, token string, _ time.Time) error {
	n.token = token
	return nil
}
