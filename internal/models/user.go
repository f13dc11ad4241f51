package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	UserRoleSuperAdmin  UserRole = "super_admin"
	UserRoleAdmin       UserRole = "admin"
	UserRoleUser        UserRole = "user"
	UserRoleUtilisateur UserRole = "utilisateur"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleSuperAdmin, UserRoleAdmin, UserRoleUser, UserRoleUtilisateur:
		return true
	}
	return false
}

type User struct {
	ID                     string
	FirstName              string
	LastName               string
	Email                  string
	Phone                  *string
	PasswordHash           []byte
	Role                   UserRole
	IsActive               bool
	MFASecret              *string
	MFAEnabled             bool
	BackupCodes            []string
	FailedLoginAttempts    int
	LockedUntil            *time.Time
	PasswordResetTokenHash *string
	PasswordResetExpiresAt *time.Time
	PasswordChangedAt      *time.Time
	RequirePasswordChange  bool
	LastLoginAt            *time.Time
	LastLoginIP            *string
	LastLoginUserAgent     *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsLocked reports whether a lock is in force at now. Locks lapse on their own.
func (u User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Public is the outward view of a user. It never carries secrets.
type Public struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	Phone       *string    `json:"phone,omitempty"`
	Role        UserRole   `json:"role"`
	IsActive    bool       `json:"isActive"`
	MFAEnabled  bool       `json:"mfaEnabled"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (u User) Public() Public {
	return Public{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		IsActive:    u.IsActive,
		MFAEnabled:  u.MFAEnabled,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type UserFilter struct {
	Search   string
	Role     UserRole
	IsActive *bool
	Limit    int
	Offset   int
}

type UserProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	IsActive  *bool
}

type UserStats struct {
	Total      int              `json:"total"`
	Active     int              `json:"active"`
	Inactive   int              `json:"inactive"`
	MFAEnabled int              `json:"mfaEnabled"`
	Locked     int              `json:"locked"`
	ByRole     map[UserRole]int `json:"byRole"`
}

// ClientContext is the request metadata attached to sessions and security events.
type ClientContext struct {
	IPAddress string
	UserAgent string
	Location  string
	Device    string
}
