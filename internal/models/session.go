package models

import "time"

type Session struct {
	ID             string
	UserID         string
	Token          string
	IPAddress      string
	UserAgent      string
	Location       string
	Device         string
	IsActive       bool
	ExpiresAt      time.Time
	LastActivityAt time.Time
	CreatedAt      time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
