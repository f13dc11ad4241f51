// Package revocation holds bearer tokens that must be refused even while their
// signature and expiry are still valid.
package revocation

import (
	"context"
	"time"

	"storeadmin/api/internal/security"
)

type Registry interface {
	Blacklist(ctx context.Context, token string) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	// Sweep evicts entries whose expiry has passed or that cannot be decoded,
	// and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
	Size(ctx context.Context) (int, error)
}

// expiryOf returns the token's exp claim. ok is false when the token cannot be
// decoded; hasExpiry is false for decodable tokens without an exp claim.
func expiryOf(token string) (exp time.Time, hasExpiry bool, ok bool) {
	claims, err := security.Decode(token)
	if err != nil {
		return time.Time{}, false, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, true
	}
	return claims.ExpiresAt.Time, true, true
}
