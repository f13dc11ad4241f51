package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeadmin/api/internal/revocation"
	"storeadmin/api/internal/security"
)

type sweepCounts struct {
	swept int
	size  int
}

func (c *sweepCounts) AddSwept(n int)         { c.swept += n }
func (c *sweepCounts) SetRevokedTokens(n int) { c.size = n }

func TestSweepNowEvictsExpiredTokens(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	issuer := security.NewTokenIssuer("sweep-secret-sweep-secret-sweep-sec", time.Hour).WithClock(clock)
	short, _, err := issuer.Issue("u-1", "a@example.com", "admin")
	require.NoError(t, err)

	long, _, err := security.NewTokenIssuer("sweep-secret-sweep-secret-sweep-sec", 48*time.Hour).
		WithClock(clock).
		Issue("u-2", "b@example.com", "user")
	require.NoError(t, err)

	registry := revocation.NewMemoryRegistry().WithClock(func() time.Time { return now })
	ctx := context.Background()
	for _, token := range []string{short, long, "garbage"} {
		require.NoError(t, registry.Blacklist(ctx, token))
	}

	counts := &sweepCounts{}
	scheduler := NewScheduler(registry, counts, zerolog.Nop())

	now = now.Add(2 * time.Hour)
	removed, err := scheduler.SweepNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, counts.swept)
	assert.Equal(t, 1, counts.size)

	revoked, err := registry.IsBlacklisted(ctx, long)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	scheduler := NewScheduler(revocation.NewMemoryRegistry(), nil, zerolog.Nop())
	assert.Error(t, scheduler.Start("every hour"))

	require.NoError(t, scheduler.Start(""))
	scheduler.Stop()
}
