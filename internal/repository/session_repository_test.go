package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionColumnNames = []string{
	"id", "user_id", "session_token", "ip_address", "user_agent", "location", "device",
	"is_active", "expires_at", "last_activity_at", "created_at",
}

func TestSessionRepositoryFindActiveByToken(t *testing.T) {
	mock := newMock(t)
	repo := NewSessionRepository(mock)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE session_token = $1 AND is_active = TRUE")).
		WithArgs("tok").
		WillReturnRows(pgxmock.NewRows(sessionColumnNames).
			AddRow("s-1", "u-1", "tok", "10.0.0.1", "curl/8", "", "desktop", true, now.Add(24*time.Hour), now, now))

	session, err := repo.FindActiveByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "s-1", session.ID)
	assert.Equal(t, "u-1", session.UserID)
	assert.True(t, session.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeactivateScopesToOwner(t *testing.T) {
	mock := newMock(t)
	repo := NewSessionRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND user_id = $2 AND is_active = TRUE")).
		WithArgs("s-1", "intruder").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Deactivate(context.Background(), "intruder", "s-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeactivateAllForUser(t *testing.T) {
	mock := newMock(t)
	repo := NewSessionRepository(mock)

	mock.ExpectExec(regexp.QuoteMeta("SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE")).
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.DeactivateAllForUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
