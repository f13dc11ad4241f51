package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeadmin/api/internal/models"
)

func TestCounters(t *testing.T) {
	m := New()

	m.LoginOutcome("failed")
	m.LoginOutcome("failed")
	m.LoginOutcome("success")
	m.SecurityEvent(models.EventAccountLocked, models.RiskHigh)
	m.SetRevokedTokens(7)
	m.AddSwept(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loginOutcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loginOutcomes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.securityEvents.WithLabelValues("account_locked", "high")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.revokedTokens))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweptTokens))
}

func TestRequestStarted(t *testing.T) {
	m := New()

	done := m.RequestStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
	done("GET", "/api/healthz", "200")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/healthz", "200")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.LoginOutcome("locked")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storeadmin_login_attempts_total{outcome="locked"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
