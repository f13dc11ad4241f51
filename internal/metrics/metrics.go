package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storeadmin/api/internal/models"
)

const namespace = "storeadmin"

type Metrics struct {
	gatherer prometheus.Gatherer

	loginOutcomes   *prometheus.CounterVec
	securityEvents  *prometheus.CounterVec
	revokedTokens   prometheus.Gauge
	sweptTokens     prometheus.Counter
	alertsHandled   *prometheus.CounterVec
	archivedLogs    prometheus.Counter
	httpInFlight    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

// New registers every collector on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		securityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_events_total",
			Help:      "Security log entries by event type and risk level.",
		}, []string{"type", "risk"}),
		revokedTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "revoked_tokens",
			Help:      "Entries currently held by the token revocation registry.",
		}),
		sweptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revoked_tokens_swept_total",
			Help:      "Revocation entries evicted by the periodic sweep.",
		}),
		alertsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_alerts_handled_total",
			Help:      "Security alerts consumed from the alert stream.",
		}, []string{"risk"}),
		archivedLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_logs_archived_total",
			Help:      "Security log entries exported to object storage.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.loginOutcomes,
		m.securityEvents,
		m.revokedTokens,
		m.sweptTokens,
		m.alertsHandled,
		m.archivedLogs,
		m.httpInFlight,
		m.httpRequests,
		m.httpRequestTime,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) LoginOutcome(outcome string) {
	m.loginOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SecurityEvent(eventType models.SecurityEventType, risk models.RiskLevel) {
	m.securityEvents.WithLabelValues(string(eventType), string(risk)).Inc()
}

func (m *Metrics) SetRevokedTokens(n int) {
	m.revokedTokens.Set(float64(n))
}

func (m *Metrics) AddSwept(n int) {
	m.sweptTokens.Add(float64(n))
}

func (m *Metrics) AlertHandled(risk models.RiskLevel) {
	m.alertsHandled.WithLabelValues(string(risk)).Inc()
}

func (m *Metrics) AddArchived(n int) {
	m.archivedLogs.Add(float64(n))
}

// RequestStarted marks a request in flight and returns the func that records it.
func (m *Metrics) RequestStarted() func(method, route, status string) {
	m.httpInFlight.Inc()
	start := time.Now()
	return func(method, route, status string) {
		m.httpInFlight.Dec()
		m.httpRequestTime.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(method, route, status).Inc()
	}
}
