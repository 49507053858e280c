package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	LoginsTotal         *prometheus.CounterVec
	RegistrationsTotal  *prometheus.CounterVec
	RefreshesTotal      *prometheus.CounterVec
	TokenFailuresTotal  *prometheus.CounterVec
	RateLimitedTotal    *prometheus.CounterVec
	RevokedTokensTotal  prometheus.Counter
	ExpiredTokensPurged prometheus.Counter

	// Cache metrics
	CacheErrorsTotal *prometheus.CounterVec

	// Event metrics
	EventsDroppedTotal *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_registrations_total",
				Help: "Registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_token_refreshes_total",
				Help: "Refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokenFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_token_verification_failures_total",
				Help: "Rejected tokens by kind and reason",
			},
			[]string{"kind", "reason"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_rate_limited_total",
				Help: "Requests rejected by a rate limit policy",
			},
			[]string{"policy"},
		),
		RevokedTokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_refresh_tokens_revoked_total",
				Help: "Refresh token records removed by logout, logout-all or bans",
			},
		),
		ExpiredTokensPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_refresh_tokens_purged_total",
				Help: "Expired refresh token records removed by the cleanup job",
			},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_session_cache_errors_total",
				Help: "Swallowed session cache failures",
			},
			[]string{"operation"},
		),
		EventsDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_events_dropped_total",
				Help: "Auth events dropped because a subscriber was full",
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.RegistrationsTotal,
		m.RefreshesTotal,
		m.TokenFailuresTotal,
		m.RateLimitedTotal,
		m.RevokedTokensTotal,
		m.ExpiredTokensPurged,
		m.CacheErrorsTotal,
		m.EventsDroppedTotal,
	)

	return m
}

// Handler serves the exposition format for this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CacheError(op string) {
	m.CacheErrorsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) EventDropped(eventType string) {
	m.EventsDroppedTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) LoginAttempt(outcome string) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Registration(outcome string) {
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RefreshAttempt(outcome string) {
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TokenRejected(kind string, reason string) {
	m.TokenFailuresTotal.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) TokensRevoked(n int64) {
	m.RevokedTokensTotal.Add(float64(n))
}

func (m *Metrics) TokensPurged(n int64) {
	m.ExpiredTokensPurged.Add(float64(n))
}

func (m *Metrics) RateLimited(policy string) {
	m.RateLimitedTotal.WithLabelValues(policy).Inc()
}

func (m *Metrics) ObserveHTTP(method string, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
