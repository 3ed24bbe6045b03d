// Package metrics holds the Prometheus collectors exported on /metrics.
// All helper methods are safe on a nil *Metrics so that tests and tools can
// run services without a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// AuthEventsTotal counts login/register/refresh/logout outcomes.
	AuthEventsTotal *prometheus.CounterVec
	// VaultFailuresTotal counts decryptions that failed authentication.
	VaultFailuresTotal *prometheus.CounterVec

	RefreshTokensPurgedTotal prometheus.Counter
	RoleCacheLookupsTotal    *prometheus.CounterVec
	StoreReady               prometheus.Gauge

	registry *prometheus.Registry
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homedock_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homedock_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homedock_auth_events_total",
				Help: "Authentication events by kind and outcome",
			},
			[]string{"event", "outcome"},
		),
		VaultFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homedock_vault_failures_total",
				Help: "Credential decryptions rejected as tampered or corrupt",
			},
			[]string{"operation"},
		),
		RefreshTokensPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "homedock_refresh_tokens_purged_total",
				Help: "Expired refresh tokens removed by the sweeper",
			},
		),
		RoleCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homedock_role_cache_lookups_total",
				Help: "Role permission cache lookups by result",
			},
			[]string{"result"},
		),
		StoreReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "homedock_store_ready",
				Help: "1 when the database answers pings",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthEventsTotal,
		m.VaultFailuresTotal,
		m.RefreshTokensPurgedTotal,
		m.RoleCacheLookupsTotal,
		m.StoreReady,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AuthEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) VaultFailure(operation string) {
	if m == nil {
		return
	}
	m.VaultFailuresTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) TokensPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RefreshTokensPurgedTotal.Add(float64(n))
}

func (m *Metrics) RoleCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RoleCacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetStoreReady(ready bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ready {
		v = 1
	}
	m.StoreReady.Set(v)
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
