package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface
// and the authentication flows. A nil *MetricsService is a no-op, so callers
// never need to guard their observations.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	logins            prometheus.Counter
	registrations     prometheus.Counter
	refreshRotations  prometheus.Counter
	revokedRejections prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	logins := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Total successful logins",
	})

	registrations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "Total successful registrations",
	})

	refreshRotations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_rotations_total",
		Help: "Total refresh token rotations",
	})

	revokedRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_revoked_rejections_total",
		Help: "Total refresh attempts rejected because the token was revoked",
	})

	registry.MustRegister(requestDuration, requestTotal, logins, registrations, refreshRotations, revokedRejections)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		logins:            logins,
		registrations:     registrations,
		refreshRotations:  refreshRotations,
		revokedRejections: revokedRejections,
	}
}

// Handler exposes the /metrics scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records one handled request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

func (m *MetricsService) IncLogin() {
	if m != nil {
		m.logins.Inc()
	}
}

func (m *MetricsService) IncRegistration() {
	if m != nil {
		m.registrations.Inc()
	}
}

func (m *MetricsService) IncRefreshRotation() {
	if m != nil {
		m.refreshRotations.Inc()
	}
}

func (m *MetricsService) IncRevokedRejection() {
	if m != nil {
		m.revokedRejections.Inc()
	}
}
