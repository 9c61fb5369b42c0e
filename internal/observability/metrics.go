package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for a service process.
type Metrics struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	tokenVerifications *prometheus.CounterVec
	permCacheLookups   *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics(service string) *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "meridian_http_requests_total",
		Help:        "HTTP requests by route and status code.",
		ConstLabels: prometheus.Labels{"service": service},
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "meridian_http_request_duration_seconds",
		Help:        "HTTP request duration per route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: prometheus.Labels{"service": service},
	}, []string{"route"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "meridian_token_verifications_total",
		Help:        "Token verification attempts by outcome.",
		ConstLabels: prometheus.Labels{"service": service},
	}, []string{"outcome"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "meridian_permission_cache_lookups_total",
		Help:        "Permission cache lookups by result.",
		ConstLabels: prometheus.Labels{"service": service},
	}, []string{"result"})
	registry.MustRegister(requests, duration, verifications, cacheLookups)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		tokenVerifications: verifications,
		permCacheLookups:   cacheLookups,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// TokenVerification counts one verification attempt. Outcome is "ok" or
// the failure class (revoked, expired, signature, malformed, wrong_type).
func (m *Metrics) TokenVerification(outcome string) {
	if m == nil {
		return
	}
	m.tokenVerifications.WithLabelValues(outcome).Inc()
}

// PermCacheLookup counts one cache consultation: hit, miss or error.
func (m *Metrics) PermCacheLookup(result string) {
	if m == nil {
		return
	}
	m.permCacheLookups.WithLabelValues(result).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
