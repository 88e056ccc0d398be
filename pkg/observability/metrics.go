package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// SSO metrics
	SSOOutcomesTotal      *prometheus.CounterVec
	BrokerRequestDuration *prometheus.HistogramVec

	// State store metrics
	StateStoreOperationsTotal *prometheus.CounterVec

	RateLimitedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sso_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SSOOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_outcomes_total",
				Help: "Total number of SSO strategy outcomes by phase",
			},
			[]string{"phase", "outcome"},
		),
		BrokerRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sso_broker_request_duration_seconds",
				Help:    "Identity broker request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation", "result"},
		),

		StateStoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_state_store_operations_total",
				Help: "Total number of anti-forgery state store operations",
			},
			[]string{"operation", "backend", "status"},
		),

		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sso_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SSOOutcomesTotal,
		m.BrokerRequestDuration,
		m.StateStoreOperationsTotal,
		m.RateLimitedTotal,
	)

	return m
}

// RecordOutcome counts one strategy outcome
func (m *Metrics) RecordOutcome(phase, outcome string) {
	if m == nil {
		return
	}
	m.SSOOutcomesTotal.WithLabelValues(phase, outcome).Inc()
}

// ObserveBrokerRequest records the latency of a broker call
func (m *Metrics) ObserveBrokerRequest(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BrokerRequestDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// RecordStateStoreOperation counts one state store operation
func (m *Metrics) RecordStateStoreOperation(operation, backend, status string) {
	if m == nil {
		return
	}
	m.StateStoreOperationsTotal.WithLabelValues(operation, backend, status).Inc()
}

// RecordRateLimited counts one rejected request
func (m *Metrics) RecordRateLimited(path string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(path).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// The route template is used as the path label when routeName resolves one.
func HTTPMetricsMiddleware(metrics *Metrics, routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if routeName != nil {
				if name := routeName(r); name != "" {
					path = name
				}
			}

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
