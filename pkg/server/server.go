package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/workos-sso/pkg/audit"
	"github.com/platinummonkey/workos-sso/pkg/httputil"
	"github.com/platinummonkey/workos-sso/pkg/middleware"
	"github.com/platinummonkey/workos-sso/pkg/observability"
	"github.com/platinummonkey/workos-sso/pkg/sso"
	"github.com/platinummonkey/workos-sso/pkg/statestore"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// maxRequestBytes bounds request bodies before the strategy parses them
const maxRequestBytes = 1 << 20

// Server serves the SSO routes and health probes
type Server struct {
	router  *mux.Router
	handler http.Handler

	strategy *sso.Strategy
	states   statestore.Store
	health   *observability.HealthChecker
	audit    audit.Logger

	logger         *observability.Logger
	metrics        *observability.Metrics
	limiter        middleware.Limiter
	tracerProvider trace.TracerProvider
	secureCookies  bool
	stateTTL       time.Duration
	version        string
	dependencies   []observability.Dependency
	trustProxy     bool
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables HTTP request metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithTrustedProxyHeaders makes the rate limiter key clients by
// X-Forwarded-For. Enable only behind a proxy that sets the header.
func WithTrustedProxyHeaders(trust bool) Option {
	return func(s *Server) {
		s.trustProxy = trust
	}
}

// WithDependency adds a readiness check, typically the identity broker.
// Non-critical dependencies only degrade /readyz.
func WithDependency(dep observability.Dependency) Option {
	return func(s *Server) {
		s.dependencies = append(s.dependencies, dep)
	}
}

// WithAuditLogger records login and callback events
func WithAuditLogger(logger audit.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.audit = logger
		}
	}
}

// WithRateLimiter limits the SSO routes per client IP
func WithRateLimiter(limiter middleware.Limiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// WithTracerProvider sets the provider for inbound request spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracerProvider = tp
	}
}

// WithSecureCookies marks the state cookie Secure
func WithSecureCookies(secure bool) Option {
	return func(s *Server) {
		s.secureCookies = secure
	}
}

// WithStateTTL sets the state cookie lifetime. It should match the store TTL.
func WithStateTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.stateTTL = ttl
		}
	}
}

// WithVersion sets the version reported by the readiness probe
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer creates a server for strategy, keeping login state in states
func NewServer(strategy *sso.Strategy, states statestore.Store, opts ...Option) (*Server, error) {
	if strategy == nil {
		return nil, errors.New("strategy is required")
	}
	if states == nil {
		return nil, errors.New("state store is required")
	}

	s := &Server{
		router:   mux.NewRouter(),
		strategy: strategy,
		states:   states,
		logger:   observability.NopLogger(),
		audit:    audit.NopLogger(),
		stateTTL: statestore.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	deps := append([]observability.Dependency{{
		Name:     "state_store",
		Check:    states.Ping,
		Critical: true,
	}}, s.dependencies...)
	s.health = observability.NewHealthChecker(s.version, deps...)

	s.setupRoutes()
	s.handler = s.buildHandler()

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(observability.HTTPMetricsMiddleware(s.metrics, routeTemplate))

	s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")

	auth := s.router.PathPrefix("/auth/sso").Subrouter()
	if s.limiter != nil {
		auth.Use(middleware.NewRateLimitMiddleware(s.limiter, s.logger,
			middleware.WithTrustedProxyHeaders(s.trustProxy),
			middleware.WithRejectionMetrics(s.metrics),
		).Handler)
	}
	auth.HandleFunc("/login", s.login).Methods("GET", "POST")
	auth.HandleFunc("/callback", s.callback).Methods("GET")
}

func (s *Server) buildHandler() http.Handler {
	h := httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.MaxBytesMiddleware(maxRequestBytes),
	)(s.router)

	otelOpts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}
	if s.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(s.tracerProvider))
	}
	return otelhttp.NewHandler(h, "sso-server", otelOpts...)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router returns the underlying router for additional routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// routeTemplate labels metrics with the matched route rather than the raw path
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tpl
}
