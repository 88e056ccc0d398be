package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/platinummonkey/workos-sso/pkg/httputil"
	"github.com/platinummonkey/workos-sso/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns default per-client limits for SSO endpoints
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() *RateLimitConfig
}

// RateLimiter is an in-process token bucket per key. Buckets hold
// RequestsPerWindow+BurstSize tokens and refill continuously at
// RequestsPerWindow per WindowDuration.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow takes one token from the bucket for key. It never errors.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := rl.now()

	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(rl.capacity()), lastUpdate: now}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if elapsed := now.Sub(b.lastUpdate); elapsed > 0 {
		b.tokens = math.Min(float64(rl.capacity()), b.tokens+elapsed.Seconds()*rl.refillPerSecond())
		b.lastUpdate = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

func (rl *RateLimiter) refillPerSecond() float64 {
	return float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
}

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup runs Cleanup every window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context, logger *observability.Logger) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer observability.RecoverPanic(logger, "rate limit cleanup")
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware limits requests per client IP
type RateLimitMiddleware struct {
	limiter    Limiter
	logger     *observability.Logger
	metrics    *observability.Metrics
	trustProxy bool
}

// RateLimitOption configures a RateLimitMiddleware
type RateLimitOption func(*RateLimitMiddleware)

// WithTrustedProxyHeaders keys clients by X-Forwarded-For / X-Real-IP
func WithTrustedProxyHeaders(trust bool) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		m.trustProxy = trust
	}
}

// WithRejectionMetrics counts 429 responses by path
func WithRejectionMetrics(metrics *observability.Metrics) RateLimitOption {
	return func(m *RateLimitMiddleware) {
		m.metrics = metrics
	}
}

// NewRateLimitMiddleware wraps limiter. Limiter errors let the request
// through.
func NewRateLimitMiddleware(limiter Limiter, logger *observability.Logger, opts ...RateLimitOption) *RateLimitMiddleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	m := &RateLimitMiddleware{limiter: limiter, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.ClientIP(r, m.trustProxy)

		allowed, err := m.limiter.Allow(r.Context(), "ip:"+ip)
		if err != nil {
			observability.FromContext(r.Context(), m.logger).WithError(err).Warn("Rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		cfg := m.limiter.Config()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))

		if !allowed {
			m.metrics.RecordRateLimited(r.URL.Path)
			observability.FromContext(r.Context(), m.logger).
				WithFields(map[string]interface{}{"client_ip": ip, "path": r.URL.Path}).
				Debug("Rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(cfg.WindowDuration.Seconds()))))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
