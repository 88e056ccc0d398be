package sso

import (
	"fmt"

	"github.com/platinummonkey/workos-sso/pkg/broker"
	"github.com/platinummonkey/workos-sso/pkg/observability"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the broker credentials and default callback of a Strategy
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Validate checks that every field is set
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: client ID is required", ErrInvalidConfig)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("%w: client secret is required", ErrInvalidConfig)
	}
	if c.CallbackURL == "" {
		return fmt.Errorf("%w: callback URL is required", ErrInvalidConfig)
	}
	return nil
}

// Option configures a Strategy
type Option func(*Strategy)

// WithBrokerClient replaces the default WorkOS broker client
func WithBrokerClient(client broker.Client) Option {
	return func(s *Strategy) {
		s.broker = client
	}
}

// WithLogger sets the logger used for phase decisions and failures
func WithLogger(logger *observability.Logger) Option {
	return func(s *Strategy) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records outcomes and broker latency
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Strategy) {
		s.metrics = metrics
	}
}

// WithTracerProvider sets the provider for sso.* and broker.* spans.
// The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Strategy) {
		s.tracer = observability.Tracer(tp)
	}
}

// WithAllowedRedirectURIs restricts the redirect URI sent to the broker.
// An empty list allows any redirect URI.
func WithAllowedRedirectURIs(uris ...string) Option {
	return func(s *Strategy) {
		if len(uris) == 0 {
			s.allowedRedirectURIs = nil
			return
		}
		s.allowedRedirectURIs = make(map[string]struct{}, len(uris))
		for _, uri := range uris {
			s.allowedRedirectURIs[uri] = struct{}{}
		}
	}
}
