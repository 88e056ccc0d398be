package sso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/workos-sso/pkg/broker"
	"github.com/platinummonkey/workos-sso/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StrategyName is the name the strategy registers under in an authentication framework
const StrategyName = "workos"

// Strategy runs the two SSO phases against an identity broker.
// It holds no per-request state and is safe for concurrent use.
type Strategy struct {
	clientID    string
	callbackURL string

	broker   broker.Client
	verifier Verifier

	logger              *observability.Logger
	metrics             *observability.Metrics
	tracer              trace.Tracer
	allowedRedirectURIs map[string]struct{}
}

// NewStrategy creates a strategy. Unless WithBrokerClient is given, a WorkOS
// client is created from cfg.ClientSecret; the secret is not kept otherwise.
func NewStrategy(cfg Config, verifier Verifier, opts ...Option) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if verifier == nil {
		return nil, fmt.Errorf("%w: verifier is required", ErrInvalidConfig)
	}

	s := &Strategy{
		clientID:    cfg.ClientID,
		callbackURL: cfg.CallbackURL,
		verifier:    verifier,
		logger:      observability.NopLogger(),
		tracer:      observability.Tracer(nil),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.broker == nil {
		client, err := broker.NewWorkOSClient(broker.WorkOSConfig{ClientSecret: cfg.ClientSecret})
		if err != nil {
			return nil, fmt.Errorf("failed to create broker client: %w", err)
		}
		s.broker = client
	}

	return s, nil
}

// Name returns StrategyName
func (s *Strategy) Name() string {
	return StrategyName
}

// Authenticate runs the phase selected by the request and returns its outcome
func (s *Strategy) Authenticate(ctx context.Context, r *http.Request, opts AuthenticateOptions) Outcome {
	req, parseErr := ParseRequest(r)
	phase := req.Phase()

	ctx, span := s.tracer.Start(ctx, "sso."+phase.String(),
		trace.WithAttributes(attribute.String("sso.phase", phase.String())))
	defer span.End()

	var out Outcome
	switch phase {
	case PhaseCallback:
		out = s.callback(ctx, req)
	default:
		if parseErr != nil {
			out = failOutcome(PhaseInitiate, "", parseErr)
		} else {
			out = s.initiate(ctx, req, opts)
		}
	}

	span.SetAttributes(attribute.String("sso.outcome", out.Kind.String()))
	if out.Kind == OutcomeError {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "sso error outcome")
	}
	s.metrics.RecordOutcome(phase.String(), out.Kind.String())

	return out
}

// initiate builds the broker authorization URL. Every failure here is a
// caller input problem and yields OutcomeFail.
func (s *Strategy) initiate(ctx context.Context, req Request, opts AuthenticateOptions) Outcome {
	logger := observability.LoggerWithTrace(ctx, observability.FromContext(ctx, s.logger)).WithField("phase", PhaseInitiate.String())

	hints := HintsFromQuery(req.Query)
	if hints.Empty() {
		logger.Debug("SSO initiation without routing hint")
		return failOutcome(PhaseInitiate, "", ErrMissingRoutingHint)
	}

	params := BuildAuthorizationParams(req.Body, hints, s.clientID, s.callbackURL, opts)

	if s.allowedRedirectURIs != nil {
		if _, ok := s.allowedRedirectURIs[params.RedirectURI]; !ok {
			logger.WithField("redirect_uri", params.RedirectURI).Warn("SSO initiation with redirect URI outside allowlist")
			return failOutcome(PhaseInitiate, "", ErrRedirectURINotAllowed)
		}
	}

	authURL, err := s.broker.AuthorizationURL(params)
	if err != nil {
		logger.WithError(err).Warn("Failed to build authorization URL")
		return failOutcome(PhaseInitiate, "", err)
	}

	logger.WithFields(map[string]interface{}{
		"connection":   params.Connection,
		"organization": params.Organization,
		"domain":       params.Domain,
	}).Debug("Redirecting to identity broker")

	return redirectOutcome(authURL)
}

// callback exchanges the code once, then asks the verifier once
func (s *Strategy) callback(ctx context.Context, req Request) Outcome {
	logger := observability.LoggerWithTrace(ctx, observability.FromContext(ctx, s.logger)).WithField("phase", PhaseCallback.String())

	result, err := s.exchange(ctx, req.Code())
	if err != nil {
		var brokerErr *broker.Error
		if errors.As(err, &brokerErr) && brokerErr.Kind == broker.KindGrantInvalid {
			logger.WithError(err).Warn("Broker rejected authorization code")
			return failOutcome(PhaseCallback, brokerErr.Description, err)
		}
		logger.WithError(err).Error("Code exchange failed")
		return errorOutcome(err)
	}

	verification, err := s.verify(ctx, VerifyInput{
		Request:      req.HTTP,
		AccessToken:  result.AccessToken,
		RefreshToken: "",
		Profile:      result.Profile,
	})
	if err != nil {
		logger.WithError(err).Error("Verifier failed")
		return errorOutcome(err)
	}
	if !verification.hasUser() {
		logger.WithField("profile_id", result.Profile.ID).Info("Verifier rejected profile")
		return failOutcome(PhaseCallback, "", ErrNoUser)
	}

	logger.WithField("profile_id", result.Profile.ID).Info("SSO authentication succeeded")
	return successOutcome(verification.User, verification.Info)
}

func (s *Strategy) exchange(ctx context.Context, code string) (*broker.ExchangeResult, error) {
	ctx, span := s.tracer.Start(ctx, "broker.exchange", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	result, err := s.broker.ExchangeCode(ctx, code, s.clientID)
	status := "ok"
	if err != nil {
		status = exchangeResultLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	span.SetAttributes(attribute.String("broker.result", status))
	s.metrics.ObserveBrokerRequest("exchange", status, time.Since(start))

	if err == nil && result == nil {
		return nil, &broker.Error{Kind: broker.KindBrokerFault, Err: errors.New("empty exchange result")}
	}
	return result, err
}

// verify invokes the verifier and converts a panic into an error
func (s *Strategy) verify(ctx context.Context, in VerifyInput) (v Verification, err error) {
	defer func() {
		if perr := observability.MustRecover(recover()); perr != nil {
			err = fmt.Errorf("verifier: %w", perr)
		}
	}()
	return s.verifier.Verify(ctx, in)
}

func exchangeResultLabel(err error) string {
	var brokerErr *broker.Error
	if errors.As(err, &brokerErr) {
		return brokerErr.Kind.String()
	}
	return "unknown"
}
