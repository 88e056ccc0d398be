package server

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/platinummonkey/workos-sso/pkg/audit"
	"github.com/platinummonkey/workos-sso/pkg/contextkeys"
	"github.com/platinummonkey/workos-sso/pkg/httputil"
	"github.com/platinummonkey/workos-sso/pkg/observability"
	"github.com/platinummonkey/workos-sso/pkg/sso"
	"github.com/platinummonkey/workos-sso/pkg/statestore"
)

const stateCookieName = "sso_state"

var (
	errMissingState  = errors.New("missing state")
	errStateMismatch = errors.New("state does not match cookie")
)

// login handles GET|POST /auth/sso/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx, s.logger)
	query := r.URL.Query()

	// A code would select the callback phase and skip the state check
	if query.Get("code") != "" {
		httputil.WriteBadRequest(w, "unexpected code parameter")
		return
	}
	hints := sso.HintsFromQuery(query)
	if hints.Empty() {
		s.recordEvent(r, audit.EventTypeLoginFailed, audit.EventStatusFailure, "SSO login rejected", sso.ErrMissingRoutingHint)
		httputil.WriteUnauthorized(w, sso.ErrMissingRoutingHint.Error())
		return
	}

	state, err := s.states.Issue(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to issue state")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	out := s.strategy.Authenticate(ctx, r, sso.AuthenticateOptions{State: state})
	if out.Kind == sso.OutcomeRedirect {
		http.SetCookie(w, s.stateCookie(state, int(s.stateTTL.Seconds())))
		s.recordEvent(r, audit.EventTypeLoginInitiated, audit.EventStatusSuccess, "SSO login initiated", nil, func(e *audit.Event) {
			e.Metadata["connection"] = hints.Connection
			e.Metadata["organization"] = hints.Organization
			e.Metadata["domain"] = hints.EffectiveDomain()
		})
	} else {
		if err := s.states.Consume(ctx, state); err != nil {
			logger.WithError(err).Debug("Failed to discard unused state")
		}
		s.recordOutcome(r, out)
	}
	out.Deliver(sso.HTTPSink{W: w, R: r})
}

// callback handles GET /auth/sso/callback
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx, s.logger)
	query := r.URL.Query()

	if brokerErr := query.Get("error"); brokerErr != "" {
		reason := query.Get("error_description")
		if reason == "" {
			reason = brokerErr
		}
		logger.WithField("error", brokerErr).Warn("Broker returned an error to the callback")
		s.recordEvent(r, audit.EventTypeBrokerDenied, audit.EventStatusDenied, "Broker denied SSO login", errors.New(reason))
		http.SetCookie(w, s.stateCookie("", -1))
		httputil.WriteUnauthorized(w, reason)
		return
	}
	if query.Get("code") == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	if err := s.redeemState(r); err != nil {
		if errors.Is(err, statestore.ErrStateNotFound) || errors.Is(err, errMissingState) || errors.Is(err, errStateMismatch) {
			logger.WithError(err).Warn("Rejected callback state")
			s.recordEvent(r, audit.EventTypeStateRejected, audit.EventStatusDenied, "SSO callback state rejected", err)
			httputil.WriteUnauthorized(w, "invalid state")
			return
		}
		logger.WithError(err).Error("Failed to redeem state")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "authentication failed")
		return
	}
	http.SetCookie(w, s.stateCookie("", -1))

	out := s.strategy.Authenticate(ctx, r, sso.AuthenticateOptions{})
	s.recordOutcome(r, out)
	out.Deliver(sso.HTTPSink{W: w, R: r, Next: http.HandlerFunc(s.writeIdentity)})
}

// redeemState checks the state query parameter against the cookie and
// consumes it from the store
func (s *Server) redeemState(r *http.Request) error {
	state := r.URL.Query().Get("state")
	if state == "" {
		return errMissingState
	}
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		return errStateMismatch
	}
	return s.states.Consume(r.Context(), state)
}

// writeIdentity responds with the user and info the verifier produced
func (s *Server) writeIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user": contextkeys.GetUser(ctx),
		"info": contextkeys.GetAuthInfo(ctx),
	})
	if err != nil {
		observability.FromContext(ctx, s.logger).WithError(err).Warn("Failed to write identity response")
	}
}

func (s *Server) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookieName,
		Value:    value,
		Path:     "/auth/sso",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// recordOutcome audits a non-redirect strategy outcome
func (s *Server) recordOutcome(r *http.Request, out sso.Outcome) {
	switch out.Kind {
	case sso.OutcomeSuccess:
		s.recordEvent(r, audit.EventTypeLoginSucceeded, audit.EventStatusSuccess, "SSO login succeeded", nil, func(e *audit.Event) {
			if user, ok := out.User.(*User); ok {
				e.ProfileID = user.ID
				e.Email = user.Email
				e.OrganizationID = user.OrganizationID
				e.ConnectionID = user.ConnectionID
			}
		})
	case sso.OutcomeFail:
		s.recordEvent(r, audit.EventTypeLoginFailed, audit.EventStatusFailure, "SSO login failed", errors.New(out.Reason), func(e *audit.Event) {
			e.Metadata["phase"] = out.Phase.String()
		})
	case sso.OutcomeError:
		s.recordEvent(r, audit.EventTypeLoginError, audit.EventStatusError, "SSO login error", out.Err, func(e *audit.Event) {
			e.Metadata["phase"] = out.Phase.String()
		})
	}
}

func (s *Server) recordEvent(r *http.Request, eventType audit.EventType, status audit.EventStatus, message string, cause error, decorate ...func(*audit.Event)) {
	ctx := r.Context()
	event := audit.NewEvent(ctx, r, eventType, status)
	event.Message = message
	if cause != nil {
		event.ErrorMessage = cause.Error()
	}
	for _, fn := range decorate {
		fn(event)
	}
	if err := s.audit.Log(ctx, event); err != nil {
		observability.FromContext(ctx, s.logger).WithError(err).Warn("Failed to write audit event")
	}
}
