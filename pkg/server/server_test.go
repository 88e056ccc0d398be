package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/workos-sso/pkg/audit"
	"github.com/platinummonkey/workos-sso/pkg/broker"
	"github.com/platinummonkey/workos-sso/pkg/httputil"
	"github.com/platinummonkey/workos-sso/pkg/middleware"
	"github.com/platinummonkey/workos-sso/pkg/observability"
	"github.com/platinummonkey/workos-sso/pkg/sso"
	"github.com/platinummonkey/workos-sso/pkg/statestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCallbackURL = "https://app.example.com/auth/sso/callback"

type fakeBroker struct {
	mu         sync.Mutex
	authParams []broker.AuthorizationParams
	codes      []string
	result     *broker.ExchangeResult
	err        error
}

func (f *fakeBroker) AuthorizationURL(p broker.AuthorizationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authParams = append(f.authParams, p)
	return "https://broker.test/authorize?state=" + url.QueryEscape(p.State), nil
}

func (f *fakeBroker) ExchangeCode(ctx context.Context, code, clientID string) (*broker.ExchangeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	return f.result, f.err
}

func newFakeBroker(email string) *fakeBroker {
	return &fakeBroker{
		result: &broker.ExchangeResult{
			AccessToken: "access_token",
			Profile: broker.Profile{
				ID:             "prof_123",
				Email:          email,
				FirstName:      "Ada",
				LastName:       "Lovelace",
				OrganizationID: "org_1",
				ConnectionID:   "conn_1",
				ConnectionType: "OktaSAML",
			},
		},
	}
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (a *recordingAudit) Log(ctx context.Context, event *audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAudit) Close() error { return nil }

func (a *recordingAudit) types() []audit.EventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	var types []audit.EventType
	for _, e := range a.events {
		types = append(types, e.EventType)
	}
	return types
}

type failingStore struct {
	*statestore.MemoryStore
}

func (failingStore) Ping(ctx context.Context) error {
	return errors.New("store down")
}

func newTestServer(t *testing.T, fb *fakeBroker, states statestore.Store, opts ...Option) *Server {
	t.Helper()

	strategy, err := sso.NewStrategy(sso.Config{
		ClientID:     "client_123",
		ClientSecret: "sk_test",
		CallbackURL:  testCallbackURL,
	}, NewDomainVerifier("example.com"), sso.WithBrokerClient(fb))
	require.NoError(t, err)

	if states == nil {
		states = statestore.NewMemoryStore(100, time.Minute, nil)
	}
	srv, err := NewServer(strategy, states, opts...)
	require.NoError(t, err)
	return srv
}

func stateCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", stateCookieName)
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, statestore.NewMemoryStore(10, time.Minute, nil))
	assert.Error(t, err)

	strategy, err := sso.NewStrategy(sso.Config{ClientID: "c", ClientSecret: "s", CallbackURL: testCallbackURL},
		NewDomainVerifier(), sso.WithBrokerClient(&fakeBroker{}))
	require.NoError(t, err)
	_, err = NewServer(strategy, nil)
	assert.Error(t, err)
}

func TestLoginRedirectsWithState(t *testing.T) {
	fb := newFakeBroker("ada@example.com")
	states := statestore.NewMemoryStore(100, time.Minute, nil)
	srv := newTestServer(t, fb, states, WithSecureCookies(true))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login?connection=conn_1", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	cookie := stateCookieFrom(t, rec)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, "https://broker.test/authorize?state="+url.QueryEscape(cookie.Value), rec.Header().Get("Location"))
	assert.Equal(t, 1, states.Len())

	require.Len(t, fb.authParams, 1)
	params := fb.authParams[0]
	assert.Equal(t, cookie.Value, params.State)
	assert.Equal(t, "conn_1", params.Connection)
	assert.Equal(t, "client_123", params.ClientID)
	assert.Equal(t, testCallbackURL, params.RedirectURI)
}

func TestLoginRejections(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		status  int
		message string
	}{
		{"missing hint", "/auth/sso/login", http.StatusUnauthorized, sso.ErrMissingRoutingHint.Error()},
		{"code on login", "/auth/sso/login?connection=conn_1&code=abc", http.StatusBadRequest, "unexpected code parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBroker("ada@example.com")
			states := statestore.NewMemoryStore(100, time.Minute, nil)
			srv := newTestServer(t, fb, states)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec))
			assert.Equal(t, 0, states.Len())
			assert.Empty(t, fb.authParams)
			assert.Empty(t, fb.codes)
		})
	}
}

func TestLoginDiscardsStateWhenNotRedirecting(t *testing.T) {
	fb := newFakeBroker("ada@example.com")
	states := statestore.NewMemoryStore(100, time.Minute, nil)

	strategy, err := sso.NewStrategy(sso.Config{ClientID: "client_123", ClientSecret: "sk", CallbackURL: testCallbackURL},
		NewDomainVerifier(), sso.WithBrokerClient(fb), sso.WithAllowedRedirectURIs("https://other.example.com/cb"))
	require.NoError(t, err)
	srv, err := NewServer(strategy, states)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login?domain=example.com", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, states.Len())
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginPostBodyFields(t *testing.T) {
	fb := newFakeBroker("ada@example.com")
	srv := newTestServer(t, fb, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/sso/login?organization=org_1",
		strings.NewReader(`{"provider":"GoogleOAuth","redirectURI":"https://evil.example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Len(t, fb.authParams, 1)
	assert.Equal(t, "GoogleOAuth", fb.authParams[0].Provider)
	assert.Equal(t, "org_1", fb.authParams[0].Organization)
	assert.Equal(t, testCallbackURL, fb.authParams[0].RedirectURI)
}

func TestLoginCallbackRoundTrip(t *testing.T) {
	fb := newFakeBroker("ada@example.com")
	states := statestore.NewMemoryStore(100, time.Minute, nil)
	srv := newTestServer(t, fb, states)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login?email=ada@example.com", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := stateCookieFrom(t, rec)
	assert.Equal(t, "example.com", fb.authParams[0].Domain)

	callback := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=code_1&state="+url.QueryEscape(cookie.Value), nil)
		req.AddCookie(&http.Cookie{Name: stateCookieName, Value: cookie.Value})
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	rec = callback()
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		User User     `json:"user"`
		Info AuthInfo `json:"info"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "prof_123", body.User.ID)
	assert.Equal(t, "ada@example.com", body.User.Email)
	assert.Equal(t, "Ada Lovelace", body.User.Name)
	assert.Equal(t, sso.StrategyName, body.Info.Strategy)
	assert.Equal(t, "OktaSAML", body.Info.ConnectionType)
	assert.Equal(t, []string{"code_1"}, fb.codes)
	assert.Equal(t, 0, states.Len())

	// state is single use
	rec = callback()
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid state", decodeError(t, rec))
	assert.Len(t, fb.codes, 1)
}

func TestCallbackRejections(t *testing.T) {
	fb := newFakeBroker("ada@example.com")
	states := statestore.NewMemoryStore(100, time.Minute, nil)
	srv := newTestServer(t, fb, states)

	issued, err := states.Issue(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name    string
		target  string
		cookie  string
		status  int
		message string
	}{
		{"broker error", "/auth/sso/callback?error=access_denied&error_description=user+cancelled", "", http.StatusUnauthorized, "user cancelled"},
		{"broker error without description", "/auth/sso/callback?error=access_denied", "", http.StatusUnauthorized, "access_denied"},
		{"missing code", "/auth/sso/callback?state=" + issued, issued, http.StatusBadRequest, "missing authorization code"},
		{"missing state", "/auth/sso/callback?code=c", issued, http.StatusUnauthorized, "invalid state"},
		{"missing cookie", "/auth/sso/callback?code=c&state=" + issued, "", http.StatusUnauthorized, "invalid state"},
		{"cookie mismatch", "/auth/sso/callback?code=c&state=" + issued, "other", http.StatusUnauthorized, "invalid state"},
		{"unknown state", "/auth/sso/callback?code=c&state=unknown", "unknown", http.StatusUnauthorized, "invalid state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: stateCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec))
		})
	}

	assert.Empty(t, fb.codes)
	assert.Equal(t, 1, states.Len())
}

func TestCallbackOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		broker  *fakeBroker
		status  int
		message string
	}{
		{
			name:    "verifier rejects domain",
			broker:  newFakeBroker("mallory@other.com"),
			status:  http.StatusUnauthorized,
			message: "no user",
		},
		{
			name:    "grant invalid",
			broker:  &fakeBroker{err: &broker.Error{Kind: broker.KindGrantInvalid, Code: "invalid_grant", Description: "code expired"}},
			status:  http.StatusUnauthorized,
			message: "code expired",
		},
		{
			name:    "broker fault",
			broker:  &fakeBroker{err: &broker.Error{Kind: broker.KindBrokerFault, StatusCode: 502}},
			status:  http.StatusInternalServerError,
			message: "authentication failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := statestore.NewMemoryStore(100, time.Minute, nil)
			srv := newTestServer(t, tt.broker, states)

			state, err := states.Issue(context.Background())
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=c&state="+state, nil)
			req.AddCookie(&http.Cookie{Name: stateCookieName, Value: state})
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec))
			assert.Equal(t, []string{"c"}, tt.broker.codes)
		})
	}
}

func TestHealthProbes(t *testing.T) {
	srv := newTestServer(t, newFakeBroker("a@example.com"), nil, WithVersion("1.2.3"))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status observability.HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, observability.StatusHealthy, status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Contains(t, status.Dependencies, "state_store")
}

func TestReadinessFailsWhenStoreDown(t *testing.T) {
	states := failingStore{statestore.NewMemoryStore(10, time.Minute, nil)}
	srv := newTestServer(t, newFakeBroker("a@example.com"), states)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadinessDegradedWhenBrokerDown(t *testing.T) {
	srv := newTestServer(t, newFakeBroker("a@example.com"), nil, WithDependency(observability.Dependency{
		Name:  "broker",
		Check: func(context.Context) error { return errors.New("dial tcp: connection refused") },
	}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status observability.HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, observability.StatusDegraded, status.Status)
	assert.Equal(t, observability.StatusUnhealthy, status.Dependencies["broker"].Status)
	assert.Equal(t, observability.StatusHealthy, status.Dependencies["state_store"].Status)
}

func TestRateLimitedLogin(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Hour,
		BurstSize:         0,
	})
	srv := newTestServer(t, newFakeBroker("a@example.com"), nil, WithRateLimiter(limiter))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login?connection=c", nil))
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login?connection=c", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// probes are not limited
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPMetricsUseRouteTemplate(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	srv := newTestServer(t, newFakeBroker("a@example.com"), nil, WithMetrics(metrics))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login?connection=c", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/auth/sso/login", "302")))
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t, newFakeBroker("a@example.com"), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(httputil.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(httputil.RequestIDHeader))
}

func TestAuditEvents(t *testing.T) {
	fb := newFakeBroker("ada@example.com")
	states := statestore.NewMemoryStore(100, time.Minute, nil)
	recorder := &recordingAudit{}
	srv := newTestServer(t, fb, states, WithAuditLogger(recorder))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login?connection=conn_1", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	cookie := stateCookieFrom(t, rec)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=c&state=forged", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=c&state="+url.QueryEscape(cookie.Value), nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: cookie.Value})
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/callback?error=access_denied", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, []audit.EventType{
		audit.EventTypeLoginInitiated,
		audit.EventTypeLoginFailed,
		audit.EventTypeStateRejected,
		audit.EventTypeLoginSucceeded,
		audit.EventTypeBrokerDenied,
	}, recorder.types())

	initiated := recorder.events[0]
	assert.Equal(t, "conn_1", initiated.Metadata["connection"])

	succeeded := recorder.events[3]
	assert.Equal(t, audit.EventStatusSuccess, succeeded.Status)
	assert.Equal(t, "prof_123", succeeded.ProfileID)
	assert.Equal(t, "ada@example.com", succeeded.Email)
	assert.NotEmpty(t, succeeded.RequestID)
}
