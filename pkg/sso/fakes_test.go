package sso

import (
	"context"
	"sync"

	"github.com/platinummonkey/workos-sso/pkg/broker"
)

type exchangeCall struct {
	code     string
	clientID string
}

// fakeBroker records every call it receives
type fakeBroker struct {
	mu sync.Mutex

	authURL string
	authErr error

	result      *broker.ExchangeResult
	exchangeErr error

	authCalls     []broker.AuthorizationParams
	exchangeCalls []exchangeCall
}

func (f *fakeBroker) AuthorizationURL(params broker.AuthorizationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls = append(f.authCalls, params)
	if f.authErr != nil {
		return "", f.authErr
	}
	if f.authURL == "" {
		return "https://broker.test/sso/authorize", nil
	}
	return f.authURL, nil
}

func (f *fakeBroker) ExchangeCode(ctx context.Context, code, clientID string) (*broker.ExchangeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeCalls = append(f.exchangeCalls, exchangeCall{code: code, clientID: clientID})
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.result, nil
}

func (f *fakeBroker) authCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.authCalls)
}

// recordingVerifier returns a fixed decision and records its inputs
type recordingVerifier struct {
	mu     sync.Mutex
	calls  []VerifyInput
	result Verification
	err    error
	panic  interface{}
}

func (v *recordingVerifier) Verify(ctx context.Context, in VerifyInput) (Verification, error) {
	v.mu.Lock()
	v.calls = append(v.calls, in)
	v.mu.Unlock()
	if v.panic != nil {
		panic(v.panic)
	}
	return v.result, v.err
}

// recordingSink counts every Sink call
type recordingSink struct {
	redirects []string
	successes []interface{}
	fails     []string
	errors    []error
}

func (s *recordingSink) Redirect(url string)            { s.redirects = append(s.redirects, url) }
func (s *recordingSink) Success(user, info interface{}) { s.successes = append(s.successes, user) }
func (s *recordingSink) Fail(reason string)             { s.fails = append(s.fails, reason) }
func (s *recordingSink) Error(err error)                { s.errors = append(s.errors, err) }

func (s *recordingSink) total() int {
	return len(s.redirects) + len(s.successes) + len(s.fails) + len(s.errors)
}

func testProfile() broker.Profile {
	return broker.Profile{
		ID:             "prof_123",
		ConnectionID:   "conn_123",
		ConnectionType: "OktaSAML",
		OrganizationID: "org_123",
		Email:          "ada@example.org",
		FirstName:      "Ada",
		LastName:       "Lovelace",
	}
}
