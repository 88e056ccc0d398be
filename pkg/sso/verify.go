package sso

import (
	"context"
	"net/http"
	"reflect"

	"github.com/platinummonkey/workos-sso/pkg/broker"
)

// VerifyInput is what the broker returned for one callback request
type VerifyInput struct {
	Request     *http.Request
	AccessToken string
	// RefreshToken is always empty. The broker does not issue refresh tokens.
	RefreshToken string
	Profile      broker.Profile
}

// Verification is the verifier's decision. A nil User rejects the attempt.
type Verification struct {
	User interface{}
	Info interface{}
}

// Verifier decides whether a broker profile is an acceptable user.
// A returned error is treated as an application fault, not a rejection.
type Verifier interface {
	Verify(ctx context.Context, in VerifyInput) (Verification, error)
}

// VerifierFunc adapts a function to Verifier
type VerifierFunc func(ctx context.Context, in VerifyInput) (Verification, error)

// Verify calls f(ctx, in)
func (f VerifierFunc) Verify(ctx context.Context, in VerifyInput) (Verification, error) {
	return f(ctx, in)
}

// hasUser reports whether the verification carries a user. Typed nils count as absent.
func (v Verification) hasUser() bool {
	if v.User == nil {
		return false
	}
	rv := reflect.ValueOf(v.User)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}
