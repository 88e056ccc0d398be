package sso

import (
	"net/http"

	"github.com/platinummonkey/workos-sso/pkg/contextkeys"
	"github.com/platinummonkey/workos-sso/pkg/httputil"
)

// HTTPSink writes outcomes as HTTP responses. On success it runs Next with
// the user and info stored in the request context.
type HTTPSink struct {
	W    http.ResponseWriter
	R    *http.Request
	Next http.Handler
}

// Redirect responds 302 Found
func (s HTTPSink) Redirect(url string) {
	http.Redirect(s.W, s.R, url, http.StatusFound)
}

// Success runs the next handler, or responds 204 when there is none
func (s HTTPSink) Success(user, info interface{}) {
	if s.Next == nil {
		httputil.WriteNoContent(s.W)
		return
	}
	ctx := contextkeys.WithUser(s.R.Context(), user)
	ctx = contextkeys.WithAuthInfo(ctx, info)
	s.Next.ServeHTTP(s.W, s.R.WithContext(ctx))
}

// Fail responds 401 with the reason
func (s HTTPSink) Fail(reason string) {
	httputil.WriteUnauthorized(s.W, reason)
}

// Error responds 500 without exposing the cause
func (s HTTPSink) Error(_ error) {
	httputil.WriteErrorMessage(s.W, http.StatusInternalServerError, "authentication failed")
}

// Handler authenticates every request with opts and delivers the outcome
// through an HTTPSink wrapping next
func (s *Strategy) Handler(opts AuthenticateOptions, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Authenticate(r.Context(), r, opts).Deliver(HTTPSink{W: w, R: r, Next: next})
	})
}

// Middleware is Handler in middleware form
func (s *Strategy) Middleware(opts AuthenticateOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return s.Handler(opts, next)
	}
}
