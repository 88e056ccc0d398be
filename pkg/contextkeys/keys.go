// Package contextkeys provides centralized context key definitions
//
// All context keys used across the module are defined here so that the
// strategy, the HTTP sink, and the server agree on where values live.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/workos-sso/pkg/contextkeys"
//	ctx = contextkeys.WithUser(ctx, user)
//	user := contextkeys.GetUser(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserKey contains the user accepted by the verifier
	// Set by: sso.HTTPSink on a success outcome
	// Used by: Handlers chained after the SSO callback
	// Type: any (application defined)
	UserKey Key = "sso_user"

	// AuthInfoKey contains the optional info returned alongside the user
	// Set by: sso.HTTPSink on a success outcome
	// Type: any (application defined)
	AuthInfoKey Key = "sso_auth_info"

	// RequestIDKey contains request ID string (UUID)
	// Set by: server.RequestIDMiddleware
	// Used by: Logger, error responses
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: server.RequestIDMiddleware
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithUser adds the authenticated user to the context
func WithUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser retrieves the authenticated user from context
func GetUser(ctx context.Context) interface{} {
	return ctx.Value(UserKey)
}

// WithAuthInfo adds the verifier info to the context
func WithAuthInfo(ctx context.Context, info interface{}) context.Context {
	return context.WithValue(ctx, AuthInfoKey, info)
}

// GetAuthInfo retrieves the verifier info from context
func GetAuthInfo(ctx context.Context) interface{} {
	return ctx.Value(AuthInfoKey)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}
