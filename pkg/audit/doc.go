// Package audit records SSO authentication events for security review.
//
// # Event Types
//
//	sso.login_initiated  user agent sent to the broker
//	sso.login_succeeded  verifier accepted the profile
//	sso.login_failed     missing hint, rejected grant or rejected profile
//	sso.login_error      broker or verifier fault
//	sso.state_rejected   callback state missing, unknown or replayed
//	sso.broker_denied    broker redirected back with an error
//
// # Destinations
//
// StructuredLogger writes events to the application log. FileLogger writes
// JSON lines to <dir>/audit.log and rotates by size. MultiLogger fans out.
//
//	fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
//		BasePath: "/var/log/sso/audit",
//		Rotate:   true,
//	})
//	auditLogger := audit.NewMultiLogger(audit.NewStructuredLogger(logger), fileLogger)
//
// # Related Packages
//
//   - pkg/server: Emits events for the login and callback routes
package audit
