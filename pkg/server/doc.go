// Package server embeds the SSO strategy in an HTTP service.
//
// # Routes
//
//	GET|POST /auth/sso/login     issue state, redirect to the broker
//	GET      /auth/sso/callback  redeem state, exchange code, respond with the user
//	GET      /healthz            liveness
//	GET      /readyz             readiness (state store)
//
// The login route requires one of connection, organization, domain or email
// in the query. The state token is stored server side and mirrored in an
// HttpOnly cookie; the callback must present both.
//
// # Related Packages
//
//   - pkg/sso: Strategy and outcome delivery
//   - pkg/statestore: State token storage
//   - pkg/middleware: Rate limiting
package server
