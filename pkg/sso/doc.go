// Package sso implements a two-phase, broker-mediated single sign-on strategy.
//
// # Overview
//
// A Strategy drives one authentication attempt per HTTP request. A request
// without a "code" query parameter starts the flow: a routing hint
// (connection, organization, domain or email) selects the identity source
// and the user agent is redirected to the broker. A request carrying "code"
// is the broker callback: the code is exchanged for a profile and access
// token, and an application Verifier decides whether to accept the user.
//
// Every attempt ends in exactly one Outcome: redirect, success, fail or error.
//
// # Usage Example
//
//	strategy, err := sso.NewStrategy(sso.Config{
//		ClientID:     os.Getenv("SSO_CLIENT_ID"),
//		ClientSecret: os.Getenv("SSO_CLIENT_SECRET"),
//		CallbackURL:  "https://app.example.com/auth/sso/callback",
//	}, sso.VerifierFunc(func(ctx context.Context, in sso.VerifyInput) (sso.Verification, error) {
//		return sso.Verification{User: in.Profile}, nil
//	}))
//
//	router.Handle("/auth/sso/callback", strategy.Handler(sso.AuthenticateOptions{}, next))
//
// # Outcome Mapping
//
// HTTPSink translates outcomes into responses:
//
//   - redirect: 302 Found to the broker authorization URL
//   - fail: 401 Unauthorized with the reason
//   - error: 500 Internal Server Error
//   - success: the next handler runs with the user in the request context
//
// # Related Packages
//
//   - pkg/broker: Identity broker clients (WorkOS, OIDC)
//   - pkg/server: Demo server embedding the strategy
package sso
