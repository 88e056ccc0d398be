// Package broker provides clients for the external identity broker that performs
// the single sign-on handshake on behalf of the SSO strategy.
//
// # Overview
//
// A broker client has two responsibilities:
//
//   - AuthorizationURL builds the URL the user agent is redirected to when a login
//     is initiated. Routing hints (connection, organization, domain) select which
//     upstream identity source the broker uses.
//   - ExchangeCode trades the one-time authorization code returned on the broker's
//     redirect for the user's profile and an access token.
//
// # Implementations
//
// WorkOSClient talks to a WorkOS-style SSO API (/sso/authorize and /sso/token) whose
// token response carries the profile inline:
//
//	client, err := broker.NewWorkOSClient(broker.WorkOSConfig{
//		ClientSecret: secret,
//		HTTPClient:   broker.NewHTTPClient(10 * time.Second),
//	})
//
// OIDCClient talks to an OpenID Connect provider discovered from its issuer URL and
// builds the profile from the verified ID token claims:
//
//	client, err := broker.NewOIDCClient(ctx, broker.OIDCConfig{
//		IssuerURL:    "https://tenant.example.com/",
//		ClientSecret: secret,
//	})
//
// # Errors
//
// ExchangeCode failures are always reported as *Error so callers can tell a rejected
// grant (KindGrantInvalid) from a broker-side fault (KindBrokerFault) or a network
// failure (KindTransportFault) without inspecting response payloads.
package broker
