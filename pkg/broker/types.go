package broker

import (
	"context"
	"sort"
)

// Client is the identity broker collaborator used by the SSO strategy
type Client interface {
	// AuthorizationURL builds the broker URL the user agent is redirected to
	AuthorizationURL(params AuthorizationParams) (string, error)

	// ExchangeCode trades an authorization code for the user's profile and access token.
	// Errors are returned as *Error.
	ExchangeCode(ctx context.Context, code, clientID string) (*ExchangeResult, error)
}

// Parameter names used when authorization parameters are assembled from maps
// (request body fields and caller options).
const (
	ParamConnection   = "connection"
	ParamOrganization = "organization"
	ParamDomain       = "domain"
	ParamProvider     = "provider"
	ParamClientID     = "clientID"
	ParamRedirectURI  = "redirectURI"
	ParamState        = "state"
	ParamLoginHint    = "loginHint"
	ParamDomainHint   = "domainHint"
)

// AuthorizationParams holds the parameters of a single authorization request
type AuthorizationParams struct {
	Connection   string
	Organization string
	Domain       string
	Provider     string
	ClientID     string
	RedirectURI  string
	State        string
	LoginHint    string
	DomainHint   string

	// Extra holds broker-defined parameters this package has no field for.
	// They are forwarded verbatim as query parameters.
	Extra map[string]string
}

// ParamsFromMap converts a flat parameter map into AuthorizationParams.
// Known keys fill the typed fields, anything else lands in Extra.
func ParamsFromMap(m map[string]string) AuthorizationParams {
	var p AuthorizationParams
	for k, v := range m {
		switch k {
		case ParamConnection:
			p.Connection = v
		case ParamOrganization:
			p.Organization = v
		case ParamDomain:
			p.Domain = v
		case ParamProvider:
			p.Provider = v
		case ParamClientID:
			p.ClientID = v
		case ParamRedirectURI:
			p.RedirectURI = v
		case ParamState:
			p.State = v
		case ParamLoginHint:
			p.LoginHint = v
		case ParamDomainHint:
			p.DomainHint = v
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[k] = v
		}
	}
	return p
}

// HasRoutingHint reports whether any field that selects an identity source is set
func (p AuthorizationParams) HasRoutingHint() bool {
	return p.Connection != "" || p.Organization != "" || p.Domain != "" || p.Provider != ""
}

// extraKeys returns the Extra keys in a stable order
func (p AuthorizationParams) extraKeys() []string {
	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Profile is the identity returned by the broker after a successful code exchange.
// The SSO strategy treats it as opaque and hands it to the application verifier.
type Profile struct {
	ID             string         `json:"id"`
	IdpID          string         `json:"idp_id,omitempty"`
	ConnectionID   string         `json:"connection_id,omitempty"`
	ConnectionType string         `json:"connection_type,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Email          string         `json:"email"`
	EmailVerified  *bool          `json:"email_verified,omitempty"` // nil when the IdP does not say
	FirstName      string         `json:"first_name,omitempty"`
	LastName       string         `json:"last_name,omitempty"`
	Groups         []string       `json:"groups,omitempty"`
	RawAttributes  map[string]any `json:"raw_attributes,omitempty"`
}

// ExchangeResult is the outcome of a successful code exchange.
// The broker never issues refresh tokens.
type ExchangeResult struct {
	Profile     Profile
	AccessToken string
}
