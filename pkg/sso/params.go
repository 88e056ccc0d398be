package sso

import (
	"net/url"
	"strings"

	"github.com/platinummonkey/workos-sso/pkg/broker"
)

// AuthenticateOptions are set by the code embedding the strategy, per route.
// Non-empty values override everything derived from the request.
type AuthenticateOptions struct {
	RedirectURI string
	State       string
	ClientID    string
	// Params holds any other broker authorization parameter
	Params map[string]string
}

// RoutingHints are the identity-source selectors read from the query.
// Empty values count as absent.
type RoutingHints struct {
	Connection   string
	Organization string
	Domain       string
	Email        string
}

// HintsFromQuery reads the routing hints from query parameters. A parameter
// that is present but empty counts as absent.
func HintsFromQuery(q url.Values) RoutingHints {
	return RoutingHints{
		Connection:   q.Get(queryConnection),
		Organization: q.Get(queryOrganization),
		Domain:       q.Get(queryDomain),
		Email:        q.Get(queryEmail),
	}
}

// Empty reports whether no hint is present
func (h RoutingHints) Empty() bool {
	return h.Connection == "" && h.Organization == "" && h.Domain == "" && h.Email == ""
}

// EffectiveDomain returns the explicit domain, or the part of the email after
// the first "@". An email without "@" is used whole.
func (h RoutingHints) EffectiveDomain() string {
	if h.Domain != "" {
		return h.Domain
	}
	if h.Email == "" {
		return ""
	}
	if i := strings.Index(h.Email, "@"); i >= 0 {
		return h.Email[i+1:]
	}
	return h.Email
}

// BuildAuthorizationParams merges the authorization parameters in order, later
// layers winning: body fields, routing hints, the configured client ID and
// redirect URI, then caller options. A missing hint removes its key and the
// email never reaches the broker.
func BuildAuthorizationParams(body map[string]string, hints RoutingHints, clientID, callbackURL string, opts AuthenticateOptions) broker.AuthorizationParams {
	merged := make(map[string]string, len(body)+len(opts.Params)+5)
	for k, v := range body {
		merged[k] = v
	}

	setOrDelete(merged, broker.ParamConnection, hints.Connection)
	setOrDelete(merged, broker.ParamOrganization, hints.Organization)
	setOrDelete(merged, broker.ParamDomain, hints.EffectiveDomain())

	merged[broker.ParamClientID] = clientID
	merged[broker.ParamRedirectURI] = callbackURL
	if opts.RedirectURI != "" {
		merged[broker.ParamRedirectURI] = opts.RedirectURI
	}

	for k, v := range opts.Params {
		merged[k] = v
	}
	if opts.ClientID != "" {
		merged[broker.ParamClientID] = opts.ClientID
	}
	if opts.RedirectURI != "" {
		merged[broker.ParamRedirectURI] = opts.RedirectURI
	}
	if opts.State != "" {
		merged[broker.ParamState] = opts.State
	}

	delete(merged, queryEmail)

	return broker.ParamsFromMap(merged)
}

func setOrDelete(m map[string]string, key, value string) {
	if value == "" {
		delete(m, key)
		return
	}
	m[key] = value
}
