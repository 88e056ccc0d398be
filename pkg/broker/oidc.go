package broker

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DefaultOIDCScopes are requested when OIDCConfig.Scopes is empty
var DefaultOIDCScopes = []string{oidc.ScopeOpenID, "profile", "email"}

// OIDCConfig holds OpenID Connect broker configuration
type OIDCConfig struct {
	IssuerURL       string // Discovery endpoint
	ClientSecret    string
	RedirectURL     string // sent on the token request; must match the authorize redirect_uri
	Scopes          []string
	SkipIssuerCheck bool
	HTTPClient      *http.Client
}

// OIDCClient implements Client against an OpenID Connect provider that accepts
// connection and organization routing parameters on its authorize endpoint
type OIDCClient struct {
	provider        *oidc.Provider
	clientSecret    string
	redirectURL     string
	scopes          []string
	skipIssuerCheck bool
	httpClient      *http.Client
}

// NewOIDCClient discovers the provider and creates a new OIDC client
func NewOIDCClient(ctx context.Context, cfg OIDCConfig) (*OIDCClient, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}

	// Discover OIDC provider
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultOIDCScopes
	}

	return &OIDCClient{
		provider:        provider,
		clientSecret:    cfg.ClientSecret,
		redirectURL:     cfg.RedirectURL,
		scopes:          scopes,
		skipIssuerCheck: cfg.SkipIssuerCheck,
		httpClient:      httpClient,
	}, nil
}

// AuthorizationURL builds the provider authorization URL.
// The domain routing hint is sent as domain_hint unless one is set explicitly.
func (c *OIDCClient) AuthorizationURL(params AuthorizationParams) (string, error) {
	if params.ClientID == "" {
		return "", fmt.Errorf("client ID is required")
	}
	if params.RedirectURI == "" {
		return "", fmt.Errorf("redirect URI is required")
	}

	var opts []oauth2.AuthCodeOption
	for _, k := range params.extraKeys() {
		opts = append(opts, oauth2.SetAuthURLParam(k, params.Extra[k]))
	}

	domainHint := params.DomainHint
	if domainHint == "" {
		domainHint = params.Domain
	}
	for key, value := range map[string]string{
		"connection":   params.Connection,
		"organization": params.Organization,
		"provider":     params.Provider,
		"domain_hint":  domainHint,
		"login_hint":   params.LoginHint,
	} {
		if value != "" {
			opts = append(opts, oauth2.SetAuthURLParam(key, value))
		}
	}

	return c.oauth2Config(params.ClientID, params.RedirectURI).AuthCodeURL(params.State, opts...), nil
}

// ExchangeCode exchanges the code, verifies the ID token, and maps its claims to a Profile
func (c *OIDCClient) ExchangeCode(ctx context.Context, code, clientID string) (*ExchangeResult, error) {
	if code == "" {
		return nil, &Error{Kind: KindGrantInvalid, Code: ErrorCodeInvalidGrant, Description: "missing authorization code"}
	}

	ctx = oidc.ClientContext(ctx, c.httpClient)
	token, err := c.oauth2Config(clientID, c.redirectURL).Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, malformed("token response is missing id_token")
	}

	verifier := c.provider.Verifier(&oidc.Config{
		ClientID:        clientID,
		SkipIssuerCheck: c.skipIssuerCheck,
	})
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, malformed("failed to verify ID token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, malformed("failed to parse claims: %w", err)
	}

	profile := profileFromClaims(claims)
	if profile.ID == "" {
		profile.ID = idToken.Subject
	}

	return &ExchangeResult{
		Profile:     profile,
		AccessToken: token.AccessToken,
	}, nil
}

func (c *OIDCClient) oauth2Config(clientID, redirectURI string) *oauth2.Config {
	endpoint := c.provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: c.clientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURI,
		Scopes:       c.scopes,
	}
}

// profileFromClaims maps standard OIDC claims to a Profile
func profileFromClaims(claims map[string]interface{}) Profile {
	profile := Profile{
		ID:             getStringValue(claims, "sub"),
		IdpID:          getStringValue(claims, "sub"),
		ConnectionType: "OIDC",
		OrganizationID: getStringValue(claims, "org_id"),
		Email:          getStringValue(claims, "email"),
		FirstName:      getStringValue(claims, "given_name"),
		LastName:       getStringValue(claims, "family_name"),
		Groups:         getArrayValue(claims, "groups"),
		RawAttributes:  claims,
	}
	if verified, ok := getBoolValue(claims, "email_verified"); ok {
		profile.EmailVerified = &verified
	}
	return profile
}

// getBoolValue also accepts "true"/"false" strings, which some providers send
func getBoolValue(data map[string]interface{}, key string) (bool, bool) {
	switch v := data[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

func getStringValue(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getArrayValue(data map[string]interface{}, key string) []string {
	if val, ok := data[key]; ok {
		if arr, ok := val.([]interface{}); ok {
			result := make([]string, 0, len(arr))
			for _, item := range arr {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			return result
		}
	}
	return nil
}
