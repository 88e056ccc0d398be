package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// DefaultWorkOSBaseURL is the public WorkOS API endpoint
const DefaultWorkOSBaseURL = "https://api.workos.com"

// WorkOSConfig holds WorkOS client configuration
type WorkOSConfig struct {
	ClientSecret string
	BaseURL      string // Defaults to DefaultWorkOSBaseURL
	HTTPClient   *http.Client
}

// WorkOSClient implements Client against the WorkOS SSO API
type WorkOSClient struct {
	clientSecret string
	baseURL      *url.URL
	httpClient   *http.Client
}

// NewWorkOSClient creates a new WorkOS client
func NewWorkOSClient(cfg WorkOSConfig) (*WorkOSClient, error) {
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	rawBaseURL := cfg.BaseURL
	if rawBaseURL == "" {
		rawBaseURL = DefaultWorkOSBaseURL
	}
	baseURL, err := url.Parse(rawBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", rawBaseURL, err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", rawBaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}

	return &WorkOSClient{
		clientSecret: cfg.ClientSecret,
		baseURL:      baseURL,
		httpClient:   httpClient,
	}, nil
}

// AuthorizationURL builds the /sso/authorize URL for the given parameters
func (c *WorkOSClient) AuthorizationURL(params AuthorizationParams) (string, error) {
	if params.ClientID == "" {
		return "", fmt.Errorf("client ID is required")
	}
	if params.RedirectURI == "" {
		return "", fmt.Errorf("redirect URI is required")
	}
	if !params.HasRoutingHint() {
		return "", fmt.Errorf("incomplete arguments: need to specify either a 'connection', 'organization', 'domain', or 'provider'")
	}

	query := url.Values{}
	for _, k := range params.extraKeys() {
		query.Set(k, params.Extra[k])
	}
	query.Set("client_id", params.ClientID)
	query.Set("redirect_uri", params.RedirectURI)
	query.Set("response_type", "code")
	setIfNotEmpty(query, "connection", params.Connection)
	setIfNotEmpty(query, "organization", params.Organization)
	setIfNotEmpty(query, "domain", params.Domain)
	setIfNotEmpty(query, "provider", params.Provider)
	setIfNotEmpty(query, "state", params.State)
	setIfNotEmpty(query, "login_hint", params.LoginHint)
	setIfNotEmpty(query, "domain_hint", params.DomainHint)

	authURL := c.baseURL.JoinPath("sso", "authorize")
	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

// ExchangeCode posts the authorization code to /sso/token and decodes the inline profile
func (c *WorkOSClient) ExchangeCode(ctx context.Context, code, clientID string) (*ExchangeResult, error) {
	if code == "" {
		return nil, &Error{Kind: KindGrantInvalid, Code: ErrorCodeInvalidGrant, Description: "missing authorization code"}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth2Config(clientID).Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	profile, err := decodeProfile(token.Extra("profile"))
	if err != nil {
		return nil, err
	}

	return &ExchangeResult{
		Profile:     *profile,
		AccessToken: token.AccessToken,
	}, nil
}

// oauth2Config builds the token endpoint configuration for a client ID.
// Credentials go in the form body so the exchange is never retried with a
// different auth style, which would replay the single-use code.
func (c *WorkOSClient) oauth2Config(clientID string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.baseURL.JoinPath("sso", "authorize").String(),
			TokenURL:  c.baseURL.JoinPath("sso", "token").String(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// decodeProfile converts the raw "profile" member of a token response into a Profile
func decodeProfile(raw interface{}) (*Profile, error) {
	if raw == nil {
		return nil, malformed("token response is missing profile")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, malformed("failed to encode profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, malformed("failed to decode profile: %w", err)
	}
	if profile.ID == "" {
		return nil, malformed("profile is missing id")
	}

	return &profile, nil
}

func setIfNotEmpty(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}
