package sso

import "errors"

var (
	// ErrMissingRoutingHint is returned when an initiation request names no identity source
	ErrMissingRoutingHint = errors.New("one of 'connection', 'domain', 'organization' and/or 'email' are required")

	// ErrInvalidConfig is returned by NewStrategy when required configuration is missing
	ErrInvalidConfig = errors.New("invalid SSO configuration")

	// ErrNoUser is the fail reason when the verifier accepts no user
	ErrNoUser = errors.New("no user")

	// ErrRedirectURINotAllowed is returned when the effective redirect URI is not allowlisted
	ErrRedirectURINotAllowed = errors.New("redirect URI is not allowed")

	// ErrMalformedBody is returned when the initiation request body cannot be parsed
	ErrMalformedBody = errors.New("malformed request body")
)
