// Package statestore issues and redeems single-use anti-forgery state tokens
// for the SSO initiation and callback round trip.
package statestore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/workos-sso/pkg/observability"
)

// DefaultTTL bounds how long a user may take to finish the broker login
const DefaultTTL = 10 * time.Minute

// ErrStateNotFound is returned when a token is unknown, expired or already used
var ErrStateNotFound = errors.New("state not found or expired")

// Store holds issued state tokens until they are consumed once
type Store interface {
	// Issue creates and stores a new token
	Issue(ctx context.Context) (string, error)
	// Consume removes the token, failing with ErrStateNotFound when it is not live
	Consume(ctx context.Context, token string) error
	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
	Close() error
}

// newToken returns 32 random bytes, base64url encoded
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func recordOperation(metrics *observability.Metrics, operation, backend string, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrStateNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.RecordStateStoreOperation(operation, backend, status)
}
