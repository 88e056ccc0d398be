package statestore

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/workos-sso/pkg/observability"
)

// DefaultMaxEntries caps the number of pending logins held in memory
const DefaultMaxEntries = 100000

const backendMemory = "memory"

// MemoryStore keeps state tokens in a process-local expiring LRU.
// Tokens are not shared between replicas.
type MemoryStore struct {
	cache   *lru.LRU[string, struct{}]
	metrics *observability.Metrics
}

// NewMemoryStore creates a memory store. Zero values select the defaults.
func NewMemoryStore(maxEntries int, ttl time.Duration, metrics *observability.Metrics) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryStore{
		cache:   lru.NewLRU[string, struct{}](maxEntries, nil, ttl),
		metrics: metrics,
	}
}

// Issue stores a new token
func (s *MemoryStore) Issue(ctx context.Context) (string, error) {
	token, err := newToken()
	if err == nil {
		s.cache.Add(token, struct{}{})
	}
	recordOperation(s.metrics, "issue", backendMemory, err)
	return token, err
}

// Consume removes a live token
func (s *MemoryStore) Consume(ctx context.Context, token string) error {
	err := s.consume(token)
	recordOperation(s.metrics, "consume", backendMemory, err)
	return err
}

func (s *MemoryStore) consume(token string) error {
	if token == "" {
		return ErrStateNotFound
	}
	// Get skips expired entries; Remove settles concurrent consumers
	if _, ok := s.cache.Get(token); !ok {
		return ErrStateNotFound
	}
	if !s.cache.Remove(token) {
		return ErrStateNotFound
	}
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of pending tokens
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close drops every pending token
func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
