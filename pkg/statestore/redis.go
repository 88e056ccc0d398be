package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/workos-sso/pkg/observability"
)

const (
	backendRedis = "redis"

	// DefaultKeyPrefix namespaces state keys in a shared redis
	DefaultKeyPrefix = "sso:state"
)

// RedisConfig holds redis state store configuration
type RedisConfig struct {
	URL       string
	KeyPrefix string
	TTL       time.Duration
}

// RedisStore keeps state tokens in redis so any replica can finish a login
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewRedisStore connects to redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig, metrics *observability.Metrics) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg, metrics), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client redis.UniversalClient, cfg RedisConfig, metrics *observability.Metrics) *RedisStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Client returns the underlying redis client for sharing with other components
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

func (s *RedisStore) key(token string) string {
	return fmt.Sprintf("%s:%s", s.prefix, token)
}

// Issue stores a new token with the configured TTL
func (s *RedisStore) Issue(ctx context.Context) (string, error) {
	token, err := newToken()
	if err == nil {
		if setErr := s.client.Set(ctx, s.key(token), 1, s.ttl).Err(); setErr != nil {
			err = fmt.Errorf("redis set failed: %w", setErr)
		}
	}
	recordOperation(s.metrics, "issue", backendRedis, err)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Consume deletes the token. Only the caller whose DEL removed the key succeeds.
func (s *RedisStore) Consume(ctx context.Context, token string) error {
	err := s.consume(ctx, token)
	recordOperation(s.metrics, "consume", backendRedis, err)
	return err
}

func (s *RedisStore) consume(ctx context.Context, token string) error {
	if token == "" {
		return ErrStateNotFound
	}
	deleted, err := s.client.Del(ctx, s.key(token)).Result()
	if err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	if deleted != 1 {
		return ErrStateNotFound
	}
	return nil
}

// Ping checks the redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
