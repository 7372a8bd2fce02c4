package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss indicates the key was not present.
var ErrMiss = errors.New("platform/cache: miss")

// Store is a small JSON cache on top of Redis with a fixed TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore wraps a Redis client. A nil client yields a disabled store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Enabled reports whether the store has a live backend.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// Get unmarshals the cached value for key into target.
func (s *Store) Get(ctx context.Context, key string, target any) error {
	if !s.Enabled() {
		return ErrMiss
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("platform/cache: get %s: %w", key, err)
	}
	return json.Unmarshal(raw, target)
}

// Set marshals value and stores it under key for the configured TTL.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if !s.Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("platform/cache: marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("platform/cache: set %s: %w", key, err)
	}
	return nil
}

// Invalidate removes keys, ignoring misses.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("platform/cache: del: %w", err)
	}
	return nil
}
