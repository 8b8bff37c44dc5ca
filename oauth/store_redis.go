package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists credentials in Redis for the multi-instance web
// surface: every instance serving the same user sees the same credential,
// and a refresh on one instance is immediately visible on the others.
type RedisStore struct {
	client *redis.Client
	prefix string
}

const defaultTokenPrefix = "etsyapi:tokens:"

// NewRedisStore wraps an existing Redis client. The client is caller-owned.
// An empty prefix uses "etsyapi:tokens:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultTokenPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(owner string) string {
	return s.prefix + owner
}

// Put stores the credential without a TTL: the refresh token outlives the
// access token and is only removed by Delete.
func (s *RedisStore) Put(ctx context.Context, owner string, tokens *Tokens) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("oauth: marshal tokens: %w", err)
	}
	if err := s.client.Set(ctx, s.key(owner), data, 0).Err(); err != nil {
		return fmt.Errorf("oauth: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, owner string) (*Tokens, error) {
	data, err := s.client.Get(ctx, s.key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("oauth: redis get: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("oauth: parse stored tokens: %w", err)
	}
	return &tokens, nil
}

func (s *RedisStore) Delete(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, s.key(owner)).Err(); err != nil {
		return fmt.Errorf("oauth: redis del: %w", err)
	}
	return nil
}
