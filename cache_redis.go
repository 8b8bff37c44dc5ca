package etsyapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the externally shared cache backend. All callers using the
// same key prefix share one key space, so cache hits and invalidations are
// visible across processes. Atomicity of the primitive operations is
// Redis's own guarantee; no extra locking is layered on top.
type RedisCache struct {
	client *redis.Client
	prefix string
}

const defaultRedisPrefix = "etsyapi:cache:"

// NewRedisCache wraps an existing Redis client. The client is caller-owned;
// closing it is the caller's responsibility. An empty prefix uses
// "etsyapi:cache:".
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + key
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// matchEscaper quotes Redis glob metacharacters. Cache keys routinely
// contain "?" (query strings), which would otherwise match any character.
var matchEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeMatch(s string) string {
	return matchEscaper.Replace(s)
}

// Clear scans for keys containing substring under the prefix and deletes
// them in batches. SCAN keeps this safe against large key spaces.
func (c *RedisCache) Clear(ctx context.Context, substring string) error {
	match := escapeMatch(c.prefix) + "*"
	if substring != "" {
		match = escapeMatch(c.prefix) + "*" + escapeMatch(substring) + "*"
	}

	iter := c.client.Scan(ctx, 0, match, 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis clear: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis clear: %w", err)
		}
	}
	return nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}
