package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	logpkg "trackify/internal/log"
)

// RedisCache stores JSON-encoded values in Redis under a namespace so that
// workers and the CLI share one cache.
type RedisCache[T any] struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewRedisClient parses url, connects and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisCache creates a cache whose keys live under namespace.
func NewRedisCache[T any](client *redis.Client, namespace string, ttl time.Duration, logger *slog.Logger) *RedisCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache[T]{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger.With(slog.String(logpkg.FieldComponent, logpkg.ComponentCache)),
	}
}

func (c *RedisCache[T]) namespaceKey(key string) string {
	return fmt.Sprintf("trackify:%s:%s", c.namespace, key)
}

// Get retrieves a value from the cache
func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.client.Get(ctx, c.namespaceKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Redis get failed", logpkg.FieldCacheKey, key, logpkg.FieldError, err)
		return zero, false
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.WarnContext(ctx, "Discarding undecodable cache entry", logpkg.FieldCacheKey, key, logpkg.FieldError, err)
		c.Delete(ctx, key)
		return zero, false
	}
	return value, true
}

// Set stores a value with the cache TTL
func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to encode cache entry", logpkg.FieldCacheKey, key, logpkg.FieldError, err)
		return
	}
	if err := c.client.Set(ctx, c.namespaceKey(key), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis set failed", logpkg.FieldCacheKey, key, logpkg.FieldError, err)
	}
}

// Delete removes a key from the cache
func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.namespaceKey(key)).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis delete failed", logpkg.FieldCacheKey, key, logpkg.FieldError, err)
	}
}

// Clear removes every key in the cache namespace
func (c *RedisCache[T]) Clear(ctx context.Context) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.namespaceKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis scan failed", logpkg.FieldError, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis clear failed", logpkg.FieldError, err)
	}
}
