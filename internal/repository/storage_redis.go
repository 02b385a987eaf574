package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/aprendices-roster/internal/models"
)

// RedisStore keeps the session-scoped slots of a tab in one Redis hash whose
// expiry is pushed back on every write, so abandoned tabs disappear.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore constructs the store.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "roster:session"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) hashKey(scope string) string {
	return fmt.Sprintf("%s:%s", s.prefix, scope)
}

// Get returns the stored value and whether it exists.
func (s *RedisStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.hashKey(scope), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores the value and refreshes the scope expiry.
func (s *RedisStore) Set(ctx context.Context, scope, key, value string) error {
	hash := s.hashKey(scope)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, hash, key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, hash, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

// Delete removes keys of a scope.
func (s *RedisStore) Delete(ctx context.Context, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.hashKey(scope), keys...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// Usage counts populated keys and stored bytes of a scope.
func (s *RedisStore) Usage(ctx context.Context, scope string) (models.StoreUsage, error) {
	values, err := s.client.HGetAll(ctx, s.hashKey(scope)).Result()
	if err != nil {
		return models.StoreUsage{}, fmt.Errorf("redis hgetall: %w", err)
	}
	usage := models.StoreUsage{Items: len(values)}
	for key, value := range values {
		usage.Bytes += len(key) + len(value)
	}
	return usage, nil
}
