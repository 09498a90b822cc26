package kafka

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "kafka:processed:"

// RedisIdempotencyStore records handled dedup keys in Redis so duplicates are
// detected across replicas and restarts. Keys expire after ttl.
type RedisIdempotencyStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a store on client.
func NewRedisIdempotencyStore(client goredis.UniversalClient, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

// Contains reports whether key was recorded and has not expired.
func (s *RedisIdempotencyStore) Contains(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, idempotencyKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return n > 0, nil
}

// Add records key. Re-adding an existing key keeps its original expiry.
func (s *RedisIdempotencyStore) Add(ctx context.Context, key string) error {
	if err := s.client.SetNX(ctx, idempotencyKeyPrefix+key, time.Now().UTC().Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("record processed event: %w", err)
	}
	return nil
}
