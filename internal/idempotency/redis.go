// Package idempotency provides Redis-backed idempotency record storage.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefixes. The lock key carries the claim; the result key carries
// the committed response. Both expire together, so TTL expiry reclaims a
// crashed in-flight claim exactly like the in-memory store.
const (
	redisLockPrefix   = "acp:idem:lock:"
	redisResultPrefix = "acp:idem:res:"
)

// RedisStore implements Store backed by Redis. TryBegin maps onto SET NX with
// a TTL, which gives the single-winner guarantee across processes.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed idempotency store with the given
// record TTL. A non-positive ttl falls back to DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// TryBegin atomically claims execution for the key.
func (s *RedisStore) TryBegin(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	won, err := s.client.SetNX(ctx, redisLockPrefix+key, StateInProgress, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis try begin: %w", err)
	}
	return won, nil
}

// GetIfReady returns the committed result for the key.
func (s *RedisStore) GetIfReady(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := s.client.Get(ctx, redisResultPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get result: %w", err)
	}
	return result, true, nil
}

// Commit stores the result and refreshes expiry on both keys.
func (s *RedisStore) Commit(ctx context.Context, key string, result []byte) error {
	if key == "" {
		return ErrInvalidKey
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisResultPrefix+key, result, s.ttl)
	pipe.Set(ctx, redisLockPrefix+key, StateDone, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis commit: %w", err)
	}
	return nil
}
