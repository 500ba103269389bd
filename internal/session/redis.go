// Package session provides the checkout session model and its storage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key prefixes for session records and the payment-reference index.
const (
	redisSessionPrefix = "acp:session:"
	redisIntentPrefix  = "acp:session:pi:"
)

// RedisStore implements Store backed by Redis. Sessions are stored as JSON
// under acp:session:<id>; a secondary index key acp:session:pi:<intent_id>
// maps a payment reference back to its session id and is maintained on Put.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get retrieves a session by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Put stores a session wholesale and refreshes the payment-reference index.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisSessionPrefix+sess.ID, data, 0)
	if sess.PaymentIntentID != "" {
		pipe.Set(ctx, redisIntentPrefix+sess.PaymentIntentID, sess.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put session: %w", err)
	}
	return nil
}

// FindByPaymentIntentID retrieves the session holding the given payment reference.
func (s *RedisStore) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Session, error) {
	if paymentIntentID == "" {
		return nil, ErrSessionNotFound
	}

	id, err := s.client.Get(ctx, redisIntentPrefix+paymentIntentID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get intent index: %w", err)
	}

	return s.Get(ctx, id)
}

// Delete removes a session and its payment-reference index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisSessionPrefix+id)
	if sess.PaymentIntentID != "" {
		pipe.Del(ctx, redisIntentPrefix+sess.PaymentIntentID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
