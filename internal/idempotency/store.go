// Package idempotency provides at-most-once execution gating for mutating
// operations and webhook events, keyed by a caller-chosen idempotency key.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// Record states.
const (
	StateInProgress = "in_progress"
	StateDone       = "done"
)

// DefaultTTL is the validity window for an idempotency record. An in-progress
// record left behind by a crashed worker becomes reclaimable after this long,
// which bounds how long retries with the same key can be blocked.
const DefaultTTL = 5 * time.Minute

// MaxKeyLength is the maximum allowed length for a client-supplied
// idempotency key. ValidateKey enforces it at the API boundary; stores accept
// longer keys, since callers prefix client keys with an operation scope.
const MaxKeyLength = 255

var (
	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length")
)

// ValidateKey checks if a client-supplied idempotency key is valid.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// Store gates execution of an operation per key.
//
// For a fixed key, every caller that loses TryBegin must eventually observe
// the winner's committed result via GetIfReady. A committed result is never
// overwritten with different content; all writers for a given key compute the
// same result by construction, which the lifecycle engine upholds.
type Store interface {
	// TryBegin atomically claims execution for the key. It inserts an
	// in-progress record when none exists or the existing one has expired,
	// and returns true iff this caller now owns execution. Concurrent
	// callers with the same key see exactly one true.
	TryBegin(ctx context.Context, key string) (bool, error)

	// GetIfReady returns the committed result for the key, or ok=false when
	// the record is absent, still in progress, or expired.
	GetIfReady(ctx context.Context, key string) (result []byte, ok bool, err error)

	// Commit transitions the record to done, stores the result, and
	// refreshes its expiry. Safe to call without a preceding TryBegin.
	Commit(ctx context.Context, key string, result []byte) error
}
