package idempotency

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock is an adjustable time source for tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestTryBegin_FirstCallerWins tests that the first TryBegin claims the key
// and subsequent calls lose until expiry.
func TestTryBegin_FirstCallerWins(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	ctx := context.Background()

	won, err := store.TryBegin(ctx, "update:cs_1:k1")
	if err != nil {
		t.Fatalf("TryBegin failed: %v", err)
	}
	if !won {
		t.Error("expected first caller to win")
	}

	won, err = store.TryBegin(ctx, "update:cs_1:k1")
	if err != nil {
		t.Fatalf("second TryBegin failed: %v", err)
	}
	if won {
		t.Error("expected second caller to lose")
	}
}

// TestTryBegin_ConcurrentSingleWinner tests that concurrent callers with the
// same key see exactly one true.
func TestTryBegin_ConcurrentSingleWinner(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	ctx := context.Background()

	const callers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.TryBegin(ctx, "complete:cs_1:k1")
			if err != nil {
				t.Errorf("TryBegin failed: %v", err)
				return
			}
			if won {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
}

// TestGetIfReady_InProgress tests that an in-progress record returns no result.
func TestGetIfReady_InProgress(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	ctx := context.Background()

	if _, err := store.TryBegin(ctx, "k1"); err != nil {
		t.Fatalf("TryBegin failed: %v", err)
	}

	_, ok, err := store.GetIfReady(ctx, "k1")
	if err != nil {
		t.Fatalf("GetIfReady failed: %v", err)
	}
	if ok {
		t.Error("expected no result while in progress")
	}
}

// TestCommitThenGetIfReady tests that a committed result is returned to all
// subsequent callers.
func TestCommitThenGetIfReady(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	ctx := context.Background()

	if _, err := store.TryBegin(ctx, "k1"); err != nil {
		t.Fatalf("TryBegin failed: %v", err)
	}
	if err := store.Commit(ctx, "k1", []byte(`{"id":"cs_1"}`)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	result, ok, err := store.GetIfReady(ctx, "k1")
	if err != nil {
		t.Fatalf("GetIfReady failed: %v", err)
	}
	if !ok {
		t.Fatal("expected result after commit")
	}
	if !bytes.Equal(result, []byte(`{"id":"cs_1"}`)) {
		t.Errorf("unexpected result: %s", result)
	}
}

// TestCommit_WithoutTryBegin tests that Commit is safe without a prior claim.
func TestCommit_WithoutTryBegin(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	ctx := context.Background()

	if err := store.Commit(ctx, "k1", []byte("ok")); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	_, ok, err := store.GetIfReady(ctx, "k1")
	if err != nil {
		t.Fatalf("GetIfReady failed: %v", err)
	}
	if !ok {
		t.Error("expected result after bare commit")
	}
}

// TestExpiry_ReclaimsInProgressClaim tests that a crashed worker's claim is
// reclaimable after the TTL rather than blocking retries forever.
func TestExpiry_ReclaimsInProgressClaim(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	clock := newFakeClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	won, err := store.TryBegin(ctx, "k1")
	if err != nil || !won {
		t.Fatalf("expected initial claim to win, got won=%v err=%v", won, err)
	}

	// Simulate a crash: no commit. Before expiry the key stays claimed.
	clock.Advance(30 * time.Second)
	if won, _ := store.TryBegin(ctx, "k1"); won {
		t.Error("expected claim to hold before expiry")
	}

	clock.Advance(31 * time.Second)
	won, err = store.TryBegin(ctx, "k1")
	if err != nil {
		t.Fatalf("TryBegin after expiry failed: %v", err)
	}
	if !won {
		t.Error("expected expired claim to be reclaimable")
	}
}

// TestExpiry_HidesCommittedResult tests that an expired committed result is
// treated as absent.
func TestExpiry_HidesCommittedResult(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	clock := newFakeClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	if err := store.Commit(ctx, "k1", []byte("ok")); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	clock.Advance(2 * time.Minute)
	_, ok, err := store.GetIfReady(ctx, "k1")
	if err != nil {
		t.Fatalf("GetIfReady failed: %v", err)
	}
	if ok {
		t.Error("expected expired result to be absent")
	}
}

// TestValidateKey tests key validation for the empty and oversized cases.
func TestValidateKey(t *testing.T) {
	if err := ValidateKey(""); err != ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey for empty key, got %v", err)
	}
	if err := ValidateKey(strings.Repeat("a", MaxKeyLength+1)); err != ErrKeyTooLong {
		t.Errorf("expected ErrKeyTooLong, got %v", err)
	}
	if err := ValidateKey("complete:cs_1:abc"); err != nil {
		t.Errorf("expected valid key, got %v", err)
	}
}

// TestScopedKeyLongerThanClientLimit tests that the store accepts keys whose
// operation-scope prefix pushes them past the client-facing length limit.
func TestScopedKeyLongerThanClientLimit(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	ctx := context.Background()

	key := "complete:cs_1:" + strings.Repeat("k", MaxKeyLength)
	won, err := store.TryBegin(ctx, key)
	if err != nil {
		t.Fatalf("TryBegin failed: %v", err)
	}
	if !won {
		t.Error("expected first caller to win")
	}
	if err := store.Commit(ctx, key, []byte("ok")); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	_, ok, err := store.GetIfReady(ctx, key)
	if err != nil {
		t.Fatalf("GetIfReady failed: %v", err)
	}
	if !ok {
		t.Error("expected committed result under the long key")
	}
}

// TestDeleteExpired tests that cleanup removes only expired records.
func TestDeleteExpired(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	clock := newFakeClock()
	store.SetClock(clock.Now)
	ctx := context.Background()

	if err := store.Commit(ctx, "old", []byte("a")); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if err := store.Commit(ctx, "fresh", []byte("b")); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if deleted := store.DeleteExpired(); deleted != 1 {
		t.Errorf("expected 1 deleted record, got %d", deleted)
	}

	_, ok, _ := store.GetIfReady(ctx, "fresh")
	if !ok {
		t.Error("expected fresh record to survive cleanup")
	}
}
