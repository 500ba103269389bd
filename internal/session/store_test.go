package session

import (
	"context"
	"testing"
)

// TestGet_NotFound tests that fetching an unknown session id returns ErrSessionNotFound.
func TestGet_NotFound(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get(context.Background(), "cs_missing")
	if err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

// TestPutGet_RoundTrip tests that a stored session is retrievable by id.
func TestPutGet_RoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := &Session{
		ID:       "cs_1",
		Status:   StatusNotReadyForPayment,
		Currency: "usd",
		LineItems: []LineItem{
			{ID: "li_1", Item: ItemRef{ID: "sku1", Quantity: 2}, BaseAmount: 1000, Subtotal: 1000, Total: 1000},
		},
		Totals: []Total{{Type: TotalTotal, DisplayText: "Total", Amount: 1000}},
	}

	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "cs_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusNotReadyForPayment {
		t.Errorf("expected status %s, got %s", StatusNotReadyForPayment, got.Status)
	}
	if got.TotalAmount() != 1000 {
		t.Errorf("expected total 1000, got %d", got.TotalAmount())
	}
}

// TestGet_ReturnsCopy tests that mutating a fetched session does not leak
// back into the store.
func TestGet_ReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := &Session{
		ID:     "cs_1",
		Status: StatusReadyForPayment,
		Totals: []Total{{Type: TotalTotal, DisplayText: "Total", Amount: 500}},
	}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "cs_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got.Status = StatusCanceled
	got.Totals[0].Amount = 0

	again, err := store.Get(ctx, "cs_1")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if again.Status != StatusReadyForPayment {
		t.Errorf("store state mutated through returned copy: status %s", again.Status)
	}
	if again.Totals[0].Amount != 500 {
		t.Errorf("store state mutated through returned copy: amount %d", again.Totals[0].Amount)
	}
}

// TestPut_StoresCopy tests that mutating the caller's session after Put does
// not leak into the store.
func TestPut_StoresCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := &Session{ID: "cs_1", Status: StatusReadyForPayment}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	sess.Status = StatusCanceled

	got, err := store.Get(ctx, "cs_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusReadyForPayment {
		t.Errorf("store state aliased caller's session: status %s", got.Status)
	}
}

// TestFindByPaymentIntentID tests payment-reference lookup, including the
// empty-reference and no-match cases.
func TestFindByPaymentIntentID(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := &Session{ID: "cs_1", Status: StatusCompleted, PaymentIntentID: "pi_123"}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.FindByPaymentIntentID(ctx, "pi_123")
	if err != nil {
		t.Fatalf("FindByPaymentIntentID failed: %v", err)
	}
	if got.ID != "cs_1" {
		t.Errorf("expected session cs_1, got %s", got.ID)
	}

	if _, err := store.FindByPaymentIntentID(ctx, "pi_other"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound for unknown reference, got %v", err)
	}
	if _, err := store.FindByPaymentIntentID(ctx, ""); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound for empty reference, got %v", err)
	}
}

// TestDelete tests removal and that deleting an absent session is a no-op.
func TestDelete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, &Session{ID: "cs_1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "cs_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "cs_1"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "cs_1"); err != nil {
		t.Errorf("expected deleting absent session to be a no-op, got %v", err)
	}
}
