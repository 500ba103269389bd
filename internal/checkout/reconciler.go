package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/chennuo2233-png/acp-checkout/internal/idempotency"
	"github.com/chennuo2233-png/acp-checkout/internal/notify"
	"github.com/chennuo2233-png/acp-checkout/internal/session"
)

// Provider event types the reconciler acts on. Everything else is
// acknowledged without a session mutation.
const (
	EventPaymentIntentProcessing = "payment_intent.processing"
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventPaymentIntentFailed     = "payment_intent.payment_failed"
	EventChargeRefunded          = "charge.refunded"
	EventChargeDisputeCreated    = "charge.dispute.created"
	EventChargeDisputeClosed     = "charge.dispute.closed"
	EventSharedPaymentTokenUsed  = "shared_payment.granted_token.used"
)

// Payment status values merged from provider events.
const (
	PaymentStatusProcessing = "processing"
	PaymentStatusSucceeded  = "succeeded"
	PaymentStatusFailed     = "failed"
)

// eventDedupeSentinel is committed under the event's idempotency key. Webhook
// handling has no cached response content; only the exactly-once side effect
// matters.
var eventDedupeSentinel = []byte("ok")

// ProviderEvent is a verified provider webhook event. Object is the raw
// provider object from the event payload.
type ProviderEvent struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// ChargeLookup resolves a charge id to its payment intent id when a dispute
// event does not carry the payment intent inline.
type ChargeLookup interface {
	PaymentIntentForCharge(ctx context.Context, chargeID string) (string, error)
}

// Reconciler folds verified provider webhook events into session state.
// Events are deduped by event id and every outcome short of a store failure
// acknowledges the event; only signature verification failures upstream are
// retryable by the provider.
type Reconciler struct {
	sessions session.Store
	idem     idempotency.Store
	notifier notify.Publisher
	charges  ChargeLookup
	metrics  *Metrics
}

// NewReconciler creates a webhook reconciler. charges may be nil when no
// charge-to-intent lookup is available.
func NewReconciler(sessions session.Store, idem idempotency.Store, notifier notify.Publisher, charges ChargeLookup, metrics *Metrics) *Reconciler {
	if notifier == nil {
		notifier = notify.NoopPublisher{}
	}
	return &Reconciler{
		sessions: sessions,
		idem:     idem,
		notifier: notifier,
		charges:  charges,
		metrics:  metrics,
	}
}

// Apply processes one verified provider event. Replays of the same event id
// are no-ops.
func (r *Reconciler) Apply(ctx context.Context, event ProviderEvent) error {
	key := "evt:" + event.ID
	won, err := r.idem.TryBegin(ctx, key)
	if err != nil {
		return err
	}
	if !won {
		r.metrics.IncWebhookEvents(event.Type, WebhookOutcomeDuplicate)
		slog.InfoContext(ctx, "duplicate provider event ignored", "event_id", event.ID, "event_type", event.Type)
		return nil
	}

	outcome := r.dispatch(ctx, event)
	r.metrics.IncWebhookEvents(event.Type, outcome)

	if err := r.idem.Commit(ctx, key, eventDedupeSentinel); err != nil {
		slog.ErrorContext(ctx, "failed to commit event dedupe record", "event_id", event.ID, "error", err)
	}
	return nil
}

func (r *Reconciler) dispatch(ctx context.Context, event ProviderEvent) string {
	switch event.Type {
	case EventPaymentIntentProcessing:
		return r.applyPaymentIntent(ctx, event, PaymentStatusProcessing)
	case EventPaymentIntentSucceeded:
		return r.applyPaymentIntent(ctx, event, PaymentStatusSucceeded)
	case EventPaymentIntentFailed:
		return r.applyPaymentIntent(ctx, event, PaymentStatusFailed)
	case EventChargeRefunded:
		return r.applyRefund(ctx, event)
	case EventChargeDisputeCreated:
		return r.applyDispute(ctx, event, session.DisputeOpen)
	case EventChargeDisputeClosed:
		return r.applyDispute(ctx, event, session.DisputeClosed)
	case EventSharedPaymentTokenUsed:
		slog.InfoContext(ctx, "shared payment token used", "event_id", event.ID)
		return WebhookOutcomeIgnored
	default:
		slog.DebugContext(ctx, "unhandled provider event type", "event_id", event.ID, "event_type", event.Type)
		return WebhookOutcomeIgnored
	}
}

func (r *Reconciler) applyPaymentIntent(ctx context.Context, event ProviderEvent, status string) string {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Object, &intent); err != nil || intent.ID == "" {
		slog.WarnContext(ctx, "malformed payment intent event", "event_id", event.ID, "error", err)
		return WebhookOutcomeIgnored
	}

	return r.mergeByIntent(ctx, event, intent.ID, func(s *session.Session) {
		s.PaymentStatus = status
		if status == PaymentStatusFailed {
			s.FailureMessage = failureMessage(&intent)
		}
	})
}

// failureMessage extracts the most specific decline reason the intent
// carries.
func failureMessage(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	if intent.CancellationReason != "" {
		return string(intent.CancellationReason)
	}
	return string(intent.Status)
}

func (r *Reconciler) applyRefund(ctx context.Context, event ProviderEvent) string {
	var ch stripe.Charge
	if err := json.Unmarshal(event.Object, &ch); err != nil || ch.ID == "" {
		slog.WarnContext(ctx, "malformed charge event", "event_id", event.ID, "error", err)
		return WebhookOutcomeIgnored
	}
	if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
		slog.WarnContext(ctx, "refund event without payment intent", "event_id", event.ID, "charge_id", ch.ID)
		return WebhookOutcomeIgnored
	}

	// Refunded counts as full only when the whole amount came back; a
	// flagged charge with a smaller refunded amount is still partial.
	refundStatus := session.RefundNone
	switch {
	case ch.Refunded && ch.AmountRefunded >= ch.Amount:
		refundStatus = session.RefundRefunded
	case ch.AmountRefunded > 0:
		refundStatus = session.RefundPartial
	}

	return r.mergeByIntent(ctx, event, ch.PaymentIntent.ID, func(s *session.Session) {
		s.RefundStatus = refundStatus
		s.RefundAmount = ch.AmountRefunded
		s.ChargeID = ch.ID
	})
}

func (r *Reconciler) applyDispute(ctx context.Context, event ProviderEvent, status string) string {
	var dispute stripe.Dispute
	if err := json.Unmarshal(event.Object, &dispute); err != nil || dispute.ID == "" {
		slog.WarnContext(ctx, "malformed dispute event", "event_id", event.ID, "error", err)
		return WebhookOutcomeIgnored
	}

	intentID := ""
	if dispute.PaymentIntent != nil {
		intentID = dispute.PaymentIntent.ID
	}
	chargeID := ""
	if dispute.Charge != nil {
		chargeID = dispute.Charge.ID
	}

	if intentID == "" && chargeID != "" && r.charges != nil {
		resolved, err := r.charges.PaymentIntentForCharge(ctx, chargeID)
		if err != nil {
			slog.WarnContext(ctx, "failed to resolve charge to payment intent",
				"event_id", event.ID, "charge_id", chargeID, "error", err)
			return WebhookOutcomeIgnored
		}
		intentID = resolved
	}
	if intentID == "" {
		slog.WarnContext(ctx, "dispute event without resolvable payment intent", "event_id", event.ID, "dispute_id", dispute.ID)
		return WebhookOutcomeIgnored
	}

	return r.mergeByIntent(ctx, event, intentID, func(s *session.Session) {
		s.DisputeStatus = status
		s.DisputeID = dispute.ID
		if chargeID != "" {
			s.ChargeID = chargeID
		}
	})
}

// mergeByIntent looks up the session by payment intent, applies the merge,
// stores the rebuilt record, and notifies. A missing session is an expected
// outcome for unrelated or historical events and is acknowledged.
func (r *Reconciler) mergeByIntent(ctx context.Context, event ProviderEvent, intentID string, merge func(*session.Session)) string {
	s, err := r.sessions.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			slog.InfoContext(ctx, "no session for provider event",
				"event_id", event.ID, "event_type", event.Type, "payment_intent_id", intentID)
			return WebhookOutcomeNoSession
		}
		slog.ErrorContext(ctx, "failed to look up session for event", "event_id", event.ID, "error", err)
		return WebhookOutcomeIgnored
	}

	merge(s)
	s.UpdatedAt = time.Now().UTC()

	if err := r.sessions.Put(ctx, s); err != nil {
		slog.ErrorContext(ctx, "failed to store session after event", "event_id", event.ID, "session_id", s.ID, "error", err)
		return WebhookOutcomeIgnored
	}

	r.notifier.Publish(ctx, notify.EventOrderUpdated, s)
	slog.InfoContext(ctx, "provider event applied",
		"event_id", event.ID, "event_type", event.Type, "session_id", s.ID)
	return WebhookOutcomeApplied
}
