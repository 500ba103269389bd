package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/chennuo2233-png/acp-checkout/internal/checkout"
)

// maxWebhookBodyBytes bounds the webhook payload size.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandlers holds dependencies for provider webhook HTTP handlers.
type WebhookHandlers struct {
	webhookSecret string
	tolerance     time.Duration
	reconciler    *checkout.Reconciler
}

// NewWebhookHandlers creates a new WebhookHandlers instance. tolerance bounds
// the accepted age of the signed timestamp; zero selects the provider SDK
// default.
func NewWebhookHandlers(webhookSecret string, tolerance time.Duration, reconciler *checkout.Reconciler) *WebhookHandlers {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &WebhookHandlers{
		webhookSecret: webhookSecret,
		tolerance:     tolerance,
		reconciler:    reconciler,
	}
}

// Register mounts the webhook route on the mux.
func (h *WebhookHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /stripe/webhook", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes Stripe webhook events with signature
// verification. Signature failures return 400 so the provider redelivers;
// every verified event is acknowledged with 200 regardless of whether it
// matched a session.
// POST /stripe/webhook
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}

	event, err := webhook.ConstructEventWithTolerance(body, signature, h.webhookSecret, h.tolerance)
	if err != nil {
		slog.WarnContext(ctx, "webhook signature verification failed", "error", err)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid signature")
		return
	}

	slog.InfoContext(ctx, "webhook event received", "event_type", event.Type, "event_id", event.ID)

	err = h.reconciler.Apply(ctx, checkout.ProviderEvent{
		ID:     event.ID,
		Type:   string(event.Type),
		Object: event.Data.Raw,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to process webhook event", "event_id", event.ID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	w.WriteHeader(http.StatusOK)
}
