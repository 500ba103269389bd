// Package notify delivers session-changed notifications to the commerce
// agent's webhook endpoint. Delivery is fire-and-forget: failures are logged
// and never propagate to the caller.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/chennuo2233-png/acp-checkout/internal/session"
)

// Event types published to the commerce agent.
const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
)

// Publisher delivers a session-changed notification. Implementations must be
// best-effort and must not return delivery failures to the caller.
type Publisher interface {
	Publish(ctx context.Context, eventType string, s *session.Session)
}

// eventPayload is the wire shape of an outbound notification.
type eventPayload struct {
	EventType         string             `json:"event_type"`
	OccurredAt        string             `json:"occurred_at"`
	CheckoutSessionID string             `json:"checkout_session_id"`
	Order             *session.Order     `json:"order,omitempty"`
	Currency          string             `json:"currency"`
	Totals            []session.Total    `json:"totals"`
	LineItems         []session.LineItem `json:"line_items"`
	Links             []session.Link     `json:"links"`
}

// WebhookPublisher implements Publisher by POSTing signed JSON events.
// The Signature header carries base64(HMAC-SHA256(raw body)); a Timestamp
// header records send time in RFC 3339.
type WebhookPublisher struct {
	url    string
	secret string
	client *http.Client

	// now is injectable for tests.
	now func() time.Time
}

// NewWebhookPublisher creates a new webhook publisher. An empty url disables
// publishing (events are skipped with a debug log).
func NewWebhookPublisher(url, secret string) *WebhookPublisher {
	return &WebhookPublisher{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Publish sends one event. Failures are logged, never returned.
func (p *WebhookPublisher) Publish(ctx context.Context, eventType string, s *session.Session) {
	if p.url == "" {
		slog.DebugContext(ctx, "webhook url not configured, skipping event", "event_type", eventType)
		return
	}

	payload := eventPayload{
		EventType:         eventType,
		OccurredAt:        p.now().UTC().Format(time.RFC3339),
		CheckoutSessionID: s.ID,
		Order:             s.Order,
		Currency:          s.Currency,
		Totals:            s.Totals,
		LineItems:         s.LineItems,
		Links:             s.Links,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode event payload", "event_type", eventType, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		slog.ErrorContext(ctx, "failed to build event request", "event_type", eventType, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Timestamp", payload.OccurredAt)
	if p.secret != "" {
		req.Header.Set("Signature", Sign(body, p.secret))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "failed to deliver event", "event_type", eventType, "session_id", s.ID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.WarnContext(ctx, "event delivery rejected",
			"event_type", eventType,
			"session_id", s.ID,
			"status", resp.StatusCode)
		return
	}

	slog.DebugContext(ctx, "event delivered",
		"event_type", eventType,
		"session_id", s.ID,
		"status", resp.StatusCode)
}

// Sign computes base64(HMAC-SHA256(body)) with the given secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// NoopPublisher implements Publisher and discards all events.
type NoopPublisher struct{}

// Publish discards the event.
func (NoopPublisher) Publish(context.Context, string, *session.Session) {}
