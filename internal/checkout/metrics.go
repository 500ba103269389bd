package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCheckoutSessionsTotal      = "checkout_sessions_total"
	MetricPaymentChargesTotal        = "payment_charges_total"
	MetricProviderWebhookEventsTotal = "provider_webhook_events_total"
)

// Operation constants for labeling session metrics.
const (
	OperationCreate   = "create"
	OperationUpdate   = "update"
	OperationComplete = "complete"
	OperationCancel   = "cancel"
)

// Outcome constants for labeling charge metrics.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeDeclined  = "declined"
	OutcomeError     = "error"
)

// Webhook event outcome constants.
const (
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeNoSession = "no_session"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeDuplicate = "duplicate"
)

// Metrics contains Prometheus metrics for the checkout lifecycle.
// All operations are thread-safe.
type Metrics struct {
	sessionsTotal *prometheus.CounterVec
	chargesTotal  *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCheckoutSessionsTotal,
				Help: "Total number of checkout session lifecycle operations by operation",
			},
			[]string{"operation"},
		),
		chargesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPaymentChargesTotal,
				Help: "Total number of payment charge attempts by outcome",
			},
			[]string{"outcome"},
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricProviderWebhookEventsTotal,
				Help: "Total number of provider webhook events by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.sessionsTotal,
		m.chargesTotal,
		m.webhookEvents,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncSessions increments the session operations counter.
func (m *Metrics) IncSessions(operation string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(operation).Inc()
}

// IncCharges increments the charge attempts counter.
func (m *Metrics) IncCharges(outcome string) {
	if m == nil {
		return
	}
	m.chargesTotal.WithLabelValues(outcome).Inc()
}

// IncWebhookEvents increments the provider webhook events counter.
func (m *Metrics) IncWebhookEvents(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}
