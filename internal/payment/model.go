// Package payment provides the payment gateway adapter used to charge a
// checkout session's payable amount.
package payment

// Charge outcome statuses. A declined charge is a result, not an error;
// only transport-level faults surface as errors from the gateway.
const (
	StatusSucceeded     = "succeeded"
	StatusPaymentFailed = "payment_failed"
)

// ChargeParams carries everything the gateway needs for one charge attempt.
type ChargeParams struct {
	// Token is the payment method token. In Stripe mode this must be a
	// shared payment token (spt_...).
	Token string

	// AmountCents is the payable amount in minor currency units.
	AmountCents int64

	// Currency is the lowercase ISO currency code.
	Currency string

	// IdempotencyKey is the caller-supplied key, passed through so the
	// provider itself does not double-charge on transport-level retries.
	IdempotencyKey string

	// ConnectAccountID optionally routes the charge to a connected
	// merchant account.
	ConnectAccountID string

	// Metadata is attached to the provider-side payment object.
	Metadata map[string]string
}

// ChargeResult is the settlement outcome of a charge attempt.
type ChargeResult struct {
	// Status is StatusSucceeded or StatusPaymentFailed.
	Status string

	// PaymentIntentID is the provider-assigned payment reference, set on
	// success. Webhook events correlate back to the session through it.
	PaymentIntentID string

	// PaymentIntentStatus is the provider's own status string.
	PaymentIntentStatus string

	// FailureMessage is a human-readable decline reason, set on failure.
	FailureMessage string
}

// Succeeded reports whether the charge settled.
func (r *ChargeResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}
