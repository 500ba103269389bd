// Package payment provides Stripe integration for charging shared payment tokens.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/charge"
	"github.com/stripe/stripe-go/v81/paymentintent"
)

// sharedTokenPrefix is the required prefix for shared payment tokens.
const sharedTokenPrefix = "spt_"

// StripeGateway implements Gateway using the Stripe SDK. It creates and
// confirms a PaymentIntent in one call, passing the shared payment token
// through the shared_payment_granted_token extra param.
type StripeGateway struct {
	defaultConnectAccountID string
}

// NewStripeGateway creates a new Stripe gateway. The API key is installed
// globally for the SDK; defaultConnectAccountID optionally routes charges to
// a connected merchant when the caller does not name one.
func NewStripeGateway(apiKey, defaultConnectAccountID string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{defaultConnectAccountID: defaultConnectAccountID}
}

// Charge creates and confirms a PaymentIntent for the payable amount.
// Stripe-reported declines come back as payment_failed results; only
// transport faults (where the charge outcome is unknown) return an error.
func (g *StripeGateway) Charge(_ context.Context, params ChargeParams) (*ChargeResult, error) {
	if fail := validate(params); fail != nil {
		return fail, nil
	}
	if !strings.HasPrefix(params.Token, sharedTokenPrefix) {
		return failResult("a valid shared payment token (spt_...) is required"), nil
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(strings.ToLower(params.Currency)),
		Confirm:  stripe.Bool(true),
	}
	piParams.AddExtra("shared_payment_granted_token", params.Token)
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}
	piParams.AddMetadata("integration", "agentic-checkout")

	if params.IdempotencyKey != "" {
		piParams.SetIdempotencyKey(params.IdempotencyKey)
	}
	if acct := g.connectAccount(params.ConnectAccountID); acct != "" {
		piParams.SetStripeAccount(acct)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			// The API rejected the charge; the outcome is definitive.
			msg := stripeErr.Msg
			if msg == "" {
				msg = err.Error()
			}
			return failResult("stripe error: " + msg), nil
		}
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	// requires_capture counts as settled for authorize-then-capture flows.
	if pi.Status == stripe.PaymentIntentStatusSucceeded || pi.Status == stripe.PaymentIntentStatusRequiresCapture {
		return &ChargeResult{
			Status:              StatusSucceeded,
			PaymentIntentID:     pi.ID,
			PaymentIntentStatus: string(pi.Status),
		}, nil
	}

	failure := fmt.Sprintf("stripe payment intent status=%s", pi.Status)
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		failure += " | " + pi.LastPaymentError.Msg
	}
	return failResult(failure), nil
}

func (g *StripeGateway) connectAccount(override string) string {
	if override != "" {
		return override
	}
	return g.defaultConnectAccountID
}

// StripeChargeLookup resolves a charge id to its payment reference via the
// Stripe API. Dispute events only carry a charge id, so the reconciler needs
// this extra hop.
type StripeChargeLookup struct{}

// PaymentIntentForCharge returns the payment intent id behind a charge.
func (StripeChargeLookup) PaymentIntentForCharge(_ context.Context, chargeID string) (string, error) {
	ch, err := charge.Get(chargeID, &stripe.ChargeParams{})
	if err != nil {
		return "", fmt.Errorf("retrieve charge %s: %w", chargeID, err)
	}
	if ch.PaymentIntent == nil {
		return "", nil
	}
	return ch.PaymentIntent.ID, nil
}
