// Package payment provides the payment gateway adapter.
package payment

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Gateway charges a payment token for an amount. Implementations return a
// ChargeResult for definitive outcomes (including declines) and an error only
// for transport-level faults where the outcome is unknown.
type Gateway interface {
	Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error)
}

// StubGateway implements Gateway without calling a provider. It validates the
// request the same way the real gateway does and then settles successfully,
// which keeps integration environments working without provider credentials.
type StubGateway struct {
	seq atomic.Int64

	// now is injectable for tests.
	now func() time.Time
}

// NewStubGateway creates a new stub gateway.
func NewStubGateway() *StubGateway {
	return &StubGateway{now: time.Now}
}

// failResult builds a declined ChargeResult with the given reason.
func failResult(message string) *ChargeResult {
	return &ChargeResult{
		Status:         StatusPaymentFailed,
		FailureMessage: message,
	}
}

// validate applies the preconditions shared by all gateway implementations.
// Violations are declines, not errors: the caller reports them inline on the
// session.
func validate(params ChargeParams) *ChargeResult {
	if params.AmountCents <= 0 {
		return failResult(fmt.Sprintf("invalid amount: %d", params.AmountCents))
	}
	if params.Currency == "" {
		return failResult("missing currency")
	}
	return nil
}

// Charge settles the payment locally with a synthetic payment reference.
func (g *StubGateway) Charge(_ context.Context, params ChargeParams) (*ChargeResult, error) {
	if fail := validate(params); fail != nil {
		return fail, nil
	}

	id := fmt.Sprintf("pi_stub_%d_%d", g.now().UnixMilli(), g.seq.Add(1))
	return &ChargeResult{
		Status:              StatusSucceeded,
		PaymentIntentID:     id,
		PaymentIntentStatus: StatusSucceeded,
	}, nil
}
