package checkout

import "github.com/chennuo2233-png/acp-checkout/internal/session"

// ItemInput is one cart entry as supplied by the commerce agent. UnitPriceCents
// is optional; missing prices are enriched from the catalog before building.
type ItemInput struct {
	ID             string `json:"id"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents *int64 `json:"unit_price_cents,omitempty"`
}

// CreateRequest creates a new checkout session.
type CreateRequest struct {
	Items               []ItemInput      `json:"items"`
	Currency            string           `json:"currency,omitempty"`
	FulfillmentAddress  *session.Address `json:"fulfillment_address,omitempty"`
	FulfillmentOptionID string           `json:"fulfillment_option_id,omitempty"`
}

// UpdateRequest mutates an existing session. Items distinguishes omitted
// (nil: keep the current cart) from present-but-empty (clear the cart).
type UpdateRequest struct {
	Items               *[]ItemInput     `json:"items,omitempty"`
	Currency            string           `json:"currency,omitempty"`
	FulfillmentAddress  *session.Address `json:"fulfillment_address,omitempty"`
	FulfillmentOptionID string           `json:"fulfillment_option_id,omitempty"`
}

// PaymentData wraps a payment method token.
type PaymentData struct {
	PaymentMethodToken string `json:"payment_method_token"`
}

// CompleteRequest charges the session. The payment token is accepted in any
// of three request shapes for compatibility with agent integrations.
type CompleteRequest struct {
	Payment            *PaymentData     `json:"payment,omitempty"`
	PaymentData        *PaymentData     `json:"payment_data,omitempty"`
	PaymentMethodToken string           `json:"payment_method_token,omitempty"`
	Buyer              *session.Buyer   `json:"buyer,omitempty"`
	Email              string           `json:"email,omitempty"`
	FulfillmentAddress *session.Address `json:"fulfillment_address,omitempty"`
}

// Token resolves the payment method token, preferring the nested payment
// object, then payment_data, then the top-level field.
func (r *CompleteRequest) Token() string {
	if r.Payment != nil && r.Payment.PaymentMethodToken != "" {
		return r.Payment.PaymentMethodToken
	}
	if r.PaymentData != nil && r.PaymentData.PaymentMethodToken != "" {
		return r.PaymentData.PaymentMethodToken
	}
	return r.PaymentMethodToken
}
