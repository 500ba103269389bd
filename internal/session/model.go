// Package session provides the checkout session model and its storage.
package session

import "time"

// Session status values. A session has exactly one status at any time.
// StatusPaymentFailed is part of the wire enum for provider parity; the
// lifecycle keeps a session with a declined charge in ready_for_payment, so
// no code path here writes it.
const (
	StatusNotReadyForPayment = "not_ready_for_payment"
	StatusReadyForPayment    = "ready_for_payment"
	StatusCompleted          = "completed"
	StatusCanceled           = "canceled"
	StatusPaymentFailed      = "payment_failed"
)

// Totals row types, in the order they appear in Session.Totals.
const (
	TotalItemsBaseAmount = "items_base_amount"
	TotalSubtotal        = "subtotal"
	TotalTax             = "tax"
	TotalFulfillment     = "fulfillment"
	TotalTotal           = "total"
)

// Refund status values derived from provider refund events.
const (
	RefundNone     = "none"
	RefundPartial  = "partial"
	RefundRefunded = "refunded"
)

// Dispute status values derived from provider dispute events.
const (
	DisputeOpen   = "open"
	DisputeClosed = "closed"
)

// MessageTypePaymentError marks a user-visible payment failure message.
const MessageTypePaymentError = "payment_error"

// Address is a fulfillment address supplied by the commerce agent.
type Address struct {
	Name       string `json:"name,omitempty"`
	LineOne    string `json:"line_one,omitempty"`
	LineTwo    string `json:"line_two,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// ItemRef identifies a catalog item and quantity inside a line item.
type ItemRef struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
}

// LineItem is a fully priced cart line. Line items are recomputed wholesale
// on every update; they are never patched in place.
type LineItem struct {
	ID         string  `json:"id"`
	Item       ItemRef `json:"item"`
	BaseAmount int64   `json:"base_amount"`
	Discount   int64   `json:"discount"`
	Subtotal   int64   `json:"subtotal"`
	Tax        int64   `json:"tax"`
	Total      int64   `json:"total"`
}

// FulfillmentOption is a shipping choice offered once an address is known.
type FulfillmentOption struct {
	Type                 string `json:"type"`
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Subtitle             string `json:"subtitle,omitempty"`
	Carrier              string `json:"carrier,omitempty"`
	EarliestDeliveryTime string `json:"earliest_delivery_time,omitempty"`
	LatestDeliveryTime   string `json:"latest_delivery_time,omitempty"`
	Subtotal             int64  `json:"subtotal"`
	Tax                  int64  `json:"tax"`
	Total                int64  `json:"total"`
}

// Total is a named amount row. The row with Type == TotalTotal is the
// payable amount.
type Total struct {
	Type        string `json:"type"`
	DisplayText string `json:"display_text"`
	Amount      int64  `json:"amount"`
}

// PaymentProvider describes how the session can be paid.
type PaymentProvider struct {
	Provider                string   `json:"provider"`
	StripeAccountID         string   `json:"stripe_account_id,omitempty"`
	SupportedPaymentMethods []string `json:"supported_payment_methods"`
}

// Message is a user-visible notice appended to the session.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Link is a policy link surfaced with the session.
type Link struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Buyer holds best-effort buyer identity. Fields are only ever filled in,
// never overwritten, and an email is never fabricated.
type Buyer struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Order is attached to a session after successful completion.
type Order struct {
	ID                string `json:"id"`
	CheckoutSessionID string `json:"checkout_session_id"`
	PermalinkURL      string `json:"permalink_url"`
}

// Session is the checkout aggregate root. Line items and totals are derived
// from the most recently supplied cart and address. The payment_* and
// refund/dispute fields are owned by the completion flow and the webhook
// reconciler; the update flow never writes them.
type Session struct {
	ID                  string              `json:"id"`
	Status              string              `json:"status"`
	Currency            string              `json:"currency"`
	LineItems           []LineItem          `json:"line_items"`
	FulfillmentAddress  *Address            `json:"fulfillment_address,omitempty"`
	FulfillmentOptionID string              `json:"fulfillment_option_id,omitempty"`
	FulfillmentOptions  []FulfillmentOption `json:"fulfillment_options"`
	Totals              []Total             `json:"totals"`
	PaymentProvider     *PaymentProvider    `json:"payment_provider,omitempty"`
	Messages            []Message           `json:"messages"`
	Links               []Link              `json:"links"`
	Buyer               *Buyer              `json:"buyer,omitempty"`

	PaymentStatus   string `json:"payment_status,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	FailureMessage  string `json:"failure_message,omitempty"`
	RefundStatus    string `json:"refund_status,omitempty"`
	RefundAmount    int64  `json:"refund_amount,omitempty"`
	ChargeID        string `json:"charge_id,omitempty"`
	DisputeStatus   string `json:"dispute_status,omitempty"`
	DisputeID       string `json:"dispute_id,omitempty"`

	Order *Order `json:"order,omitempty"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// TotalAmount returns the payable amount from the totals rows, or 0 when no
// total row is present.
func (s *Session) TotalAmount() int64 {
	for _, t := range s.Totals {
		if t.Type == TotalTotal {
			return t.Amount
		}
	}
	return 0
}

// AppendMessage appends a user-visible message to the session.
func (s *Session) AppendMessage(msgType, text string) {
	s.Messages = append(s.Messages, Message{Type: msgType, Text: text})
}

// IsTerminal reports whether the session is in a terminal state.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusCanceled
}

// Clone returns a deep copy of the session so callers can never alias
// store-held state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s

	if s.LineItems != nil {
		copied.LineItems = make([]LineItem, len(s.LineItems))
		copy(copied.LineItems, s.LineItems)
	}
	if s.FulfillmentOptions != nil {
		copied.FulfillmentOptions = make([]FulfillmentOption, len(s.FulfillmentOptions))
		copy(copied.FulfillmentOptions, s.FulfillmentOptions)
	}
	if s.Totals != nil {
		copied.Totals = make([]Total, len(s.Totals))
		copy(copied.Totals, s.Totals)
	}
	if s.Messages != nil {
		copied.Messages = make([]Message, len(s.Messages))
		copy(copied.Messages, s.Messages)
	}
	if s.Links != nil {
		copied.Links = make([]Link, len(s.Links))
		copy(copied.Links, s.Links)
	}
	if s.FulfillmentAddress != nil {
		addr := *s.FulfillmentAddress
		copied.FulfillmentAddress = &addr
	}
	if s.PaymentProvider != nil {
		pp := *s.PaymentProvider
		if s.PaymentProvider.SupportedPaymentMethods != nil {
			pp.SupportedPaymentMethods = make([]string, len(s.PaymentProvider.SupportedPaymentMethods))
			copy(pp.SupportedPaymentMethods, s.PaymentProvider.SupportedPaymentMethods)
		}
		copied.PaymentProvider = &pp
	}
	if s.Buyer != nil {
		buyer := *s.Buyer
		copied.Buyer = &buyer
	}
	if s.Order != nil {
		order := *s.Order
		copied.Order = &order
	}

	return &copied
}
