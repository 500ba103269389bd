package checkout

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chennuo2233-png/acp-checkout/internal/session"
)

// FulfillmentOptionStandardID identifies the standard shipping option.
const FulfillmentOptionStandardID = "fulfillment_option_standard"

// Pricing defaults.
const (
	// DefaultTaxRateBPS is the tax rate in basis points (10%).
	DefaultTaxRateBPS = 1000

	// DefaultShipStandardCents is the standard shipping cost.
	DefaultShipStandardCents = 100

	// defaultUnitPriceCents is the fallback unit price for items the catalog
	// cannot resolve.
	defaultUnitPriceCents = 100

	// defaultCurrency applies when neither the request nor the catalog
	// names a currency.
	defaultCurrency = "usd"
)

// BuilderConfig holds the pricing knobs and merchant links the builder bakes
// into every session.
type BuilderConfig struct {
	TaxRateBPS         int64
	ShipStandardCents  int64
	StripeAccountID    string
	OrderPermalinkBase string
	TermsOfUseURL      string
	PrivacyPolicyURL   string
	ReturnPolicyURL    string
}

// Builder deterministically derives a full session from a cart-and-address
// request. Line items and totals are always rebuilt wholesale; nothing is
// patched in place.
type Builder struct {
	cfg BuilderConfig

	// now is injectable for tests.
	now func() time.Time
}

// NewBuilder creates a new session builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{cfg: cfg, now: time.Now}
}

// Build constructs a complete session from the request. Status is derived
// solely from the presence of a fulfillment address: tax and shipping need an
// address, so an address-less session is not ready for payment.
func (b *Builder) Build(sessionID string, req CreateRequest) *session.Session {
	now := b.now().UTC()
	hasAddress := req.FulfillmentAddress != nil

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	s := &session.Session{
		ID:        sessionID,
		Currency:  currency,
		Messages:  []session.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if hasAddress {
		s.Status = session.StatusReadyForPayment
		addr := *req.FulfillmentAddress
		s.FulfillmentAddress = &addr
	} else {
		s.Status = session.StatusNotReadyForPayment
	}

	lineItems := make([]session.LineItem, 0, len(req.Items))
	var itemsBase int64
	for _, item := range req.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		unit := int64(defaultUnitPriceCents)
		if item.UnitPriceCents != nil {
			unit = *item.UnitPriceCents
		}

		base := unit * qty
		var tax int64
		if hasAddress {
			tax = b.taxOn(base)
		}

		lineItems = append(lineItems, session.LineItem{
			ID:         "li_" + uuid.New().String(),
			Item:       session.ItemRef{ID: item.ID, Quantity: qty},
			BaseAmount: base,
			Discount:   0,
			Subtotal:   base,
			Tax:        tax,
			Total:      base + tax,
		})
		itemsBase += base
	}
	s.LineItems = lineItems

	s.FulfillmentOptions = []session.FulfillmentOption{}
	if hasAddress {
		// Shipping is not taxed.
		s.FulfillmentOptions = append(s.FulfillmentOptions, session.FulfillmentOption{
			Type:                 "shipping",
			ID:                   FulfillmentOptionStandardID,
			Title:                "Standard",
			Subtitle:             "Arrives in 4-5 days",
			Carrier:              "USPS",
			EarliestDeliveryTime: now.Add(4 * 24 * time.Hour).Format(time.RFC3339),
			LatestDeliveryTime:   now.Add(6 * 24 * time.Hour).Format(time.RFC3339),
			Subtotal:             b.cfg.ShipStandardCents,
			Tax:                  0,
			Total:                b.cfg.ShipStandardCents,
		})

		s.FulfillmentOptionID = FulfillmentOptionStandardID
		if req.FulfillmentOptionID != "" {
			s.FulfillmentOptionID = req.FulfillmentOptionID
		}
	}

	var taxTotal, fulfillmentTotal int64
	if hasAddress {
		taxTotal = b.taxOn(itemsBase)
		fulfillmentTotal = b.cfg.ShipStandardCents
	}
	total := itemsBase + taxTotal + fulfillmentTotal

	totals := []session.Total{
		{Type: session.TotalItemsBaseAmount, DisplayText: "Item(s) total", Amount: itemsBase},
		{Type: session.TotalSubtotal, DisplayText: "Subtotal", Amount: itemsBase},
		{Type: session.TotalTax, DisplayText: "Tax", Amount: taxTotal},
	}
	if hasAddress {
		totals = append(totals, session.Total{Type: session.TotalFulfillment, DisplayText: "Fulfillment", Amount: fulfillmentTotal})
	}
	totals = append(totals, session.Total{Type: session.TotalTotal, DisplayText: "Total", Amount: total})
	s.Totals = totals

	s.PaymentProvider = &session.PaymentProvider{
		Provider:                "stripe",
		StripeAccountID:         b.cfg.StripeAccountID,
		SupportedPaymentMethods: []string{"card"},
	}

	s.Links = []session.Link{}
	if b.cfg.TermsOfUseURL != "" {
		s.Links = append(s.Links, session.Link{Type: "terms_of_use", URL: b.cfg.TermsOfUseURL})
	}
	if b.cfg.PrivacyPolicyURL != "" {
		s.Links = append(s.Links, session.Link{Type: "privacy_policy", URL: b.cfg.PrivacyPolicyURL})
	}
	if b.cfg.ReturnPolicyURL != "" {
		s.Links = append(s.Links, session.Link{Type: "return_policy", URL: b.cfg.ReturnPolicyURL})
	}

	return s
}

// MarkCompleted attaches a generated order and flips the session to completed.
func (b *Builder) MarkCompleted(s *session.Session) {
	orderID := "ord_" + uuid.New().String()
	s.Order = &session.Order{
		ID:                orderID,
		CheckoutSessionID: s.ID,
		PermalinkURL:      strings.TrimSuffix(b.cfg.OrderPermalinkBase, "/") + "/" + orderID,
	}
	s.Status = session.StatusCompleted
	s.UpdatedAt = b.now().UTC()
}

func (b *Builder) taxOn(base int64) int64 {
	return int64(math.Round(float64(base) * float64(b.cfg.TaxRateBPS) / 10000.0))
}
