package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chennuo2233-png/acp-checkout/internal/catalog"
	"github.com/chennuo2233-png/acp-checkout/internal/idempotency"
	"github.com/chennuo2233-png/acp-checkout/internal/notify"
	"github.com/chennuo2233-png/acp-checkout/internal/payment"
	"github.com/chennuo2233-png/acp-checkout/internal/session"
)

// Short-poll defaults used when a caller loses the idempotency race and waits
// for the winner's committed result.
const (
	DefaultPollAttempts = 10
	DefaultPollInterval = 100 * time.Millisecond
)

// Deps holds the collaborators of the lifecycle engine.
type Deps struct {
	Sessions    session.Store
	Idempotency idempotency.Store
	Catalog     catalog.Repository
	Builder     *Builder
	Gateway     payment.Gateway
	Notifier    notify.Publisher
	Metrics     *Metrics

	// ConnectAccountID optionally routes charges to a connected merchant
	// account.
	ConnectAccountID string

	// PollAttempts and PollInterval bound the short-poll wait for a
	// concurrent winner's result. Zero values select the defaults.
	PollAttempts int
	PollInterval time.Duration
}

// Engine drives the checkout session state machine. Mutating operations with
// an idempotency key are executed at most once per key; repeated calls replay
// the committed response, including committed error responses.
type Engine struct {
	sessions    session.Store
	idem        idempotency.Store
	catalog     catalog.Repository
	builder     *Builder
	gateway     payment.Gateway
	notifier    notify.Publisher
	metrics     *Metrics
	connectAcct string

	pollAttempts int
	pollInterval time.Duration

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates a lifecycle engine from its dependencies.
func NewEngine(deps Deps) *Engine {
	e := &Engine{
		sessions:     deps.Sessions,
		idem:         deps.Idempotency,
		catalog:      deps.Catalog,
		builder:      deps.Builder,
		gateway:      deps.Gateway,
		notifier:     deps.Notifier,
		metrics:      deps.Metrics,
		connectAcct:  deps.ConnectAccountID,
		pollAttempts: deps.PollAttempts,
		pollInterval: deps.PollInterval,
		sleep:        sleepCtx,
	}
	if e.notifier == nil {
		e.notifier = notify.NoopPublisher{}
	}
	if e.pollAttempts <= 0 {
		e.pollAttempts = DefaultPollAttempts
	}
	if e.pollInterval <= 0 {
		e.pollInterval = DefaultPollInterval
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// idemResult is the serialized response cached under an idempotency key.
// Exactly one of Session or ErrorCode is set.
type idemResult struct {
	Session      *session.Session `json:"session,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

func encodeResult(s *session.Session, opErr *Error) []byte {
	res := idemResult{Session: s}
	if opErr != nil {
		res.Session = nil
		res.ErrorCode = opErr.Code
		res.ErrorMessage = opErr.Message
	}
	data, err := json.Marshal(res)
	if err != nil {
		// The result envelope only holds plain data types; this cannot
		// happen with a well-formed session.
		slog.Error("failed to encode idempotency result", "error", err)
		return nil
	}
	return data
}

func decodeResult(data []byte) (*session.Session, error) {
	var res idemResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, internalError("corrupt idempotency record")
	}
	if res.ErrorCode != "" {
		return nil, &Error{Code: res.ErrorCode, Message: res.ErrorMessage}
	}
	return res.Session, nil
}

// Create builds a new session from the supplied cart and address. Create
// accepts no idempotency key; repeated calls produce distinct sessions.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*session.Session, error) {
	items, currency := e.enrichItems(req.Items, req.Currency)
	req.Items = items
	req.Currency = currency

	s := e.builder.Build("cs_"+uuid.New().String(), req)
	if err := e.sessions.Put(ctx, s); err != nil {
		slog.ErrorContext(ctx, "failed to store session", "session_id", s.ID, "error", err)
		return nil, internalError("failed to store session")
	}

	e.metrics.IncSessions(OperationCreate)
	slog.InfoContext(ctx, "checkout session created", "session_id", s.ID, "status", s.Status)
	return s, nil
}

// Get returns the current session record without mutating it.
func (e *Engine) Get(ctx context.Context, id string) (*session.Session, error) {
	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, notFoundError()
		}
		return nil, internalError("failed to load session")
	}
	return s, nil
}

// Update merges the request into the session and rebuilds it wholesale. When
// the request omits items, the existing cart is preserved; an explicit empty
// items list clears it.
func (e *Engine) Update(ctx context.Context, id string, req UpdateRequest, idemKey string) (*session.Session, error) {
	return e.keyed(ctx, idemKey, "update:"+id+":"+idemKey, func() (*session.Session, *Error) {
		return e.doUpdate(ctx, id, req)
	})
}

func (e *Engine) doUpdate(ctx context.Context, id string, req UpdateRequest) (*session.Session, *Error) {
	cur, err := e.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, notFoundError()
		}
		return nil, internalError("failed to load session")
	}
	if cur.IsTerminal() {
		return nil, invalidRequestError("checkout session is " + cur.Status)
	}

	merged := mergeUpdate(cur, req)
	merged.Items, merged.Currency = e.enrichItems(merged.Items, merged.Currency)

	next := e.builder.Build(id, merged)
	carryOver(next, cur)

	if err := e.sessions.Put(ctx, next); err != nil {
		slog.ErrorContext(ctx, "failed to store session", "session_id", id, "error", err)
		return nil, internalError("failed to store session")
	}

	e.metrics.IncSessions(OperationUpdate)
	e.notifier.Publish(ctx, notify.EventOrderUpdated, next)
	return next, nil
}

// Complete charges the session's payable amount and, on success, marks the
// session completed with an attached order. A declined charge leaves the
// session in ready_for_payment with the failure reported inline on messages.
func (e *Engine) Complete(ctx context.Context, id string, req CompleteRequest, idemKey string) (*session.Session, error) {
	return e.keyed(ctx, idemKey, "complete:"+id+":"+idemKey, func() (*session.Session, *Error) {
		return e.doComplete(ctx, id, req, idemKey)
	})
}

func (e *Engine) doComplete(ctx context.Context, id string, req CompleteRequest, idemKey string) (*session.Session, *Error) {
	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, notFoundError()
		}
		return nil, internalError("failed to load session")
	}
	if s.Status != session.StatusReadyForPayment {
		return nil, invalidRequestError("checkout session is not ready for payment")
	}

	result, err := e.gateway.Charge(ctx, payment.ChargeParams{
		Token:            req.Token(),
		AmountCents:      s.TotalAmount(),
		Currency:         strings.ToLower(s.Currency),
		IdempotencyKey:   idemKey,
		ConnectAccountID: e.connectAcct,
		Metadata: map[string]string{
			"checkout_session_id": id,
			"source":              "agentic-checkout",
		},
	})
	if err != nil {
		e.metrics.IncCharges(OutcomeError)
		slog.ErrorContext(ctx, "payment gateway call failed", "session_id", id, "error", err)
		return nil, internalError("payment gateway unavailable")
	}

	if !result.Succeeded() {
		s.AppendMessage(session.MessageTypePaymentError, result.FailureMessage)
		s.UpdatedAt = time.Now().UTC()
		if err := e.sessions.Put(ctx, s); err != nil {
			slog.ErrorContext(ctx, "failed to store session", "session_id", id, "error", err)
			return nil, internalError("failed to store session")
		}
		e.metrics.IncCharges(OutcomeDeclined)
		slog.WarnContext(ctx, "payment declined", "session_id", id, "reason", result.FailureMessage)
		return s, nil
	}

	s.PaymentStatus = payment.StatusSucceeded
	s.PaymentIntentID = result.PaymentIntentID
	resolveBuyer(s, &req)
	e.builder.MarkCompleted(s)

	if err := e.sessions.Put(ctx, s); err != nil {
		slog.ErrorContext(ctx, "failed to store session", "session_id", id, "error", err)
		return nil, internalError("failed to store session")
	}

	e.metrics.IncCharges(OutcomeSucceeded)
	e.metrics.IncSessions(OperationComplete)
	e.notifier.Publish(ctx, notify.EventOrderCreated, s)
	slog.InfoContext(ctx, "checkout session completed",
		"session_id", id, "order_id", s.Order.ID, "payment_intent_id", s.PaymentIntentID)
	return s, nil
}

// Cancel transitions the session to canceled. Terminal sessions reject.
func (e *Engine) Cancel(ctx context.Context, id string) (*session.Session, error) {
	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, notFoundError()
		}
		return nil, internalError("failed to load session")
	}
	if s.IsTerminal() {
		return nil, conflictError("canceling a " + s.Status + " checkout session is not allowed")
	}

	s.Status = session.StatusCanceled
	s.UpdatedAt = time.Now().UTC()
	if err := e.sessions.Put(ctx, s); err != nil {
		slog.ErrorContext(ctx, "failed to store session", "session_id", id, "error", err)
		return nil, internalError("failed to store session")
	}

	e.metrics.IncSessions(OperationCancel)
	e.notifier.Publish(ctx, notify.EventOrderUpdated, s)
	slog.InfoContext(ctx, "checkout session canceled", "session_id", id)
	return s, nil
}

// keyed gates op behind the idempotency store when a key is supplied. The
// winner's committed result, success or error, is replayed to every other
// caller with the same key inside the record's validity window.
func (e *Engine) keyed(ctx context.Context, rawKey, scopedKey string, op func() (*session.Session, *Error)) (*session.Session, error) {
	if rawKey == "" {
		s, opErr := op()
		if opErr != nil {
			return nil, opErr
		}
		return s, nil
	}
	if err := idempotency.ValidateKey(rawKey); err != nil {
		return nil, invalidRequestError(err.Error())
	}

	if cached, ok, err := e.idem.GetIfReady(ctx, scopedKey); err != nil {
		return nil, internalError("idempotency store unavailable")
	} else if ok {
		return decodeResult(cached)
	}

	won, err := e.idem.TryBegin(ctx, scopedKey)
	if err != nil {
		return nil, internalError("idempotency store unavailable")
	}
	if !won {
		return e.awaitResult(ctx, scopedKey)
	}

	s, opErr := op()
	if data := encodeResult(s, opErr); data != nil {
		if err := e.idem.Commit(ctx, scopedKey, data); err != nil {
			slog.ErrorContext(ctx, "failed to commit idempotency result", "key", scopedKey, "error", err)
		}
	}
	if opErr != nil {
		return nil, opErr
	}
	return s, nil
}

// awaitResult short-polls for the winner's committed result after losing the
// idempotency race, and reports a conflict when the wait is exhausted.
func (e *Engine) awaitResult(ctx context.Context, scopedKey string) (*session.Session, error) {
	for i := 0; i < e.pollAttempts; i++ {
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			return nil, internalError("request canceled while waiting for in-flight operation")
		}
		cached, ok, err := e.idem.GetIfReady(ctx, scopedKey)
		if err != nil {
			return nil, internalError("idempotency store unavailable")
		}
		if ok {
			return decodeResult(cached)
		}
	}
	return nil, conflictError("operation with this idempotency key is still in progress")
}

// enrichItems fills missing unit prices from the catalog and resolves the
// session currency. Items the catalog cannot resolve keep their defaults.
func (e *Engine) enrichItems(items []ItemInput, currency string) ([]ItemInput, string) {
	if e.catalog == nil {
		return items, currency
	}
	enriched := make([]ItemInput, len(items))
	copy(enriched, items)
	for i := range enriched {
		if enriched[i].UnitPriceCents != nil {
			continue
		}
		price, err := e.catalog.FindPrice(enriched[i].ID)
		if err != nil {
			continue
		}
		unit := price.UnitCents
		enriched[i].UnitPriceCents = &unit
		if currency == "" {
			currency = price.Currency
		}
	}
	return enriched, currency
}

// mergeUpdate folds the update request over the current session into a full
// build request. Omitted items derive a minimal cart from the existing line
// items so an address-only update does not destroy the cart.
func mergeUpdate(cur *session.Session, req UpdateRequest) CreateRequest {
	merged := CreateRequest{
		Currency:            cur.Currency,
		FulfillmentAddress:  cur.FulfillmentAddress,
		FulfillmentOptionID: cur.FulfillmentOptionID,
	}
	if req.Currency != "" {
		merged.Currency = req.Currency
	}
	if req.FulfillmentAddress != nil {
		merged.FulfillmentAddress = req.FulfillmentAddress
	}
	if req.FulfillmentOptionID != "" {
		merged.FulfillmentOptionID = req.FulfillmentOptionID
	}

	if req.Items != nil {
		merged.Items = *req.Items
		return merged
	}
	merged.Items = make([]ItemInput, 0, len(cur.LineItems))
	for _, li := range cur.LineItems {
		qty := li.Item.Quantity
		if qty <= 0 {
			qty = 1
		}
		unit := li.BaseAmount / qty
		merged.Items = append(merged.Items, ItemInput{
			ID:             li.Item.ID,
			Quantity:       qty,
			UnitPriceCents: &unit,
		})
	}
	return merged
}

// carryOver preserves the fields an update must not touch: identity,
// creation time, buyer, accumulated messages, and everything owned by the
// payment flow and the webhook reconciler.
func carryOver(next, prev *session.Session) {
	next.CreatedAt = prev.CreatedAt
	next.Buyer = prev.Buyer
	if len(prev.Messages) > 0 {
		next.Messages = append([]session.Message{}, prev.Messages...)
	}
	next.PaymentStatus = prev.PaymentStatus
	next.PaymentIntentID = prev.PaymentIntentID
	next.FailureMessage = prev.FailureMessage
	next.RefundStatus = prev.RefundStatus
	next.RefundAmount = prev.RefundAmount
	next.ChargeID = prev.ChargeID
	next.DisputeStatus = prev.DisputeStatus
	next.DisputeID = prev.DisputeID
}

// resolveBuyer fills buyer identity best-effort on completion. Existing
// fields are never overwritten, a first name falls back to the first word of
// the fulfillment address name, and an email is never fabricated.
func resolveBuyer(s *session.Session, req *CompleteRequest) {
	buyer := session.Buyer{}
	if s.Buyer != nil {
		buyer = *s.Buyer
	}

	if req.Buyer != nil {
		if buyer.FirstName == "" {
			buyer.FirstName = req.Buyer.FirstName
		}
		if buyer.LastName == "" {
			buyer.LastName = req.Buyer.LastName
		}
		if buyer.Email == "" {
			buyer.Email = req.Buyer.Email
		}
	}
	if buyer.Email == "" {
		buyer.Email = req.Email
	}

	if buyer.FirstName == "" {
		addr := req.FulfillmentAddress
		if addr == nil {
			addr = s.FulfillmentAddress
		}
		if addr != nil && addr.Name != "" {
			buyer.FirstName = strings.Fields(addr.Name)[0]
		}
	}

	if buyer != (session.Buyer{}) {
		s.Buyer = &buyer
	}
}
