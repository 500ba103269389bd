package api

import (
	"encoding/json"
	"net/http"

	"github.com/chennuo2233-png/acp-checkout/internal/checkout"
)

// IdempotencyKeyHeader carries the caller-chosen idempotency key on mutating
// verbs. Optional; without it repeated calls re-execute.
const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutHandlers holds dependencies for checkout session HTTP handlers.
type CheckoutHandlers struct {
	engine *checkout.Engine
}

// NewCheckoutHandlers creates a new CheckoutHandlers instance.
func NewCheckoutHandlers(engine *checkout.Engine) *CheckoutHandlers {
	return &CheckoutHandlers{engine: engine}
}

// Register mounts the checkout session routes on the mux.
func (h *CheckoutHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /checkout_sessions", h.Create)
	mux.HandleFunc("GET /checkout_sessions/{id}", h.Get)
	mux.HandleFunc("POST /checkout_sessions/{id}", h.Update)
	mux.HandleFunc("POST /checkout_sessions/{id}/complete", h.Complete)
	mux.HandleFunc("POST /checkout_sessions/{id}/cancel", h.Cancel)
}

// Create handles POST /checkout_sessions.
func (h *CheckoutHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkout.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	s, err := h.engine.Create(ctx, req)
	if err != nil {
		writeEngineError(w, ctx, err)
		return
	}
	WriteJSON(w, ctx, http.StatusCreated, s)
}

// Get handles GET /checkout_sessions/{id}.
func (h *CheckoutHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, err := h.engine.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, ctx, err)
		return
	}
	WriteJSON(w, ctx, http.StatusOK, s)
}

// Update handles POST /checkout_sessions/{id}.
func (h *CheckoutHandlers) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkout.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	s, err := h.engine.Update(ctx, r.PathValue("id"), req, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		writeEngineError(w, ctx, err)
		return
	}
	WriteJSON(w, ctx, http.StatusOK, s)
}

// Complete handles POST /checkout_sessions/{id}/complete.
func (h *CheckoutHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkout.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	s, err := h.engine.Complete(ctx, r.PathValue("id"), req, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		writeEngineError(w, ctx, err)
		return
	}
	WriteJSON(w, ctx, http.StatusOK, s)
}

// Cancel handles POST /checkout_sessions/{id}/cancel.
func (h *CheckoutHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, err := h.engine.Cancel(ctx, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, ctx, err)
		return
	}
	WriteJSON(w, ctx, http.StatusOK, s)
}
