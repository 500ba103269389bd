// Package api provides HTTP handlers for the checkout API, including
// standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chennuo2233-png/acp-checkout/internal/checkout"
	"github.com/chennuo2233-png/acp-checkout/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeConflict indicates a conflict with the current state, such as
	// an idempotency key still in progress.
	ErrCodeConflict = "conflict"

	// ErrCodeInvalidRequest indicates input validation failure or a request
	// the session's state cannot satisfy.
	ErrCodeInvalidRequest = "invalid_request"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response and records the code
// for the logging middleware.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.SetErrorCode(ctx, code)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// WriteJSON writes a JSON success response with the given status code.
func WriteJSON(w http.ResponseWriter, ctx context.Context, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case checkout.CodeNotFound:
		return http.StatusNotFound
	case checkout.CodeConflict:
		return http.StatusConflict
	case checkout.CodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError converts a lifecycle engine error into an HTTP response.
func writeEngineError(w http.ResponseWriter, ctx context.Context, err error) {
	var opErr *checkout.Error
	if errors.As(err, &opErr) {
		WriteError(w, ctx, StatusCodeMapping(opErr.Code), opErr.Code, opErr.Message)
		return
	}
	WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "unexpected error")
}
