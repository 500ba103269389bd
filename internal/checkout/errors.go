// Package checkout implements the checkout session lifecycle engine and the
// webhook reconciler.
package checkout

// Error codes classifying lifecycle failures. Handlers map these onto HTTP
// status codes.
const (
	// CodeNotFound indicates an unknown session id. Terminal, no retry.
	CodeNotFound = "not_found"

	// CodeConflict indicates the idempotency key is still in progress; the
	// caller should retry later with the same key.
	CodeConflict = "conflict"

	// CodeInvalidRequest indicates a request the session's state or content
	// cannot satisfy. Terminal, surfaced to the caller.
	CodeInvalidRequest = "invalid_request"

	// CodeInternal indicates an unexpected failure during the operation.
	CodeInternal = "internal_error"
)

// Error is a classified lifecycle failure.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func notFoundError() *Error {
	return &Error{Code: CodeNotFound, Message: "checkout session not found"}
}

func conflictError(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

func invalidRequestError(message string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: message}
}

func internalError(message string) *Error {
	return &Error{Code: CodeInternal, Message: message}
}
