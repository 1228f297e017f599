package types

import "fmt"

// ErrorCode represents a unified error code across FlowCanvas.
type ErrorCode string

// Validation error codes. Validation failures are rejected before any
// mutation is applied; the graph is left unchanged.
const (
	ErrValidation    ErrorCode = "VALIDATION"
	ErrDuplicateName ErrorCode = "DUPLICATE_NAME"
	ErrInvalidName   ErrorCode = "INVALID_NAME"
	ErrReservedName  ErrorCode = "RESERVED_NAME"
	ErrSelfReference ErrorCode = "SELF_REFERENCE"
)

// Persistence error codes
const (
	ErrNotFound    ErrorCode = "NOT_FOUND"
	ErrConflict    ErrorCode = "CONFLICT"
	ErrTransport   ErrorCode = "TRANSPORT"
	ErrStoreClosed ErrorCode = "STORE_CLOSED"
	ErrInternal    ErrorCode = "INTERNAL"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`

	// Current and Expected carry version information for CONFLICT errors.
	Current  int64 `json:"current_version,omitempty"`
	Expected int64 `json:"expected_version,omitempty"`

	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == ErrConflict {
		return fmt.Sprintf("[%s] %s (current version %d, expected %d)", e.Code, e.Message, e.Current, e.Expected)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError creates a CONFLICT error carrying both version tokens.
// The message names the concurrent edit so callers can surface an
// actionable refresh-and-retry prompt.
func NewConflictError(current, expected int64) *Error {
	return &Error{
		Code:     ErrConflict,
		Message:  "a concurrent edit was saved first; refresh and retry",
		Current:  current,
		Expected: expected,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsCode checks whether err is a *Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	fe, ok := AsError(err)
	return ok && fe.Code == code
}

// IsConflict checks whether err represents a stale-write conflict.
func IsConflict(err error) bool {
	return IsCode(err, ErrConflict)
}

// IsNotFound checks whether err represents a missing graph or node.
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			return fe, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
