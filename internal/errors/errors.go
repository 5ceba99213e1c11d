package errors

import (
	"errors"
	"fmt"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateEntry indicates a unique constraint violation
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConnected indicates the scope has no usable OAuth refresh token
	ErrNotConnected = errors.New("scope is not connected")

	// ErrAuthRevoked indicates the provider rejected the stored credentials
	ErrAuthRevoked = errors.New("provider authorization revoked")

	// ErrTicketNotFound indicates the ticket was not found
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrClientNotFound indicates the client was not found
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidTransition indicates a ticket status change that the state
	// machine does not permit
	ErrInvalidTransition = errors.New("invalid ticket status transition")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")
)

// Error codes for API responses
const (
	CodeNotFound          = "NOT_FOUND"
	CodeDuplicateEntry    = "DUPLICATE_ENTRY"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotConnected      = "NOT_CONNECTED"
	CodeAuthRevoked       = "AUTH_REVOKED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInternalError     = "INTERNAL_ERROR"
)

// GetErrorCode maps an error to its API error code
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTicketNotFound), errors.Is(err, ErrClientNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicateEntry):
		return CodeDuplicateEntry
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNotConnected):
		return CodeNotConnected
	case errors.Is(err, ErrAuthRevoked):
		return CodeAuthRevoked
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternalError
	}
}

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// ProviderError carries the HTTP status and body returned by the external
// provider so callers can distinguish auth failures from transient errors.
type ProviderError struct {
	Operation  string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed with status %d", e.Operation, e.StatusCode)
}

// IsAuth reports whether the provider response means the stored token or
// refresh token is no longer accepted.
func (e *ProviderError) IsAuth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// NewProviderError creates a ProviderError for the given operation
func NewProviderError(operation string, statusCode int, body string) *ProviderError {
	return &ProviderError{
		Operation:  operation,
		StatusCode: statusCode,
		Body:       body,
	}
}
