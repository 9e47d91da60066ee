// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes grouped by the taxonomy the engines report.
const (
	// Infrastructure errors (5xx)
	CodeInternal       = "INTERNAL_ERROR"
	CodeDatabase       = "DATABASE_ERROR"
	CodePartialFailure = "PARTIAL_FAILURE"

	// Validation errors (400)
	CodeValidation        = "VALIDATION_ERROR"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"

	// State errors (400)
	CodeState                  = "STATE_ERROR"
	CodeAlreadyReceived        = "ALREADY_RECEIVED"
	CodeCannotReceiveCancelled = "CANNOT_RECEIVE_CANCELLED"

	// Conflicts (400): the caller should re-read and retry
	CodeConflict               = "CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the service.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewState creates an error for an operation the current lifecycle state forbids (400).
// An empty code falls back to CodeState.
func NewState(code, message string) *AppError {
	if code == "" {
		code = CodeState
	}
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInsufficientStock creates a stock shortage error
func NewInsufficientStock(productID string, requested, available string) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewConflict creates a conflict error (400).
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInventoryConflict is returned when a product row changed between read and write.
func NewInventoryConflict(product string) *AppError {
	return NewConflict(fmt.Sprintf("Inventory update conflict for %s. Please retry", product)).
		WithDetail("product", product)
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewIdempotencyConflict creates error when operation was already applied under the key
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewPersistence wraps a storage failure (500).
func NewPersistence(op string, err error) *AppError {
	return &AppError{
		Code:       CodeDatabase,
		Message:    fmt.Sprintf("Persistence failure during %s", op),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewPartialFailure reports a failed batch whose compensation did not fully complete.
// The message names the original cause and every compensation that failed.
func NewPartialFailure(cause error, rollbackErrs []error) *AppError {
	msgs := make([]string, 0, len(rollbackErrs))
	for _, e := range rollbackErrs {
		msgs = append(msgs, e.Error())
	}
	return &AppError{
		Code: CodePartialFailure,
		Message: fmt.Sprintf("Operation failed: %v; rollback incomplete: %s",
			cause, strings.Join(msgs, "; ")),
		HTTPStatus: http.StatusInternalServerError,
		Details: map[string]any{
			"cause":           cause.Error(),
			"rollback_errors": msgs,
		},
		Err: cause,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Wrap returns err unchanged when it already carries an AppError,
// otherwise reports it as a persistence failure of op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsAppError(err) {
		return err
	}
	return NewPersistence(op, err)
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsConflict checks if error is CodeConflict
func IsConflict(err error) bool {
	return HasCode(err, CodeConflict)
}
