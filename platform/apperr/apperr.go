// Package apperr provides standardized domain error types for the application.
// Services return these typed errors; the shell HTTP layer maps them to status
// codes and the delivery layer turns them into user notifications.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates the request lost against newer state, such as a
	// preview that was closed or superseded while loading.
	KindConflict
	// KindInternal indicates an unexpected internal error.
	KindInternal
	// KindStoreFetch indicates listing inventory items failed.
	KindStoreFetch
	// KindStoreMutation indicates creating, updating or deleting an item failed.
	KindStoreMutation
	// KindReportGeneration indicates the report service did not deliver a payload.
	KindReportGeneration
	// KindInvalidFormat indicates a format token outside the supported set.
	KindInvalidFormat
)

// String returns the taxonomy name used in logs and notifications.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "ValidationFailed"
	case KindConflict:
		return "Conflict"
	case KindInternal:
		return "Internal"
	case KindStoreFetch:
		return "StoreFetchFailed"
	case KindStoreMutation:
		return "StoreMutationFailed"
	case KindReportGeneration:
		return "ReportGenerationFailed"
	case KindInvalidFormat:
		return "InvalidFormatSelection"
	default:
		return "Unknown"
	}
}

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional diagnostics (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code the shell API answers with for this kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindInvalidFormat:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindStoreFetch, KindStoreMutation, KindReportGeneration:
		return http.StatusBadGateway
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp sets the operation and returns the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails sets diagnostics and returns the error.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Internal creates an internal error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// InvalidFormat creates an InvalidFormatSelection error for the given token.
func InvalidFormat(token string) *Error {
	return New(KindInvalidFormat, fmt.Sprintf("unsupported report format %q", token))
}

// GetKind extracts the error kind from anywhere in an error chain.
// Returns KindUnknown if no *Error is present.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err carries an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// As returns the first *Error in the chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
