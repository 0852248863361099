package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError and decides its HTTP status.
type Kind string

const (
	KindNotFound      Kind = "NOT_FOUND"
	KindValidation    Kind = "VALIDATION"
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	KindUnauthorized  Kind = "UNAUTHORIZED"
	KindForbidden     Kind = "FORBIDDEN"
	KindInternal      Kind = "INTERNAL"
)

// AppError represents a business logic error with a kind, message, optional
// per-field details and an optional wrapped error.
type AppError struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"errors,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined business errors.
//
// Match categories with the Is* helpers rather than errors.Is: the helpers
// compare kinds, so they also match freshly constructed and wrapped errors.
var (
	ErrNotFound      = &AppError{Kind: KindNotFound, Message: "not found"}
	ErrValidation    = &AppError{Kind: KindValidation, Message: "validation error"}
	ErrAlreadyExists = &AppError{Kind: KindAlreadyExists, Message: "already exists"}
	ErrUnauthorized  = &AppError{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden     = &AppError{Kind: KindForbidden, Message: "forbidden"}
	ErrInternal      = &AppError{Kind: KindInternal, Message: "internal error"}
)

// NewAppError creates a new AppError with the given kind, message, and wrapped error.
func NewAppError(kind Kind, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NotFound reports a missing document of resource with the given id.
func NotFound(resource, id string) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("no %s for this id %s", resource, id)}
}

// Validation creates a validation error carrying optional per-field messages.
func Validation(message string, fields map[string]string) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Fields: fields}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// IsNotFound reports whether err is or wraps an AppError of KindNotFound.
func IsNotFound(err error) bool {
	return hasKind(err, KindNotFound)
}

// IsValidation reports whether err is or wraps an AppError of KindValidation.
func IsValidation(err error) bool {
	return hasKind(err, KindValidation)
}

// IsAlreadyExists reports whether err is or wraps an AppError of KindAlreadyExists.
func IsAlreadyExists(err error) bool {
	return hasKind(err, KindAlreadyExists)
}

// IsUnauthorized reports whether err is or wraps an AppError of KindUnauthorized.
func IsUnauthorized(err error) bool {
	return hasKind(err, KindUnauthorized)
}

// IsForbidden reports whether err is or wraps an AppError of KindForbidden.
func IsForbidden(err error) bool {
	return hasKind(err, KindForbidden)
}

// IsInternal reports whether err is or wraps an AppError of KindInternal.
func IsInternal(err error) bool {
	return hasKind(err, KindInternal)
}

func hasKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// HTTPStatusCode maps an error to an HTTP status code.
// If the error is an *AppError, its kind is mapped; otherwise http.StatusInternalServerError is returned.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		switch appErr.Kind {
		case KindNotFound:
			return http.StatusNotFound
		case KindValidation:
			return http.StatusBadRequest
		case KindAlreadyExists:
			return http.StatusConflict
		case KindUnauthorized:
			return http.StatusUnauthorized
		case KindForbidden:
			return http.StatusForbidden
		}
	}
	return http.StatusInternalServerError
}

// Status returns the response status word for an HTTP status code:
// "fail" for client errors and "error" for everything else.
func Status(code int) string {
	if code >= 400 && code < 500 {
		return "fail"
	}
	return "error"
}
