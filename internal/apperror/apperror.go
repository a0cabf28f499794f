// Package apperror defines the error kinds shared by every layer.
//
// An AppError carries two things:
//   - Err:   the KIND of failure (ErrNotFound, ErrValidation, ...), which the
//     HTTP layer maps to a status code
//   - Cause: the SPECIFIC failure, usually a package-level sentinel such as
//     service.ErrEmptyInput or social.ErrInvalidState
//
// Both participate in errors.Is, so a handler can ask "is this a validation
// error?" while a test can ask "is this exactly ErrEmptyInput?".
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream failure")
)

type AppError struct {
	Err     error  // error kind
	Cause   error  // optional: specific error behind the kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when credentials are missing or wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Upstream wraps a failure reported by a third-party API (social platform,
// model provider, mail service). HTTP handlers map this to 502.
func Upstream(cause error, message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Cause:   cause,
		Message: message,
	}
}

// Wrap attaches a specific cause to an error kind.
func Wrap(kind, cause error, message string) *AppError {
	return &AppError{
		Err:     kind,
		Cause:   cause,
		Message: message,
	}
}
