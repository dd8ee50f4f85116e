// Package errors provides the client-visible error taxonomy of the catalog API.
//
// Usage:
//
//	// In services - return typed errors
//	if identity == nil {
//	    return nil, errors.Unauthenticated("not authenticated")
//	}
//
//	// Persistence rejections echo the offending argument back to the client
//	return nil, errors.ValidationFailure("Saving book failed", "title").WithCause(err)
//
//	// In the GraphQL layer - check with errors.Is
//	if errors.Is(err, errors.ErrUnauthenticated) { ... }
//
// Every *Error implements Extensions, so the GraphQL engine renders
// extensions.code (and extensions.invalidArgs when present) on the wire.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes surfaced to API clients.
const (
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeBadUserInput       Code = "BAD_USER_INPUT"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeNotFound           Code = "NOT_FOUND"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeInternal           Code = "INTERNAL_SERVER_ERROR"
)

// internalMessage is the only text a client ever sees for an unexpected failure.
const internalMessage = "Internal server error"

// HTTPStatus returns the HTTP status code used when an error terminates a request
// outside the GraphQL response body (rate limiting, malformed requests).
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeBadUserInput:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code        Code     `json:"code"`
	Message     string   `json:"message"`
	InvalidArgs []string `json:"invalidArgs,omitempty"`
	Details     any      `json:"details,omitempty"`
	cause       error
}

// Error implements the error interface.
// The cause is deliberately left out: this string is what clients read.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Cause returns the wrapped error, if any. Used when logging.
func (e *Error) Cause() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Extensions implements the graphql-go extension hook.
func (e *Error) Extensions() map[string]any {
	ext := map[string]any{"code": string(e.Code)}
	if len(e.InvalidArgs) > 0 {
		ext["invalidArgs"] = e.InvalidArgs
	}
	if e.Details != nil {
		ext["details"] = e.Details
	}
	return ext
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:        e.Code,
		Message:     e.Message,
		InvalidArgs: e.InvalidArgs,
		Details:     details,
		cause:       e.cause,
	}
}

// WithInvalidArgs returns a new error naming the offending arguments.
func (e *Error) WithInvalidArgs(args ...string) *Error {
	return &Error{
		Code:        e.Code,
		Message:     e.Message,
		InvalidArgs: args,
		Details:     e.Details,
		cause:       e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:        e.Code,
		Message:     e.Message,
		InvalidArgs: e.InvalidArgs,
		Details:     e.Details,
		cause:       err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrUnauthenticated    = &Error{Code: CodeUnauthenticated, Message: "not authenticated"}
	ErrValidation         = &Error{Code: CodeBadUserInput, Message: "validation failed"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "wrong credentials"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "too many requests"}
	ErrInternal           = &Error{Code: CodeInternal, Message: internalMessage}
)

// Unauthenticated creates an error for a protected operation without identity.
func Unauthenticated(msg string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: msg}
}

// ValidationFailure creates a persistence or input rejection naming the offending arguments.
func ValidationFailure(msg string, invalidArgs ...string) *Error {
	return &Error{Code: CodeBadUserInput, Message: msg, InvalidArgs: invalidArgs}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeBadUserInput, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeBadUserInput, Message: msg, Details: details}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// Internal wraps an unexpected failure. The client only ever sees the
// generic message; err is kept for logging.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: internalMessage, cause: err}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// Mask returns err unchanged when it is already a domain error and
// collapses anything else into an internal error.
func Mask(err error) *Error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return Internal(err)
}

// IsInternal reports whether err would be rendered as an internal error.
func IsInternal(err error) bool {
	return Mask(err).Code == CodeInternal
}
