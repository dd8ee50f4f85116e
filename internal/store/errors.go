package store

import (
	"errors"
	"fmt"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

// Error is a persistence-level error. Field names the document field
// responsible for the failure when one can be identified.
type Error struct {
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by message so that field-annotated copies still
// satisfy errors.Is(err, ErrAlreadyExists).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Message == t.Message && t.Field == "" && t.Err == nil
	}
	return false
}

// WithField returns a copy of the error annotated with the offending field.
func (e *Error) WithField(field string) *Error {
	return &Error{Message: e.Message, Field: field, Err: e.Err}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Message: e.Message, Field: e.Field, Err: err}
}

// Sentinel errors.
var (
	ErrNotFound      = &Error{Message: "resource not found"}
	ErrAlreadyExists = &Error{Message: "resource already exists"}
	ErrInvalidInput  = &Error{Message: "invalid input"}
	ErrConflict      = &Error{Message: "transaction conflict"}
)

// FieldOf returns the field recorded on a store error, or "".
func FieldOf(err error) string {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Field
	}
	return ""
}

// IsUniqueViolation reports whether err means another writer owns the key.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrConflict)
}

// ValidationFailure converts a store error into the client-visible
// BAD_USER_INPUT error. fallbackField is used when the store could not
// attribute the failure to a field.
func ValidationFailure(err error, message, fallbackField string) error {
	field := FieldOf(err)
	if field == "" {
		field = fallbackField
	}
	return domainerrors.ValidationFailure(message, field).WithCause(err)
}
