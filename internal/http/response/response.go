// Package response writes GraphQL-shaped JSON responses for requests that
// end before reaching the executor: malformed bodies, rate limiting, and
// transport errors.
package response

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

// ErrorEntry is one element of a GraphQL "errors" array.
type ErrorEntry struct {
	Extensions map[string]any `json:"extensions,omitempty"`
	Message    string         `json:"message"`
}

// Envelope is a GraphQL response carrying only errors.
type Envelope struct {
	Errors []ErrorEntry `json:"errors"`
}

// JSON writes data as a JSON body with the given status code using json/v2.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.MarshalWrite(w, data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Error writes err as a GraphQL error response. The status comes from the
// error code; the cause is logged for internal errors and never sent.
func Error(w http.ResponseWriter, err *domainerrors.Error, logger *slog.Logger) {
	if err.Code == domainerrors.CodeInternal && logger != nil && err.Cause() != nil {
		logger.Error("Request failed", "error", err.Cause())
	}

	JSON(w, err.HTTPStatus(), Envelope{
		Errors: []ErrorEntry{{
			Message:    err.Message,
			Extensions: err.Extensions(),
		}},
	}, logger)
}

// BadRequest writes a 400 response with a BAD_USER_INPUT error.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, domainerrors.ValidationFailure(message), logger)
}

// TooManyRequests writes a 429 response with a RATE_LIMITED error.
func TooManyRequests(w http.ResponseWriter, logger *slog.Logger) {
	Error(w, domainerrors.ErrRateLimited, logger)
}

// MethodNotAllowed writes a 405 response listing the accepted methods.
func MethodNotAllowed(w http.ResponseWriter, allow string, logger *slog.Logger) {
	w.Header().Set("Allow", allow)
	JSON(w, http.StatusMethodNotAllowed, Envelope{
		Errors: []ErrorEntry{{Message: "method not allowed"}},
	}, logger)
}

// InternalError writes a 500 response, logging err.
func InternalError(w http.ResponseWriter, err error, logger *slog.Logger) {
	Error(w, domainerrors.Internal(err), logger)
}
