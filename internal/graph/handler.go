package graph

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/graph-gophers/graphql-go"

	"github.com/listenupapp/catalog-server/internal/http/response"
	"github.com/listenupapp/catalog-server/internal/logger"
)

// maxBodyBytes caps a GraphQL request body.
const maxBodyBytes = 1 << 20

// Request is a GraphQL operation as sent over HTTP.
type Request struct {
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
}

// ErrEmptyQuery is returned by ParseRequest when no query text was sent.
var ErrEmptyQuery = errors.New("query must not be empty")

// ParseRequest reads an operation from a JSON body (POST) or from the
// query, operationName, and variables URL parameters (GET).
func ParseRequest(w http.ResponseWriter, r *http.Request) (*Request, error) {
	var req Request

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if raw := q.Get("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				return nil, fmt.Errorf("variables must be a JSON object: %w", err)
			}
		}
	default:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("request body must be a JSON object: %w", err)
		}
	}

	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	return &req, nil
}

// Handler executes queries and mutations posted to /graphql.
type Handler struct {
	schema *graphql.Schema
	logger *slog.Logger
}

// NewHandler creates a new GraphQL HTTP handler.
func NewHandler(schema *graphql.Schema, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{schema: schema, logger: logger}
}

// ServeHTTP handles a single operation. Operation errors are reported in
// the response body with status 200; only transport problems change the
// status code.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)

	if r.Method != http.MethodPost {
		response.MethodNotAllowed(w, http.MethodPost, log)
		return
	}

	req, err := ParseRequest(w, r)
	if err != nil {
		response.BadRequest(w, err.Error(), log)
		return
	}

	resp := h.schema.Exec(r.Context(), req.Query, req.OperationName, req.Variables)
	RecordOperation(TransportHTTP, len(resp.Errors) > 0)

	if len(resp.Errors) > 0 {
		log.DebugContext(r.Context(), "graphql operation returned errors",
			slog.String("operation", req.OperationName),
			slog.Int("errors", len(resp.Errors)))
	}

	response.JSON(w, http.StatusOK, resp, log)
}
