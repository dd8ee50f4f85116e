// Package sse serves GraphQL subscriptions as Server-Sent Events.
//
// Each payload is written as an "event: next" frame and the end of the
// stream as "event: complete". Idle streams get a comment line at every
// heartbeat so proxies keep the connection open.
package sse

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/graph-gophers/graphql-go"

	"github.com/listenupapp/catalog-server/internal/graph"
	"github.com/listenupapp/catalog-server/internal/http/response"
	"github.com/listenupapp/catalog-server/internal/logger"
)

// DefaultHeartbeat is used when no heartbeat interval is configured.
const DefaultHeartbeat = 30 * time.Second

// Subscriber starts a GraphQL operation and streams its responses.
// *graphql.Schema implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, query, operationName string, variables map[string]interface{}) (<-chan interface{}, error)
}

// Handler handles subscription streams at GET /graphql/stream.
type Handler struct {
	schema    Subscriber
	logger    *slog.Logger
	heartbeat time.Duration
	active    atomic.Int64
}

// NewHandler creates a new SSE Handler.
func NewHandler(schema Subscriber, heartbeat time.Duration, logger *slog.Logger) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		schema:    schema,
		logger:    logger,
		heartbeat: heartbeat,
	}
}

// Active returns the number of open streams.
func (h *Handler) Active() int {
	return int(h.active.Load())
}

// ServeHTTP handles the SSE connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		response.MethodNotAllowed(w, "GET, POST", log)
		return
	}

	// Check if request context is already canceled (early client disconnect).
	if r.Context().Err() != nil {
		return
	}

	req, err := graph.ParseRequest(w, r)
	if err != nil {
		response.BadRequest(w, err.Error(), log)
		return
	}

	ctx := r.Context()
	stream, err := h.schema.Subscribe(ctx, req.Query, req.OperationName, req.Variables)
	if err != nil {
		response.InternalError(w, fmt.Errorf("subscribe: %w", err), log)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)
	h.extendDeadline(rc, log)

	// Flush headers immediately.
	if err := rc.Flush(); err != nil {
		log.Error("failed to flush headers", slog.String("error", err.Error()))
		return
	}

	h.active.Add(1)
	defer h.active.Add(-1)

	log.Debug("subscription stream opened", slog.String("operation", req.OperationName))

	heartbeatTicker := time.NewTicker(h.heartbeat)
	defer heartbeatTicker.Stop()

	failed := false
	defer func() { graph.RecordOperation(graph.TransportSSE, failed) }()

	for {
		select {
		case payload, ok := <-stream:
			if !ok {
				if err := h.write(w, rc, log, "event: complete\ndata: \n\n"); err != nil {
					log.Debug("client disconnected before complete")
				}
				return
			}
			if resp, isResp := payload.(*graphql.Response); isResp && len(resp.Errors) > 0 {
				failed = true
			}
			if err := h.sendNext(w, rc, log, payload); err != nil {
				// Client disconnect is normal, not an error condition.
				log.Debug("client disconnected during send", slog.String("error", err.Error()))
				return
			}

		case <-heartbeatTicker.C:
			if err := h.write(w, rc, log, ":\n\n"); err != nil {
				log.Debug("client disconnected during heartbeat")
				return
			}

		case <-ctx.Done():
			log.Debug("subscription stream closed by client")
			return
		}
	}
}

func (h *Handler) sendNext(w http.ResponseWriter, rc *http.ResponseController, log *slog.Logger, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	return h.write(w, rc, log, "event: next\ndata: "+string(data)+"\n\n")
}

func (h *Handler) write(w http.ResponseWriter, rc *http.ResponseController, log *slog.Logger, frame string) error {
	if _, err := fmt.Fprint(w, frame); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	h.extendDeadline(rc, log)
	return nil
}

// extendDeadline pushes the write deadline past the next heartbeat so the
// server's WriteTimeout does not cut a healthy stream.
func (h *Handler) extendDeadline(rc *http.ResponseController, log *slog.Logger) {
	if err := rc.SetWriteDeadline(time.Now().Add(2 * h.heartbeat)); err != nil {
		// SetWriteDeadline may not be supported by all ResponseWriters.
		log.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
}
