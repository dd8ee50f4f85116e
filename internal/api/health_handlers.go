package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/catalog-server/internal/graph"
)

// Component and overall health states.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(ctx),
		"events":   s.checkEventBus(),
		"streams":  s.checkStreams(),
	}

	overall := statusHealthy
	for _, c := range components {
		switch c.Status {
		case statusUnhealthy:
			overall = statusUnhealthy
		case statusDegraded:
			if overall == statusHealthy {
				overall = statusDegraded
			}
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkDatabase verifies the document store answers.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	// Handle nil store (e.g., in tests)
	if s.store == nil {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "database not configured",
		}
	}

	start := time.Now()
	err := s.store.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "database read failed",
		}
	}

	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
	}
}

// checkEventBus reports whether subscriptions can be served.
func (s *Server) checkEventBus() ComponentHealth {
	if s.bus == nil {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "event bus not configured",
		}
	}
	if s.bus.Closed() {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Message: "event bus is shut down",
		}
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Message: formatCount(s.bus.SubscriberCount(), "subscriber"),
	}
}

func (s *Server) checkStreams() ComponentHealth {
	if s.sseHandler == nil {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "subscription stream not configured",
		}
	}
	return ComponentHealth{
		Status:  statusHealthy,
		Message: formatCount(s.sseHandler.Active(), "open stream"),
	}
}

func formatCount(n int, noun string) string {
	switch n {
	case 0:
		return "no " + noun + "s"
	case 1:
		return "1 " + noun
	default:
		return fmt.Sprintf("%d %ss", n, noun)
	}
}

// SchemaOutput returns the GraphQL schema as plain text.
type SchemaOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (s *Server) registerSchemaRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSchema",
		Method:      http.MethodGet,
		Path:        "/graphql/schema",
		Summary:     "GraphQL schema",
		Description: "Returns the GraphQL schema definition served at /graphql",
		Tags:        []string{"GraphQL"},
	}, func(_ context.Context, _ *struct{}) (*SchemaOutput, error) {
		return &SchemaOutput{
			ContentType: "application/graphql; charset=utf-8",
			Body:        []byte(graph.SDL()),
		}, nil
	})
}
