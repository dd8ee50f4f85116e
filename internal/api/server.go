// Package api provides the HTTP server of the catalog: the GraphQL
// endpoints, the subscription stream, health, and metrics.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/listenupapp/catalog-server/internal/events"
	"github.com/listenupapp/catalog-server/internal/graph"
	"github.com/listenupapp/catalog-server/internal/ratelimit"
	"github.com/listenupapp/catalog-server/internal/sse"
	"github.com/listenupapp/catalog-server/internal/store"
)

// RateLimitOptions configures the per-client limiter on the GraphQL routes.
type RateLimitOptions struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Options holds transport settings.
type Options struct {
	CORSOrigins []string
	RateLimit   RateLimitOptions
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       store.Repository
	bus         *events.Bus
	verifier    TokenVerifier
	graph       *graph.Handler
	sseHandler  *sse.Handler
	router      *chi.Mux
	api         huma.API
	rateLimiter *ratelimit.KeyedRateLimiter
	logger      *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st store.Repository, bus *events.Bus, verifier TokenVerifier, graphHandler *graph.Handler, sseHandler *sse.Handler, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		store:      st,
		bus:        bus,
		verifier:   verifier,
		graph:      graphHandler,
		sseHandler: sseHandler,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if opts.RateLimit.Enabled {
		s.rateLimiter = ratelimit.New(opts.RateLimit.RPS, opts.RateLimit.Burst)
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Catalog API", "1.0.0")
	humaConfig.Info.Description = "Operational endpoints of the catalog server. The catalog itself is served over GraphQL at /graphql."
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(authMiddleware(s.verifier))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerSchemaRoutes()

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Group(func(r chi.Router) {
		if s.rateLimiter != nil {
			r.Use(RateLimitMiddleware(s.rateLimiter, s.logger))
		}
		r.Handle("/graphql", s.graph)
		r.Handle("/graphql/stream", s.sseHandler)
	})
}
