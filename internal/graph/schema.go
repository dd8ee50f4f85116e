// Package graph is the GraphQL boundary of the catalog: the schema, its
// resolvers, and the HTTP handler that executes operations against it.
package graph

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/graph-gophers/graphql-go"

	"github.com/listenupapp/catalog-server/internal/logger"
)

//go:embed schema.graphql
var schemaSDL string

// SDL returns the schema definition served by the API.
func SDL() string {
	return schemaSDL
}

// DefaultMaxDepth bounds query nesting when no limit is configured.
const DefaultMaxDepth = 10

// NewSchema parses the embedded schema and binds it to r.
func NewSchema(r *Resolver, maxDepth int) (*graphql.Schema, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	schema, err := graphql.ParseSchema(schemaSDL, r,
		graphql.UseStringDescriptions(),
		graphql.MaxDepth(maxDepth),
		graphql.Logger(&panicLogger{fallback: r.logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse graphql schema: %w", err)
	}
	return schema, nil
}

// panicLogger reports resolver panics through slog instead of the
// engine's default log.Printf.
type panicLogger struct {
	fallback *slog.Logger
}

// LogPanic implements the graphql-go log.Logger interface.
func (l *panicLogger) LogPanic(ctx context.Context, value interface{}) {
	logger.FromContext(ctx, l.fallback).ErrorContext(ctx, "graphql resolver panic",
		slog.String("panic", fmt.Sprint(value)))
}
