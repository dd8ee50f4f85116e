package graph

import (
	"context"
	"encoding/json/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/events"
	"github.com/listenupapp/catalog-server/internal/service"
	"github.com/listenupapp/catalog-server/internal/store"
)

type testEnv struct {
	bus      *events.Bus
	tokens   *auth.TokenService
	auth     *service.AuthService
	resolver *Resolver
	schema   *graphql.Schema
}

func setupGraphTest(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	bus := events.NewBus(events.Options{}, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	})

	key, err := auth.GenerateKey()
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 0)
	require.NoError(t, err)
	password, err := auth.NewSharedPassword("secret")
	require.NoError(t, err)

	authService := service.NewAuthService(s, tokens, password, nil)
	resolver := NewResolver(service.NewCatalogService(s, bus, nil), authService, bus, nil)

	schema, err := NewSchema(resolver, DefaultMaxDepth)
	require.NoError(t, err)

	return &testEnv{
		bus:      bus,
		tokens:   tokens,
		auth:     authService,
		resolver: resolver,
		schema:   schema,
	}
}

// viewer registers a user and returns a context authenticated as them.
func (e *testEnv) viewer(t *testing.T) context.Context {
	t.Helper()
	user, err := e.auth.CreateUser(t.Context(), "mluukkai", "refactoring")
	require.NoError(t, err)
	return auth.WithUser(t.Context(), user)
}

type gqlError struct {
	Extensions map[string]any `json:"extensions"`
	Message    string         `json:"message"`
}

type gqlResult struct {
	Data   map[string]any
	Errors []gqlError
}

func (e *testEnv) exec(t *testing.T, ctx context.Context, query string, vars map[string]any) gqlResult {
	t.Helper()
	return decodeResponse(t, e.schema.Exec(ctx, query, "", vars))
}

func decodeResponse(t *testing.T, resp *graphql.Response) gqlResult {
	t.Helper()

	var out gqlResult
	if len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, &out.Data))
	}
	for _, qe := range resp.Errors {
		out.Errors = append(out.Errors, gqlError{Message: qe.Message, Extensions: qe.Extensions})
	}
	return out
}

const addBookMutation = `
mutation AddBook($title: String!, $author: String!, $published: Int!, $genres: [String!]!) {
  addBook(title: $title, author: $author, published: $published, genres: $genres) {
    id
    title
    published
    genres
    author { name born }
  }
}`

func addBookVars(title, author string, published int, genres ...string) map[string]any {
	g := make([]any, len(genres))
	for i, genre := range genres {
		g[i] = genre
	}
	return map[string]any{
		"title":     title,
		"author":    author,
		"published": float64(published),
		"genres":    g,
	}
}

// seedUser returns the stored user behind a viewer context.
func seedUser(ctx context.Context) *domain.User {
	return auth.UserFromContext(ctx)
}
