package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/events"
	"github.com/listenupapp/catalog-server/internal/store"
)

type testEnv struct {
	store   *store.Store
	bus     *events.Bus
	tokens  *auth.TokenService
	catalog *CatalogService
	auth    *AuthService
}

// setupServiceTest wires both services against a temporary Badger store.
func setupServiceTest(t *testing.T) *testEnv {
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

	return &testEnv{
		store:   s,
		bus:     bus,
		tokens:  tokens,
		catalog: NewCatalogService(s, bus, nil),
		auth:    NewAuthService(s, tokens, password, nil),
	}
}

func (e *testEnv) viewer(t *testing.T) *domain.User {
	t.Helper()
	u, err := e.auth.CreateUser(t.Context(), "mluukkai", "refactoring")
	require.NoError(t, err)
	return u
}
