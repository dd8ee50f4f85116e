package providers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/events"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/sqlite"
)

// shutdownTimeout bounds each handle's graceful shutdown.
const shutdownTimeout = 30 * time.Second

// EventBusHandle wraps the event bus for lifecycle management.
type EventBusHandle struct {
	*events.Bus
}

// Shutdown implements do.Shutdownable.
func (h *EventBusHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Bus.Shutdown(ctx)
}

// ProvideEventBus provides the in-process change notification bus.
func ProvideEventBus(i do.Injector) (*EventBusHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	policy, err := events.ParseOverflowPolicy(cfg.Events.OverflowPolicy)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(events.Options{
		BufferSize: cfg.Events.SubscriberBuffer,
		Policy:     policy,
	}, log.Logger)

	log.Info("Event bus started",
		"subscriber_buffer", cfg.Events.SubscriberBuffer,
		"overflow_policy", policy,
	)

	return &EventBusHandle{Bus: bus}, nil
}

// StoreHandle wraps the configured repository with shutdown capability.
type StoreHandle struct {
	store.Repository
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the document store selected by configuration.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Metadata.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := cfg.DatabasePath()

	var (
		repo store.Repository
		err  error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		repo, err = sqlite.Open(dbPath, log.Logger)
	default:
		repo, err = store.New(dbPath, log.Logger)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "backend", cfg.Store.Backend, "path", dbPath)

	return &StoreHandle{Repository: repo}, nil
}
