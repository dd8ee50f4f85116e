package providers

import (
	"github.com/graph-gophers/graphql-go"
	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/graph"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/service"
	"github.com/listenupapp/catalog-server/internal/sse"
)

// ProvideSchema builds the executable GraphQL schema.
func ProvideSchema(i do.Injector) (*graphql.Schema, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	busHandle := do.MustInvoke[*EventBusHandle](i)

	resolver := graph.NewResolver(
		do.MustInvoke[*service.CatalogService](i),
		do.MustInvoke[*service.AuthService](i),
		busHandle.Bus,
		log.Logger,
	)

	schema, err := graph.NewSchema(resolver, cfg.GraphQL.MaxDepth)
	if err != nil {
		return nil, err
	}

	log.Info("GraphQL schema loaded", "max_depth", cfg.GraphQL.MaxDepth)

	return schema, nil
}

// ProvideGraphHandler provides the query and mutation endpoint.
func ProvideGraphHandler(i do.Injector) (*graph.Handler, error) {
	schema := do.MustInvoke[*graphql.Schema](i)
	log := do.MustInvoke[*logger.Logger](i)

	return graph.NewHandler(schema, log.Logger), nil
}

// ProvideStreamHandler provides the subscription stream endpoint.
func ProvideStreamHandler(i do.Injector) (*sse.Handler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	schema := do.MustInvoke[*graphql.Schema](i)
	log := do.MustInvoke[*logger.Logger](i)

	return sse.NewHandler(schema, cfg.Events.HeartbeatInterval, log.Logger), nil
}
