// Package resolver implements the resolver bounded context: descriptor
// storage, freshness-cached resolution and reconciliation of peer answers.
package resolver

import (
	"context"

	chainDI "github.com/ddomesh/ddo-node/business/chain/di"
	"github.com/ddomesh/ddo-node/business/resolver/app"
	resolverDI "github.com/ddomesh/ddo-node/business/resolver/di"
	"github.com/ddomesh/ddo-node/business/resolver/domain"
	"github.com/ddomesh/ddo-node/business/resolver/infra"
	"github.com/ddomesh/ddo-node/business/resolver/infra/peers"
	"github.com/ddomesh/ddo-node/business/resolver/infra/store"
	"github.com/ddomesh/ddo-node/internal/cache"
	"github.com/ddomesh/ddo-node/internal/config"
	"github.com/ddomesh/ddo-node/internal/di"
	"github.com/ddomesh/ddo-node/internal/events"
	"github.com/ddomesh/ddo-node/internal/logger"
	"github.com/ddomesh/ddo-node/internal/monolith"
)

// Module implements the resolver bounded context.
type Module struct{}

// RegisterServices registers all resolver services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register DescriptorStore (private - internal dependency)
	di.RegisterToken(c, resolverDI.DescriptorStore, func(sr di.ServiceRegistry) app.DescriptorStore {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		db, err := store.New(store.Config{Path: cfg.Store.Path}, log)
		if err != nil {
			panic("failed to open descriptor store: " + err.Error())
		}
		return db
	})

	// Register PeerQuerier (private - internal dependency)
	di.RegisterToken(c, resolverDI.PeerQuerier, func(sr di.ServiceRegistry) app.PeerQuerier {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		peerCfg := peers.DefaultConfig(cfg.Node.Peers)
		if cfg.Resolver.QueryTimeout > 0 {
			peerCfg.Timeout = cfg.Resolver.QueryTimeout
		}

		client, err := peers.New(peerCfg, log)
		if err != nil {
			panic("failed to create peer client: " + err.Error())
		}
		return client
	})

	// Register EventPublisher (private - internal dependency)
	di.RegisterToken(c, resolverDI.EventPublisher, func(sr di.ServiceRegistry) app.EventPublisher {
		bus := sr.Get("bus").(*events.Bus)
		return infra.NewBusPublisher(bus)
	})

	// Register Resolver (public - exposed to other modules)
	di.RegisterToken(c, resolverDI.ResolverService, func(sr di.ServiceRegistry) *app.Resolver {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		recordCache := cache.New[domain.ResolutionRecord](cfg.Resolver.CacheTTL)
		reconciler := app.NewReconciler(recordCache, log)

		// Update verification needs at least one managed network.
		var verifier app.UpdateVerifier
		if cfg.Resolver.VerifyUpdates && len(cfg.Chains) > 0 {
			verifier = chainDI.GetChainService(sr)
		}

		resolverCfg := app.ResolverConfig{
			Identity:      cfg.Node.Identity(),
			QueryTimeout:  cfg.Resolver.QueryTimeout,
			VerifyUpdates: cfg.Resolver.VerifyUpdates,
		}

		return app.NewResolver(
			resolverCfg,
			recordCache,
			resolverDI.GetDescriptorStore(sr),
			resolverDI.GetPeerQuerier(sr),
			reconciler,
			verifier,
			resolverDI.GetEventPublisher(sr),
			log,
		)
	})

	return nil
}

// Startup initializes the resolver module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	r := resolverDI.GetResolverService(mono.Services())

	stats, err := r.Stats(ctx)
	if err != nil {
		log.Warn(ctx, "could not count stored descriptors", "error", err)
	}

	log.Info(ctx, "resolver module started",
		"identity", cfg.Node.Identity(),
		"peers", len(cfg.Node.Peers),
		"descriptors", stats.StoredDescriptors)
	return nil
}
