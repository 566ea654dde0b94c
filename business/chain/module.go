// Package chain implements the chain bounded context: connectivity to the
// supported blockchain networks, endpoint failover and chain-sourced
// verification of descriptor updates.
package chain

import (
	"context"

	"github.com/ddomesh/ddo-node/business/chain/app"
	chainDI "github.com/ddomesh/ddo-node/business/chain/di"
	"github.com/ddomesh/ddo-node/business/chain/infra/ethereum"
	"github.com/ddomesh/ddo-node/internal/config"
	"github.com/ddomesh/ddo-node/internal/di"
	"github.com/ddomesh/ddo-node/internal/events"
	"github.com/ddomesh/ddo-node/internal/logger"
	"github.com/ddomesh/ddo-node/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register ChainService (public - exposed to other modules)
	di.RegisterToken(c, chainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("bus").(*events.Bus)

		concrete := make(map[uint64]*ethereum.Manager, len(cfg.Chains))
		managers := make(map[uint64]app.NetworkManager, len(cfg.Chains))
		for _, chainCfg := range cfg.Chains {
			mgrCfg := ethereum.DefaultManagerConfig(chainCfg.ChainID, chainCfg.Name, chainCfg.Endpoints())
			mgrCfg.PrivateKey = cfg.Node.PrivateKey
			if chainCfg.GracePeriod > 0 {
				mgrCfg.GracePeriod = chainCfg.GracePeriod
			}

			manager, err := ethereum.NewManager(mgrCfg, log, bus)
			if err != nil {
				panic("failed to create network manager: " + err.Error())
			}
			concrete[chainCfg.ChainID] = manager
			managers[chainCfg.ChainID] = manager
		}

		tokens, err := ethereum.NewTokenReader(concrete, log)
		if err != nil {
			panic("failed to create token reader: " + err.Error())
		}

		return app.NewChainService(managers, tokens)
	})

	return nil
}

// Startup connects every managed network.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	svc := chainDI.GetChainService(mono.Services())
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "some networks failed to connect", "error", err)
		// Don't fail - degraded networks can be reconnected through the API
	}

	log.Info(ctx, "chain module started", "networks", len(svc.Statuses()))
	return nil
}
