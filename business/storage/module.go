// Package storage implements the storage bounded context: validation of
// file specs attached to descriptors and availability probing of the file
// objects they point at.
package storage

import (
	"context"

	"github.com/ddomesh/ddo-node/business/storage/app"
	storageDI "github.com/ddomesh/ddo-node/business/storage/di"
	"github.com/ddomesh/ddo-node/business/storage/infra/backends"
	"github.com/ddomesh/ddo-node/internal/config"
	"github.com/ddomesh/ddo-node/internal/di"
	"github.com/ddomesh/ddo-node/internal/logger"
	"github.com/ddomesh/ddo-node/internal/monolith"
)

// Module implements the storage bounded context.
type Module struct{}

// RegisterServices registers all storage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register StorageService (public - exposed to other modules)
	di.RegisterToken(c, storageDI.StorageService, func(sr di.ServiceRegistry) *app.StorageService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		set, err := backends.New(backends.Config{
			IPFSGateway:    cfg.Storage.IPFSGateway,
			ArweaveGateway: cfg.Storage.ArweaveGateway,
			Timeout:        cfg.Storage.RequestTimeout,
		}, log)
		if err != nil {
			panic("failed to create storage backends: " + err.Error())
		}

		return app.NewStorageService(set)
	})

	return nil
}

// Startup announces the supported storage types.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	svc := storageDI.GetStorageService(mono.Services())
	log.Info(ctx, "storage module started", "types", len(svc.Types()))
	return nil
}
