// Package di provides dependency injection tokens for the storage module.
package di

import (
	"github.com/ddomesh/ddo-node/business/storage/app"
	"github.com/ddomesh/ddo-node/internal/di"
)

// Public tokens - can be used by other modules
var (
	// StorageService probes file objects behind descriptor service specs
	StorageService = di.NewToken[*app.StorageService]("storage.StorageService")
)

// GetStorageService retrieves the storage service from the registry
func GetStorageService(sr di.ServiceRegistry) *app.StorageService {
	return di.GetToken(sr, StorageService)
}
