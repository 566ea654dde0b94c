// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/ddomesh/ddo-node/business/chain/app"
	"github.com/ddomesh/ddo-node/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("chain.ChainService")
)

// Helper functions for type-safe access
func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}
