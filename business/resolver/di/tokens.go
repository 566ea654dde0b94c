// Package di contains dependency injection tokens for the resolver context.
package di

import (
	"github.com/ddomesh/ddo-node/business/resolver/app"
	"github.com/ddomesh/ddo-node/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ResolverService = di.NewToken[*app.Resolver]("resolver.Resolver")
)

// Private dependency tokens - internal to the resolver module
var (
	DescriptorStore = di.NewToken[app.DescriptorStore]("resolver:descriptorStore")
	PeerQuerier     = di.NewToken[app.PeerQuerier]("resolver:peerQuerier")
	EventPublisher  = di.NewToken[app.EventPublisher]("resolver:eventPublisher")
)

// Helper functions for type-safe access
func GetResolverService(c di.ServiceRegistry) *app.Resolver {
	return di.GetToken(c, ResolverService)
}

func GetDescriptorStore(c di.ServiceRegistry) app.DescriptorStore {
	return di.GetToken(c, DescriptorStore)
}

func GetPeerQuerier(c di.ServiceRegistry) app.PeerQuerier {
	return di.GetToken(c, PeerQuerier)
}

func GetEventPublisher(c di.ServiceRegistry) app.EventPublisher {
	return di.GetToken(c, EventPublisher)
}
