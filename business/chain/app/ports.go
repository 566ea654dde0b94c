// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"

	"github.com/ddomesh/ddo-node/business/chain/domain"
)

// NetworkManager defines the interface for one managed blockchain network.
// It owns the endpoint pool, the live connection and the signing identity,
// and fails over across the pool when connectivity is lost.
type NetworkManager interface {
	// Start establishes the initial connection and begins watching for
	// connectivity loss.
	Start(ctx context.Context) error

	// Status returns a snapshot of the network's connectivity.
	Status() domain.NetworkStatus

	// EndpointStatuses returns per-endpoint observability for the pool,
	// primary first.
	EndpointStatuses() []domain.EndpointStatus

	// IsReady reports whether the network currently answers requests.
	IsReady(ctx context.Context) bool

	// Reconnect walks the endpoint pool again after the network has
	// degraded. It returns an error when no endpoint can be confirmed.
	Reconnect(ctx context.Context) error

	// VerifyTransaction confirms that the referenced transaction is mined
	// on this network.
	VerifyTransaction(ctx context.Context, txHash string) error

	// Close tears down the subscription and the connection.
	Close() error
}

// TokenReader defines the interface for reading ERC-20 token metadata.
type TokenReader interface {
	// Metadata reads name, symbol, decimals and total supply from the
	// token contract at the given address.
	Metadata(ctx context.Context, chainID uint64, address string) (domain.TokenMetadata, error)
}
