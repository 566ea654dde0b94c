// Package app contains application services and port definitions for the resolver context.
package app

import (
	"context"

	"github.com/ddomesh/ddo-node/business/resolver/domain"
)

// DescriptorStore is the authoritative local store of descriptors. It is
// assumed to hold only validated, on-chain-confirmed data.
type DescriptorStore interface {
	// Retrieve looks up a descriptor by identifier. Absence is reported
	// through the boolean, not as an error.
	Retrieve(ctx context.Context, id string) (domain.StoredDescriptor, bool, error)

	// Save persists a descriptor, replacing any previous version.
	Save(ctx context.Context, desc domain.StoredDescriptor) error

	// List returns up to limit stored identifiers.
	List(ctx context.Context, limit int) ([]string, error)

	// Count returns the number of stored descriptors.
	Count(ctx context.Context) (int, error)
}

// PeerQuerier asks the configured peers for their resolution records for
// an identifier. Implementations return whatever answers arrived before
// the context deadline, in configured peer order; individual peer
// failures are logged and skipped, never surfaced as errors.
type PeerQuerier interface {
	Query(ctx context.Context, id string, correlationID string) []domain.ResolutionRecord
}

// UpdateVerifier cross-checks a record's update transaction against
// chain-sourced event data. A zero chainID means the chain is unknown
// and the verifier should check every network it manages.
type UpdateVerifier interface {
	VerifyUpdate(ctx context.Context, chainID uint64, txHash string) error
}

// EventPublisher broadcasts resolver activity to the node's event stream.
type EventPublisher interface {
	PublishResolution(res domain.Resolution)
	PublishDescriptorUpdated(id, action, provider string)
}
