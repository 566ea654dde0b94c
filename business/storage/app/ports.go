// Package app contains application services and port definitions for the storage context.
package app

import (
	"context"

	"github.com/ddomesh/ddo-node/business/storage/domain"
)

// Backend defines the capability interface every storage variant
// implements. Variants differ only in how a spec maps to a fetchable
// location; the probe itself is uniform.
type Backend interface {
	// Validate checks the spec's shape for this variant.
	Validate(spec domain.FileSpec) error

	// ResolveLocation turns the spec into a fetchable URL.
	ResolveLocation(spec domain.FileSpec) (string, error)

	// FetchMetadata probes the resolved location for availability,
	// content type and length.
	FetchMetadata(ctx context.Context, spec domain.FileSpec) (domain.FileMetadata, error)
}
