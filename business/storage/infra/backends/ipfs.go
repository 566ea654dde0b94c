package backends

import (
	"context"
	"fmt"
	"strings"

	"github.com/ddomesh/ddo-node/business/storage/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
)

// IPFSBackend resolves content identifiers through an IPFS HTTP gateway.
type IPFSBackend struct {
	prober  *prober
	gateway string
}

// Validate checks that the spec carries a plausible CID.
func (b *IPFSBackend) Validate(spec domain.FileSpec) error {
	hash := strings.TrimSpace(spec.Hash)
	if hash == "" {
		return apperror.New(apperror.CodeStorageSpecInvalid,
			apperror.WithContext("ipfs specs require a content identifier"))
	}
	// Sanity only: CIDv0 is 46 base58 characters, CIDv1 is longer. The
	// gateway is the authority on whether the CID actually resolves.
	if len(hash) < 46 || strings.ContainsAny(hash, "/?#%") {
		return apperror.New(apperror.CodeStorageSpecInvalid,
			apperror.WithContext(fmt.Sprintf("%q does not look like a CID", spec.Hash)))
	}
	return nil
}

// ResolveLocation maps the CID onto the configured gateway.
func (b *IPFSBackend) ResolveLocation(spec domain.FileSpec) (string, error) {
	if err := b.Validate(spec); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/ipfs/%s", strings.TrimSuffix(b.gateway, "/"), strings.TrimSpace(spec.Hash)), nil
}

// FetchMetadata probes the gateway location.
func (b *IPFSBackend) FetchMetadata(ctx context.Context, spec domain.FileSpec) (domain.FileMetadata, error) {
	location, err := b.ResolveLocation(spec)
	if err != nil {
		return domain.FileMetadata{}, err
	}
	return b.prober.probe(ctx, domain.TypeIPFS, location)
}
