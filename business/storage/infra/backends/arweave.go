package backends

import (
	"context"
	"fmt"
	"strings"

	"github.com/ddomesh/ddo-node/business/storage/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
)

// arweaveIDLength is the length of a base64url-encoded Arweave
// transaction id.
const arweaveIDLength = 43

// ArweaveBackend resolves transaction ids through an Arweave gateway.
type ArweaveBackend struct {
	prober  *prober
	gateway string
}

// Validate checks that the spec carries a plausible transaction id.
func (b *ArweaveBackend) Validate(spec domain.FileSpec) error {
	id := strings.TrimSpace(spec.Hash)
	if id == "" {
		return apperror.New(apperror.CodeStorageSpecInvalid,
			apperror.WithContext("arweave specs require a transaction id"))
	}
	if len(id) != arweaveIDLength || strings.ContainsAny(id, "/?#%+=") {
		return apperror.New(apperror.CodeStorageSpecInvalid,
			apperror.WithContext(fmt.Sprintf("%q does not look like an arweave transaction id", spec.Hash)))
	}
	return nil
}

// ResolveLocation maps the transaction id onto the configured gateway.
func (b *ArweaveBackend) ResolveLocation(spec domain.FileSpec) (string, error) {
	if err := b.Validate(spec); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(b.gateway, "/"), strings.TrimSpace(spec.Hash)), nil
}

// FetchMetadata probes the gateway location.
func (b *ArweaveBackend) FetchMetadata(ctx context.Context, spec domain.FileSpec) (domain.FileMetadata, error) {
	location, err := b.ResolveLocation(spec)
	if err != nil {
		return domain.FileMetadata{}, err
	}
	return b.prober.probe(ctx, domain.TypeArweave, location)
}
