package backends

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ddomesh/ddo-node/business/storage/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
)

// URLBackend serves specs whose file object sits behind a plain HTTP(S)
// location.
type URLBackend struct {
	prober *prober
}

// Validate checks that the spec carries a well-formed http or https URL.
func (b *URLBackend) Validate(spec domain.FileSpec) error {
	if spec.URL == "" {
		return apperror.New(apperror.CodeStorageSpecInvalid,
			apperror.WithContext("url specs require a url"))
	}

	parsed, err := url.Parse(spec.URL)
	if err != nil {
		return apperror.New(apperror.CodeStorageSpecInvalid,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("cannot parse %q", spec.URL)))
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return apperror.New(apperror.CodeStorageSpecInvalid,
			apperror.WithContext(fmt.Sprintf("%q is not an http(s) location", spec.URL)))
	}
	return nil
}

// ResolveLocation returns the spec's URL unchanged.
func (b *URLBackend) ResolveLocation(spec domain.FileSpec) (string, error) {
	if err := b.Validate(spec); err != nil {
		return "", err
	}
	return spec.URL, nil
}

// FetchMetadata probes the location.
func (b *URLBackend) FetchMetadata(ctx context.Context, spec domain.FileSpec) (domain.FileMetadata, error) {
	location, err := b.ResolveLocation(spec)
	if err != nil {
		return domain.FileMetadata{}, err
	}
	return b.prober.probe(ctx, domain.TypeURL, location)
}
