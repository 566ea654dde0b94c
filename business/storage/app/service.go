// Package app contains application services and port definitions for the storage context.
package app

import (
	"context"
	"fmt"

	"github.com/ddomesh/ddo-node/business/storage/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
)

// StorageService dispatches file-object operations to the backend
// matching a spec's type tag.
type StorageService struct {
	backends map[domain.StorageType]Backend
}

// NewStorageService creates a new StorageService.
func NewStorageService(backends map[domain.StorageType]Backend) *StorageService {
	return &StorageService{backends: backends}
}

// ForType returns the backend for the given type tag.
func (s *StorageService) ForType(t domain.StorageType) (Backend, error) {
	backend, ok := s.backends[t]
	if !ok {
		return nil, apperror.New(apperror.CodeStorageUnsupported,
			apperror.WithContext(fmt.Sprintf("storage type %q is not supported", t)))
	}
	return backend, nil
}

// FileInfo validates the spec and probes its file object.
func (s *StorageService) FileInfo(ctx context.Context, spec domain.FileSpec) (domain.FileMetadata, error) {
	backend, err := s.ForType(spec.Type)
	if err != nil {
		return domain.FileMetadata{}, err
	}

	if err := backend.Validate(spec); err != nil {
		return domain.FileMetadata{}, err
	}

	return backend.FetchMetadata(ctx, spec)
}

// Types lists the supported type tags.
func (s *StorageService) Types() []domain.StorageType {
	types := make([]domain.StorageType, 0, len(s.backends))
	for t := range s.backends {
		types = append(types, t)
	}
	return types
}
