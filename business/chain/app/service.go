// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ddomesh/ddo-node/business/chain/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
)

// ChainService coordinates the managed blockchain networks.
type ChainService struct {
	managers map[uint64]NetworkManager
	tokens   TokenReader
}

// NewChainService creates a new ChainService. tokens may be nil when no
// token reads are needed.
func NewChainService(managers map[uint64]NetworkManager, tokens TokenReader) *ChainService {
	return &ChainService{
		managers: managers,
		tokens:   tokens,
	}
}

// Start brings up every managed network. Networks fail independently: a
// pool that is completely unreachable leaves its network degraded while
// the others still come up, and the joined error says which ones.
func (s *ChainService) Start(ctx context.Context) error {
	var errs []error
	for _, manager := range s.managers {
		if err := manager.Start(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Status returns the connectivity snapshot for one network.
func (s *ChainService) Status(chainID uint64) (domain.NetworkStatus, error) {
	manager, err := s.manager(chainID)
	if err != nil {
		return domain.NetworkStatus{}, err
	}
	return manager.Status(), nil
}

// Statuses returns the connectivity snapshot of every managed network,
// ordered by chain identifier.
func (s *ChainService) Statuses() []domain.NetworkStatus {
	statuses := make([]domain.NetworkStatus, 0, len(s.managers))
	for _, manager := range s.managers {
		statuses = append(statuses, manager.Status())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ChainID < statuses[j].ChainID
	})
	return statuses
}

// IsChainReady reports whether the network answers requests right now.
// An unconfigured chain is simply not ready.
func (s *ChainService) IsChainReady(ctx context.Context, chainID uint64) bool {
	manager, err := s.manager(chainID)
	if err != nil {
		return false
	}
	return manager.IsReady(ctx)
}

// SigningIdentity returns the address the node signs chain requests with
// on the given network.
func (s *ChainService) SigningIdentity(chainID uint64) (string, error) {
	manager, err := s.manager(chainID)
	if err != nil {
		return "", err
	}
	return manager.Status().Signer, nil
}

// Endpoints returns the full configured endpoint pool for the network,
// primary first, with each endpoint's last probe outcome.
func (s *ChainService) Endpoints(chainID uint64) ([]domain.EndpointStatus, error) {
	manager, err := s.manager(chainID)
	if err != nil {
		return nil, err
	}
	return manager.EndpointStatuses(), nil
}

// Reconnect walks the network's endpoint pool again. Used by operators
// after a network has degraded; the manager does not retry on its own.
func (s *ChainService) Reconnect(ctx context.Context, chainID uint64) error {
	manager, err := s.manager(chainID)
	if err != nil {
		return err
	}
	return manager.Reconnect(ctx)
}

// VerifyUpdate confirms that the referenced transaction is mined. A zero
// chainID means the record does not say which network produced it, so
// every managed network is checked and the first confirmation wins.
func (s *ChainService) VerifyUpdate(ctx context.Context, chainID uint64, txHash string) error {
	if chainID != 0 {
		manager, err := s.manager(chainID)
		if err != nil {
			return err
		}
		return manager.VerifyTransaction(ctx, txHash)
	}

	if len(s.managers) == 0 {
		return apperror.New(apperror.CodeChainNotConfigured,
			apperror.WithContext("no networks configured to verify against"))
	}

	var lastErr error
	for _, manager := range s.managers {
		if err := manager.VerifyTransaction(ctx, txHash); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return apperror.New(apperror.CodeVerificationFailed,
		apperror.WithCause(lastErr),
		apperror.WithContext(fmt.Sprintf("transaction %s not confirmed on any network", txHash)))
}

// TokenMetadata reads ERC-20 metadata from the token contract.
func (s *ChainService) TokenMetadata(ctx context.Context, chainID uint64, address string) (domain.TokenMetadata, error) {
	if s.tokens == nil {
		return domain.TokenMetadata{}, apperror.New(apperror.CodeChainNotConfigured,
			apperror.WithContext("token reads are not configured"))
	}
	if _, err := s.manager(chainID); err != nil {
		return domain.TokenMetadata{}, err
	}
	return s.tokens.Metadata(ctx, chainID, address)
}

// Close shuts down every managed network.
func (s *ChainService) Close() error {
	var errs []error
	for _, manager := range s.managers {
		if err := manager.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ChainService) manager(chainID uint64) (NetworkManager, error) {
	manager, ok := s.managers[chainID]
	if !ok {
		return nil, apperror.New(apperror.CodeChainNotConfigured,
			apperror.WithContext(fmt.Sprintf("chain %d is not configured", chainID)))
	}
	return manager, nil
}
