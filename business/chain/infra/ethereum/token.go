package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ddomesh/ddo-node/business/chain/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
	"github.com/ddomesh/ddo-node/internal/cache"
	"github.com/ddomesh/ddo-node/internal/logger"
)

// tokenCacheTTL bounds how long contract metadata is served without
// re-reading the chain. Token metadata changes essentially never; the
// TTL mostly limits memory of dead tokens.
const tokenCacheTTL = 10 * time.Minute

// tokenReaderMetrics holds OTEL metric instruments.
type tokenReaderMetrics struct {
	lookups   metric.Int64Counter
	cacheHits metric.Int64Counter
	errors    metric.Int64Counter
}

// TokenReader reads ERC-20 metadata through the managed networks'
// connections and caches results per chain and address.
type TokenReader struct {
	managers map[uint64]*Manager
	erc20    abi.ABI
	cache    *cache.Cache[domain.TokenMetadata]
	logger   logger.LoggerInterface

	tracer  trace.Tracer
	metrics *tokenReaderMetrics
}

// NewTokenReader creates a token reader over the given managers.
func NewTokenReader(managers map[uint64]*Manager, log logger.LoggerInterface) (*TokenReader, error) {
	parsedABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	r := &TokenReader{
		managers: managers,
		erc20:    parsedABI,
		cache:    cache.New[domain.TokenMetadata](tokenCacheTTL),
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return r, nil
}

func (r *TokenReader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &tokenReaderMetrics{}

	r.metrics.lookups, err = meter.Int64Counter(
		"token_lookups_total",
		metric.WithDescription("Total token metadata lookups"),
	)
	if err != nil {
		return err
	}

	r.metrics.cacheHits, err = meter.Int64Counter(
		"token_cache_hits_total",
		metric.WithDescription("Token lookups served from cache"),
	)
	if err != nil {
		return err
	}

	r.metrics.errors, err = meter.Int64Counter(
		"token_lookup_errors_total",
		metric.WithDescription("Total token lookup errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Metadata reads name, symbol, decimals and total supply from the token
// contract. Results are cached; a stale cache entry is re-read.
func (r *TokenReader) Metadata(ctx context.Context, chainID uint64, address string) (domain.TokenMetadata, error) {
	ctx, span := r.tracer.Start(ctx, "chain.token_metadata",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(chainID)),
			attribute.String("address", address),
		),
	)
	defer span.End()

	r.metrics.lookups.Add(ctx, 1)

	if !common.IsHexAddress(address) {
		err := apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("%q is not a token address", address)))
		span.RecordError(err)
		return domain.TokenMetadata{}, err
	}
	contract := common.HexToAddress(address)

	key := fmt.Sprintf("%d:%s", chainID, strings.ToLower(contract.Hex()))
	if meta, fresh := r.cache.Get(key); fresh {
		r.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return meta, nil
	}

	manager, ok := r.managers[chainID]
	if !ok {
		return domain.TokenMetadata{}, apperror.New(apperror.CodeChainNotConfigured,
			apperror.WithContext(fmt.Sprintf("chain %d is not configured", chainID)))
	}

	meta, err := r.read(ctx, manager, chainID, contract)
	if err != nil {
		r.metrics.errors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return domain.TokenMetadata{}, err
	}

	r.cache.Put(key, meta)

	span.SetStatus(codes.Ok, "fetched")
	r.logger.Debug(ctx, "token metadata read",
		"chain_id", chainID, "address", contract.Hex(), "symbol", meta.Symbol)
	return meta, nil
}

// read performs the four metadata calls against the contract.
func (r *TokenReader) read(ctx context.Context, manager *Manager, chainID uint64, contract common.Address) (domain.TokenMetadata, error) {
	name, err := r.callString(ctx, manager, contract, "name")
	if err != nil {
		return domain.TokenMetadata{}, err
	}

	symbol, err := r.callString(ctx, manager, contract, "symbol")
	if err != nil {
		return domain.TokenMetadata{}, err
	}

	decimals, err := r.callUint8(ctx, manager, contract, "decimals")
	if err != nil {
		return domain.TokenMetadata{}, err
	}

	supply, err := r.callBigInt(ctx, manager, contract, "totalSupply")
	if err != nil {
		return domain.TokenMetadata{}, err
	}

	return domain.TokenMetadata{
		ChainID:     chainID,
		Address:     contract.Hex(),
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: domain.NewTokenAmount(supply, decimals),
	}, nil
}

func (r *TokenReader) call(ctx context.Context, manager *Manager, contract common.Address, method string) ([]interface{}, error) {
	callData, err := r.erc20.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("encode %s call: %w", method, err)
	}

	result, err := manager.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: callData,
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeTokenLookupFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s() on %s", method, contract.Hex())))
	}

	outputs, err := r.erc20.Unpack(method, result)
	if err != nil {
		return nil, apperror.New(apperror.CodeTokenLookupFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("decode %s() result from %s", method, contract.Hex())))
	}
	if len(outputs) != 1 {
		return nil, apperror.New(apperror.CodeTokenLookupFailed,
			apperror.WithContext(fmt.Sprintf("%s() returned %d values", method, len(outputs))))
	}
	return outputs, nil
}

func (r *TokenReader) callString(ctx context.Context, manager *Manager, contract common.Address, method string) (string, error) {
	outputs, err := r.call(ctx, manager, contract, method)
	if err != nil {
		return "", err
	}
	value, ok := outputs[0].(string)
	if !ok {
		return "", apperror.New(apperror.CodeTokenLookupFailed,
			apperror.WithContext(fmt.Sprintf("%s() did not return a string", method)))
	}
	return value, nil
}

func (r *TokenReader) callUint8(ctx context.Context, manager *Manager, contract common.Address, method string) (uint8, error) {
	outputs, err := r.call(ctx, manager, contract, method)
	if err != nil {
		return 0, err
	}
	value, ok := outputs[0].(uint8)
	if !ok {
		return 0, apperror.New(apperror.CodeTokenLookupFailed,
			apperror.WithContext(fmt.Sprintf("%s() did not return a uint8", method)))
	}
	return value, nil
}

func (r *TokenReader) callBigInt(ctx context.Context, manager *Manager, contract common.Address, method string) (*big.Int, error) {
	outputs, err := r.call(ctx, manager, contract, method)
	if err != nil {
		return nil, err
	}
	value, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeTokenLookupFailed,
			apperror.WithContext(fmt.Sprintf("%s() did not return an integer", method)))
	}
	return value, nil
}
