// Package ethereum provides Ethereum blockchain infrastructure adapters.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ddomesh/ddo-node/business/chain/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
	"github.com/ddomesh/ddo-node/internal/circuitbreaker"
	"github.com/ddomesh/ddo-node/internal/events"
	"github.com/ddomesh/ddo-node/internal/logger"
)

const (
	tracerName = "github.com/ddomesh/ddo-node/business/chain/infra/ethereum"
	meterName  = "github.com/ddomesh/ddo-node/business/chain/infra/ethereum"
)

// DefaultGracePeriod is how long a freshly rebuilt connection gets to
// report its own failure before a fallback candidate is trusted.
const DefaultGracePeriod = 2 * time.Second

// NodeClient is the slice of the go-ethereum client the manager relies on.
type NodeClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// dialFunc opens a client for one endpoint. Tests substitute a fake.
type dialFunc func(ctx context.Context, rawurl string) (NodeClient, error)

func dialNode(ctx context.Context, rawurl string) (NodeClient, error) {
	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ManagerConfig holds configuration for one managed network.
type ManagerConfig struct {
	ChainID     uint64        // Expected chain identifier
	Name        string        // Human-readable network name
	Endpoints   []string      // RPC endpoint pool, primary first
	PrivateKey  string        // Hex-encoded signing key (optional)
	GracePeriod time.Duration // Wait after each candidate rebuild
	HeadBuffer  int           // Head notification channel buffer
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig(chainID uint64, name string, endpoints []string) ManagerConfig {
	return ManagerConfig{
		ChainID:     chainID,
		Name:        name,
		Endpoints:   endpoints,
		GracePeriod: DefaultGracePeriod,
		HeadBuffer:  16,
	}
}

// endpointProbe is the last observed outcome for one pool endpoint.
type endpointProbe struct {
	state string
	at    time.Time
}

// managerMetrics holds OTEL metric instruments.
type managerMetrics struct {
	headsReceived   metric.Int64Counter
	connectionLost  metric.Int64Counter
	probeAttempts   metric.Int64Counter
	failovers       metric.Int64Counter
	connectionState metric.Int64Gauge
}

// Manager implements app.NetworkManager for one Ethereum-compatible
// network. The endpoint pool is immutable after construction; the
// connection, signing identity and head subscription always belong to
// exactly one endpoint and are rebuilt together on every failover.
//
// Loss of the connection is detected passively, from the head
// subscription's own error channel and from notifications that cannot be
// classified as live heads of the expected chain. A loss triggers one
// walk of the pool from the last fallback back to the primary; an
// exhausted pool leaves the manager degraded until Reconnect is called.
type Manager struct {
	config ManagerConfig
	logger logger.LoggerInterface
	bus    *events.Bus
	dial   dialFunc

	key *ecdsa.PrivateKey // nil when no signing key is configured

	// connMu guards the client/signer/endpoint triple so an endpoint
	// swap appears atomic to concurrent chain operations.
	connMu   sync.RWMutex
	client   NodeClient
	signer   *bind.TransactOpts
	endpoint string

	// State
	state      domain.ConnectionState
	stateMu    sync.RWMutex
	healthy    atomic.Bool
	probing    atomic.Bool
	lastBlock  atomic.Uint64
	lastHeadAt atomic.Int64
	failovers  atomic.Int32

	// Per-endpoint probe bookkeeping
	endpointMu     sync.Mutex
	endpointStates map[string]endpointProbe

	// Lifecycle
	done    chan struct{}
	closeMu sync.Mutex
	closed  atomic.Bool

	// Circuit breakers
	receiptCB *circuitbreaker.CircuitBreaker[*types.Receipt]
	callCB    *circuitbreaker.CircuitBreaker[[]byte]

	// Observability
	tracer  trace.Tracer
	metrics *managerMetrics
}

// NewManager creates a manager for one network. The connection itself is
// established by Start. bus may be nil.
func NewManager(cfg ManagerConfig, log logger.LoggerInterface, bus *events.Bus) (*Manager, error) {
	if cfg.ChainID == 0 {
		return nil, apperror.New(apperror.CodeChainNotConfigured,
			apperror.WithContext("chain id is required"))
	}
	if len(cfg.Endpoints) == 0 {
		return nil, apperror.New(apperror.CodeChainNotConfigured,
			apperror.WithContext(fmt.Sprintf("chain %d has no endpoints", cfg.ChainID)))
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.HeadBuffer <= 0 {
		cfg.HeadBuffer = 16
	}

	m := &Manager{
		config:         cfg,
		logger:         log,
		bus:            bus,
		dial:           dialNode,
		state:          domain.StateProbing,
		endpointStates: make(map[string]endpointProbe, len(cfg.Endpoints)),
		done:           make(chan struct{}),
		tracer:         otel.Tracer(tracerName),
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, apperror.New(apperror.CodeSigningIdentityFailed,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("invalid signing key for chain %d", cfg.ChainID)))
		}
		m.key = key
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	m.initCircuitBreakers()

	return m, nil
}

// initMetrics initializes OTEL metric instruments.
func (m *Manager) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	m.metrics = &managerMetrics{}

	m.metrics.headsReceived, err = meter.Int64Counter(
		"chain_heads_received_total",
		metric.WithDescription("Total head notifications received"),
		metric.WithUnit("{head}"),
	)
	if err != nil {
		return err
	}

	m.metrics.connectionLost, err = meter.Int64Counter(
		"chain_connection_lost_total",
		metric.WithDescription("Times the active connection was declared lost"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	m.metrics.probeAttempts, err = meter.Int64Counter(
		"chain_probe_attempts_total",
		metric.WithDescription("Fallback candidates probed"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return err
	}

	m.metrics.failovers, err = meter.Int64Counter(
		"chain_failovers_total",
		metric.WithDescription("Completed endpoint failovers"),
		metric.WithUnit("{failover}"),
	)
	if err != nil {
		return err
	}

	m.metrics.connectionState, err = meter.Int64Gauge(
		"chain_connection_state",
		metric.WithDescription("Network connection state (0=degraded, 1=probing, 2=connected)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// initCircuitBreakers initializes circuit breakers for RPC reads.
func (m *Manager) initCircuitBreakers() {
	name := fmt.Sprintf("chain-%d", m.config.ChainID)

	receiptCfg := circuitbreaker.DefaultConfig(name + "-receipt")
	receiptCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		m.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	m.receiptCB = circuitbreaker.New[*types.Receipt](receiptCfg)

	callCfg := circuitbreaker.DefaultConfig(name + "-call")
	callCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		m.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	m.callCB = circuitbreaker.New[[]byte](callCfg)
}

// Start connects to the primary endpoint. When the primary cannot be
// reached the manager immediately walks the rest of the pool; a fully
// unreachable pool leaves the manager degraded and the error is returned
// so the caller decides when to retry.
func (m *Manager) Start(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "chain.start",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(m.config.ChainID)),
			attribute.String("network", m.config.Name),
		),
	)
	defer span.End()

	if m.closed.Load() {
		err := errors.New("manager is closed")
		span.RecordError(err)
		return err
	}

	primary := m.config.Endpoints[0]
	if err := m.connect(ctx, primary); err != nil {
		m.logger.Warn(ctx, "primary endpoint unreachable, walking pool",
			"chain_id", m.config.ChainID, "endpoint", primary, "error", err)
		span.AddEvent("primary_failed")

		if err := m.Reconnect(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pool exhausted")
			return err
		}

		span.SetStatus(codes.Ok, "connected via fallback")
		return nil
	}

	// Reachability is confirmed asynchronously by the subscription's own
	// error channel; until it says otherwise the connection counts as up.
	m.setState(domain.StateConnected, "connected to primary")
	span.SetStatus(codes.Ok, "connected")
	return nil
}

// connect rebuilds the connection, signing identity and head subscription
// for one endpoint, then swaps all three in as a single step. Operations
// in flight against the old connection may fail; their callers retry.
func (m *Manager) connect(ctx context.Context, endpoint string) error {
	ctx, span := m.tracer.Start(ctx, "chain.connect",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(m.config.ChainID)),
			attribute.String("endpoint", endpoint),
		),
	)
	defer span.End()

	client, err := m.dial(ctx, endpoint)
	if err != nil {
		m.noteEndpoint(endpoint, "unreachable")
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	// An endpoint that reports the wrong chain id is misconfigured, not
	// merely unreachable.
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		m.noteEndpoint(endpoint, "unreachable")
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain id check failed")
		return fmt.Errorf("chain id check %s: %w", endpoint, err)
	}
	if chainID == nil || !chainID.IsUint64() || chainID.Uint64() != m.config.ChainID {
		client.Close()
		m.noteEndpoint(endpoint, "rejected")
		err := fmt.Errorf("endpoint %s serves chain %v, want %d", endpoint, chainID, m.config.ChainID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "wrong chain")
		return err
	}

	var signer *bind.TransactOpts
	if m.key != nil {
		signer, err = bind.NewKeyedTransactorWithChainID(m.key, new(big.Int).SetUint64(m.config.ChainID))
		if err != nil {
			client.Close()
			span.RecordError(err)
			span.SetStatus(codes.Error, "signer rebuild failed")
			return apperror.New(apperror.CodeSigningIdentityFailed,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("rebuild signer for chain %d", m.config.ChainID)))
		}
	}

	// The fresh subscription is installed before any grace-period wait so
	// the new endpoint's own failure signal cannot be missed.
	heads := make(chan *types.Header, m.config.HeadBuffer)
	sub, err := client.SubscribeNewHead(ctx, heads)
	if err != nil {
		client.Close()
		m.noteEndpoint(endpoint, "unreachable")
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscribe failed")
		return apperror.New(apperror.CodeChainSubscribeFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("subscribe heads on %s", endpoint)))
	}

	m.connMu.Lock()
	old := m.client
	m.client = client
	m.signer = signer
	m.endpoint = endpoint
	m.connMu.Unlock()

	if old != nil {
		old.Close() // tears down the superseded subscription too
	}

	m.noteEndpoint(endpoint, "connected")
	m.healthy.Store(true)
	go m.watch(client, heads, sub)

	m.logger.Info(ctx, "endpoint connected",
		"chain_id", m.config.ChainID, "network", m.config.Name, "endpoint", endpoint)
	span.SetStatus(codes.Ok, "connected")
	return nil
}

// watch consumes head notifications until the subscription dies or a
// notification cannot be classified as a live head. Both count as loss
// of the connection, never as a crash.
func (m *Manager) watch(client NodeClient, heads <-chan *types.Header, sub ethereum.Subscription) {
	defer sub.Unsubscribe()

	for {
		select {
		case <-m.done:
			return
		case err := <-sub.Err():
			if m.superseded(client) {
				return
			}
			m.logger.Error(context.Background(), "head subscription lost",
				"chain_id", m.config.ChainID, "endpoint", m.ActiveEndpoint(), "error", err)
			m.onConnectionLost("subscription error")
			return
		case head := <-heads:
			if m.superseded(client) {
				return
			}
			if !validHead(head) {
				m.logger.Warn(context.Background(), "malformed head notification",
					"chain_id", m.config.ChainID, "endpoint", m.ActiveEndpoint())
				m.onConnectionLost("malformed head notification")
				return
			}
			m.lastBlock.Store(head.Number.Uint64())
			m.lastHeadAt.Store(time.Now().UnixNano())
			m.metrics.headsReceived.Add(context.Background(), 1,
				metric.WithAttributes(attribute.Int64("chain_id", int64(m.config.ChainID))))
			m.logger.Debug(context.Background(), "head received",
				"chain_id", m.config.ChainID, "number", head.Number.Uint64())
		}
	}
}

// validHead classifies a subscription notification. Anything without a
// block number is not a live head.
func validHead(head *types.Header) bool {
	return head != nil && head.Number != nil
}

// superseded reports whether client is no longer the active connection,
// in which case its watcher exits quietly.
func (m *Manager) superseded(client NodeClient) bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.client != client
}

// onConnectionLost clears the healthy flag and runs one fallback walk.
// Only one walk runs at a time; a loss signal arriving while a walk is
// already probing candidates is dropped, the walk rechecks readiness
// itself.
func (m *Manager) onConnectionLost(reason string) {
	if m.closed.Load() {
		return
	}

	m.healthy.Store(false)
	if active := m.ActiveEndpoint(); active != "" {
		m.noteEndpoint(active, "lost")
	}
	m.metrics.connectionLost.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Int64("chain_id", int64(m.config.ChainID))))

	if !m.probing.CompareAndSwap(false, true) {
		return
	}
	defer m.probing.Store(false)

	m.setState(domain.StateDegraded, reason)

	if err := m.walkPool(context.Background()); err != nil {
		m.logger.Error(context.Background(), "endpoint pool exhausted",
			"chain_id", m.config.ChainID, "network", m.config.Name, "error", err)
	}
}

// Reconnect runs a fallback walk on demand. The manager never retries on
// its own after the pool is exhausted; recovery from the degraded state
// is triggered by the caller, e.g. through the HTTP API.
func (m *Manager) Reconnect(ctx context.Context) error {
	if m.closed.Load() {
		return errors.New("manager is closed")
	}
	if !m.probing.CompareAndSwap(false, true) {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("chain %d is already probing", m.config.ChainID)))
	}
	defer m.probing.Store(false)

	return m.walkPool(ctx)
}

// walkPool tries every endpoint from the end of the pool back to index 0,
// so the least-recently-tried fallback goes first and the primary is
// retried last. The first candidate that survives the grace period and
// answers a readiness check becomes the active endpoint; the walk stops
// there. An exhausted pool leaves the manager degraded.
func (m *Manager) walkPool(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "chain.walk_pool",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(m.config.ChainID)),
			attribute.Int("pool_size", len(m.config.Endpoints)),
		),
	)
	defer span.End()

	m.setState(domain.StateProbing, "walking endpoint pool")

	pool := m.config.Endpoints
	for i := len(pool) - 1; i >= 0; i-- {
		endpoint := pool[i]

		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return ctx.Err()
		case <-m.done:
			return errors.New("manager is closed")
		default:
		}

		m.metrics.probeAttempts.Add(ctx, 1,
			metric.WithAttributes(attribute.Int64("chain_id", int64(m.config.ChainID))))
		m.logger.Info(ctx, "probing endpoint",
			"chain_id", m.config.ChainID, "endpoint", endpoint, "position", i)

		if err := m.connect(ctx, endpoint); err != nil {
			m.logger.Warn(ctx, "candidate endpoint rejected",
				"chain_id", m.config.ChainID, "endpoint", endpoint, "error", err)
			continue
		}

		// The candidate's subscription is already live; give its error
		// channel the grace period to report a dead endpoint.
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return ctx.Err()
		case <-m.done:
			return errors.New("manager is closed")
		case <-time.After(m.config.GracePeriod):
		}

		if !m.IsReady(ctx) {
			m.noteEndpoint(endpoint, "unstable")
			m.logger.Warn(ctx, "candidate endpoint failed readiness check",
				"chain_id", m.config.ChainID, "endpoint", endpoint)
			continue
		}

		m.failovers.Add(1)
		m.metrics.failovers.Add(ctx, 1,
			metric.WithAttributes(attribute.Int64("chain_id", int64(m.config.ChainID))))
		m.setState(domain.StateConnected, fmt.Sprintf("failed over to %s", endpoint))
		span.SetStatus(codes.Ok, "failed over")
		return nil
	}

	m.setState(domain.StateDegraded, "endpoint pool exhausted")
	err := apperror.New(apperror.CodeChainPoolExhausted,
		apperror.WithContext(fmt.Sprintf("none of %d endpoints answered for chain %d", len(pool), m.config.ChainID)))
	span.RecordError(err)
	span.SetStatus(codes.Error, "pool exhausted")
	return err
}

// IsReady reports whether the network answers requests. It trusts the
// healthy flag when set and otherwise performs a single active probe; it
// never mutates connection or retry state itself.
func (m *Manager) IsReady(ctx context.Context) bool {
	if m.healthy.Load() {
		return true
	}

	m.connMu.RLock()
	client := m.client
	m.connMu.RUnlock()
	if client == nil {
		return false
	}

	if _, err := client.BlockNumber(ctx); err != nil {
		return false
	}
	return true
}

// VerifyTransaction confirms that the referenced transaction is mined and
// did not revert on this network.
func (m *Manager) VerifyTransaction(ctx context.Context, txHash string) error {
	ctx, span := m.tracer.Start(ctx, "chain.verify_transaction",
		trace.WithAttributes(
			attribute.Int64("chain_id", int64(m.config.ChainID)),
			attribute.String("tx_hash", txHash),
		),
	)
	defer span.End()

	hash, err := parseTxHash(txHash)
	if err != nil {
		span.RecordError(err)
		return apperror.New(apperror.CodeVerificationFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("invalid transaction reference %q", txHash)))
	}

	m.connMu.RLock()
	client := m.client
	m.connMu.RUnlock()
	if client == nil {
		return apperror.New(apperror.CodeChainConnectionFailed,
			apperror.WithContext(fmt.Sprintf("chain %d has no live connection", m.config.ChainID)))
	}

	receipt, err := m.receiptCB.Execute(func() (*types.Receipt, error) {
		return client.TransactionReceipt(ctx, hash)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "receipt lookup failed")
		return apperror.New(apperror.CodeVerificationFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("transaction %s not confirmed on chain %d", txHash, m.config.ChainID)))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		span.AddEvent("transaction_reverted")
		return apperror.New(apperror.CodeVerificationFailed,
			apperror.WithContext(fmt.Sprintf("transaction %s reverted on chain %d", txHash, m.config.ChainID)))
	}

	span.SetStatus(codes.Ok, "confirmed")
	return nil
}

// parseTxHash validates a 32-byte hex transaction hash.
func parseTxHash(s string) (common.Hash, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) != common.HashLength*2 {
		return common.Hash{}, fmt.Errorf("transaction hash must be %d hex characters", common.HashLength*2)
	}
	bytes, err := hexutil.Decode("0x" + trimmed)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(bytes), nil
}

// CallContract executes a read-only contract call through the active
// connection.
func (m *Manager) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	m.connMu.RLock()
	client := m.client
	m.connMu.RUnlock()
	if client == nil {
		return nil, apperror.New(apperror.CodeChainConnectionFailed,
			apperror.WithContext(fmt.Sprintf("chain %d has no live connection", m.config.ChainID)))
	}

	out, err := m.callCB.Execute(func() ([]byte, error) {
		return client.CallContract(ctx, msg, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("contract call on chain %d", m.config.ChainID)))
	}
	return out, nil
}

// ChainID returns the managed chain identifier.
func (m *Manager) ChainID() uint64 {
	return m.config.ChainID
}

// ActiveEndpoint returns the endpoint the connection is currently bound to.
func (m *Manager) ActiveEndpoint() string {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.endpoint
}

// Endpoints returns the configured pool, primary first.
func (m *Manager) Endpoints() []string {
	out := make([]string, len(m.config.Endpoints))
	copy(out, m.config.Endpoints)
	return out
}

// noteEndpoint records the outcome of the most recent probe of an endpoint.
func (m *Manager) noteEndpoint(endpoint, state string) {
	m.endpointMu.Lock()
	m.endpointStates[endpoint] = endpointProbe{state: state, at: time.Now().UTC()}
	m.endpointMu.Unlock()
}

// EndpointStatuses returns per-endpoint observability for the pool,
// primary first. An endpoint is active when the live connection is bound
// to it.
func (m *Manager) EndpointStatuses() []domain.EndpointStatus {
	active := m.ActiveEndpoint()
	connected := m.State() == domain.StateConnected

	m.endpointMu.Lock()
	defer m.endpointMu.Unlock()

	out := make([]domain.EndpointStatus, len(m.config.Endpoints))
	for i, endpoint := range m.config.Endpoints {
		role := "fallback"
		if i == 0 {
			role = "primary"
		}

		status := domain.EndpointStatus{
			URL:    endpoint,
			Role:   role,
			Active: connected && endpoint == active,
		}
		if probe, ok := m.endpointStates[endpoint]; ok {
			status.LastState = probe.state
			status.LastChecked = probe.at
		}
		out[i] = status
	}
	return out
}

// Client returns the live connection handle, or nil before Start.
func (m *Manager) Client() NodeClient {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.client
}

// Signer returns the transact opts bound to the active connection, or nil
// when no signing key is configured.
func (m *Manager) Signer() *bind.TransactOpts {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.signer
}

// SignerAddress returns the signing identity as a hex address, or the
// empty string when no key is configured.
func (m *Manager) SignerAddress() string {
	if m.key == nil {
		return ""
	}
	return crypto.PubkeyToAddress(m.key.PublicKey).Hex()
}

// State returns the current connection state.
func (m *Manager) State() domain.ConnectionState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Status returns an observability snapshot of the network.
func (m *Manager) Status() domain.NetworkStatus {
	var lastHead time.Time
	if ns := m.lastHeadAt.Load(); ns > 0 {
		lastHead = time.Unix(0, ns).UTC()
	}

	return domain.NetworkStatus{
		ChainID:    m.config.ChainID,
		Name:       m.config.Name,
		State:      m.State(),
		Endpoint:   m.ActiveEndpoint(),
		Endpoints:  m.Endpoints(),
		Signer:     m.SignerAddress(),
		LastBlock:  m.lastBlock.Load(),
		LastHeadAt: lastHead,
		Failovers:  int(m.failovers.Load()),
	}
}

// Close tears down the subscription and the connection.
func (m *Manager) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed.Load() {
		return nil
	}

	m.logger.Info(context.Background(), "closing network manager",
		"chain_id", m.config.ChainID, "network", m.config.Name)

	m.closed.Store(true)
	close(m.done)

	m.connMu.Lock()
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.signer = nil
	m.connMu.Unlock()

	return nil
}

// setState updates the connection state, records metrics and publishes a
// state-change event. Never called while connMu is held.
func (m *Manager) setState(state domain.ConnectionState, reason string) {
	m.stateMu.Lock()
	prev := m.state
	m.state = state
	m.stateMu.Unlock()

	if prev == state {
		return
	}

	stateValue := int64(0)
	switch state {
	case domain.StateDegraded:
		stateValue = 0
	case domain.StateProbing:
		stateValue = 1
	case domain.StateConnected:
		stateValue = 2
	}
	m.metrics.connectionState.Record(context.Background(), stateValue,
		metric.WithAttributes(attribute.Int64("chain_id", int64(m.config.ChainID))))

	m.logger.Info(context.Background(), "network state change",
		"chain_id", m.config.ChainID, "network", m.config.Name,
		"from", string(prev), "to", string(state), "reason", reason)

	if m.bus != nil {
		m.bus.Publish(events.TopicChainState, events.ChainStateEvent{
			ChainID:  m.config.ChainID,
			Network:  m.config.Name,
			From:     string(prev),
			To:       string(state),
			Endpoint: m.ActiveEndpoint(),
			Reason:   reason,
			At:       time.Now().UTC(),
		})
	}
}
