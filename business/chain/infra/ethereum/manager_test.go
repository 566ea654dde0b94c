package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ddomesh/ddo-node/business/chain/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
	"github.com/ddomesh/ddo-node/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

// fakeSubscription is an in-memory head subscription.
type fakeSubscription struct {
	errs chan error
	once sync.Once
}

func (s *fakeSubscription) Err() <-chan error { return s.errs }

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.errs) })
}

// fakeClient is an in-memory NodeClient serving one endpoint.
type fakeClient struct {
	chainID    *big.Int
	subErr     error
	blockErr   error
	receipts   map[common.Hash]*types.Receipt
	receiptErr error

	mu     sync.Mutex
	heads  chan<- *types.Header
	sub    *fakeSubscription
	closed bool
}

func newFakeClient(chainID uint64) *fakeClient {
	return &fakeClient{
		chainID:  new(big.Int).SetUint64(chainID),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (c *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.chainID, nil
}

func (c *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	if c.blockErr != nil {
		return 0, c.blockErr
	}
	return 100, nil
}

func (c *fakeClient) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	if c.subErr != nil {
		return nil, c.subErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heads = ch
	c.sub = &fakeSubscription{errs: make(chan error, 1)}
	return c.sub, nil
}

func (c *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if c.receiptErr != nil {
		return nil, c.receiptErr
	}
	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (c *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// emitHead delivers a head notification to the current subscriber.
func (c *fakeClient) emitHead(head *types.Header) {
	c.mu.Lock()
	ch := c.heads
	c.mu.Unlock()
	if ch != nil {
		ch <- head
	}
}

// failSubscription delivers an error on the subscription's error channel.
func (c *fakeClient) failSubscription(err error) {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub != nil {
		sub.errs <- err
	}
}

// fakeDialer maps endpoints to canned clients and records dial order.
type fakeDialer struct {
	mu      sync.Mutex
	clients map[string]*fakeClient
	order   []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{clients: make(map[string]*fakeClient)}
}

func (d *fakeDialer) serve(endpoint string, client *fakeClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[endpoint] = client
}

func (d *fakeDialer) dial(ctx context.Context, rawurl string) (NodeClient, error) {
	d.mu.Lock()
	d.order = append(d.order, rawurl)
	client, ok := d.clients[rawurl]
	d.mu.Unlock()

	if !ok {
		return nil, errors.New("connection refused")
	}
	return client, nil
}

func (d *fakeDialer) dialOrder() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

func newTestManager(t *testing.T, endpoints []string, dialer *fakeDialer) *Manager {
	t.Helper()

	cfg := DefaultManagerConfig(1, "testnet", endpoints)
	cfg.GracePeriod = 20 * time.Millisecond

	m, err := NewManager(cfg, &mockLogger{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.dial = dialer.dial
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func equalOrder(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestManager_StartConnectsPrimary(t *testing.T) {
	dialer := newFakeDialer()
	dialer.serve("ws://primary", newFakeClient(1))
	m := newTestManager(t, []string{"ws://primary", "ws://f1"}, dialer)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := m.State(); got != domain.StateConnected {
		t.Errorf("expected connected, got %s", got)
	}
	if got := m.ActiveEndpoint(); got != "ws://primary" {
		t.Errorf("expected primary endpoint, got %s", got)
	}
	if order := dialer.dialOrder(); !equalOrder(order, []string{"ws://primary"}) {
		t.Errorf("unexpected dial order: %v", order)
	}
}

func TestManager_FallbackWalksPoolFromTheEnd(t *testing.T) {
	// Nothing is reachable: the walk must try f2, then f1, then retry the
	// primary, and end degraded.
	dialer := newFakeDialer()
	m := newTestManager(t, []string{"ws://primary", "ws://f1", "ws://f2"}, dialer)

	err := m.Reconnect(context.Background())
	if apperror.GetCode(err) != apperror.CodeChainPoolExhausted {
		t.Fatalf("expected CHAIN_POOL_EXHAUSTED, got %v", err)
	}

	want := []string{"ws://f2", "ws://f1", "ws://primary"}
	if order := dialer.dialOrder(); !equalOrder(order, want) {
		t.Errorf("expected walk order %v, got %v", want, order)
	}
	if got := m.State(); got != domain.StateDegraded {
		t.Errorf("expected degraded, got %s", got)
	}
}

func TestManager_FallbackStopsAtFirstConfirmedCandidate(t *testing.T) {
	// Only f2 answers; since the walk starts from the end, f2 is tried
	// first and nothing else is dialed in this pass.
	dialer := newFakeDialer()
	dialer.serve("ws://f2", newFakeClient(1))
	m := newTestManager(t, []string{"ws://primary", "ws://f1", "ws://f2"}, dialer)

	if err := m.Reconnect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order := dialer.dialOrder(); !equalOrder(order, []string{"ws://f2"}) {
		t.Errorf("expected only f2 dialed, got %v", order)
	}
	if got := m.ActiveEndpoint(); got != "ws://f2" {
		t.Errorf("expected f2 active, got %s", got)
	}
	if got := m.State(); got != domain.StateConnected {
		t.Errorf("expected connected, got %s", got)
	}
	if m.Status().Failovers != 1 {
		t.Errorf("expected 1 failover, got %d", m.Status().Failovers)
	}
}

func TestManager_StartFallsBackWhenPrimaryUnreachable(t *testing.T) {
	dialer := newFakeDialer()
	dialer.serve("ws://f1", newFakeClient(1))
	m := newTestManager(t, []string{"ws://primary", "ws://f1", "ws://f2"}, dialer)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Start tries the primary, then walks from the end: f2 fails, f1 wins.
	want := []string{"ws://primary", "ws://f2", "ws://f1"}
	if order := dialer.dialOrder(); !equalOrder(order, want) {
		t.Errorf("expected dial order %v, got %v", want, order)
	}
	if got := m.ActiveEndpoint(); got != "ws://f1" {
		t.Errorf("expected f1 active, got %s", got)
	}
}

func TestManager_SubscriptionErrorTriggersFailover(t *testing.T) {
	primary := newFakeClient(1)
	fallback := newFakeClient(1)
	dialer := newFakeDialer()
	dialer.serve("ws://primary", primary)
	dialer.serve("ws://f1", fallback)
	m := newTestManager(t, []string{"ws://primary", "ws://f1"}, dialer)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	primary.failSubscription(errors.New("websocket closed"))

	waitFor(t, "failover to f1", func() bool {
		return m.State() == domain.StateConnected && m.ActiveEndpoint() == "ws://f1"
	})
	if m.Status().Failovers == 0 {
		t.Error("expected a recorded failover")
	}
}

func TestManager_MalformedHeadTreatedAsConnectionLoss(t *testing.T) {
	primary := newFakeClient(1)
	fallback := newFakeClient(1)
	dialer := newFakeDialer()
	dialer.serve("ws://primary", primary)
	dialer.serve("ws://f1", fallback)
	m := newTestManager(t, []string{"ws://primary", "ws://f1"}, dialer)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A notification that is not a live head must never crash the
	// watcher; it demotes the connection instead.
	primary.emitHead(nil)

	waitFor(t, "failover to f1", func() bool {
		return m.State() == domain.StateConnected && m.ActiveEndpoint() == "ws://f1"
	})
}

func TestManager_WrongChainEndpointRejected(t *testing.T) {
	impostor := newFakeClient(5)
	fallback := newFakeClient(1)
	dialer := newFakeDialer()
	dialer.serve("ws://primary", impostor)
	dialer.serve("ws://f1", fallback)
	m := newTestManager(t, []string{"ws://primary", "ws://f1"}, dialer)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := m.ActiveEndpoint(); got != "ws://f1" {
		t.Errorf("expected f1 active, got %s", got)
	}
	impostor.mu.Lock()
	closed := impostor.closed
	impostor.mu.Unlock()
	if !closed {
		t.Error("expected the wrong-chain client to be closed")
	}
}

func TestManager_HeadUpdatesStatus(t *testing.T) {
	primary := newFakeClient(1)
	dialer := newFakeDialer()
	dialer.serve("ws://primary", primary)
	m := newTestManager(t, []string{"ws://primary"}, dialer)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	primary.emitHead(&types.Header{Number: big.NewInt(42)})

	waitFor(t, "head to land in status", func() bool {
		return m.Status().LastBlock == 42
	})
}

func TestManager_VerifyTransaction(t *testing.T) {
	confirmed := common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	reverted := common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")

	primary := newFakeClient(1)
	primary.receipts[confirmed] = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	primary.receipts[reverted] = &types.Receipt{Status: types.ReceiptStatusFailed}

	dialer := newFakeDialer()
	dialer.serve("ws://primary", primary)
	m := newTestManager(t, []string{"ws://primary"}, dialer)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("confirmed", func(t *testing.T) {
		if err := m.VerifyTransaction(context.Background(), confirmed.Hex()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("reverted", func(t *testing.T) {
		err := m.VerifyTransaction(context.Background(), reverted.Hex())
		if apperror.GetCode(err) != apperror.CodeVerificationFailed {
			t.Errorf("expected UPDATE_VERIFICATION_FAILED, got %v", err)
		}
	})

	t.Run("unknown transaction", func(t *testing.T) {
		missing := common.HexToHash("0x3333333333333333333333333333333333333333333333333333333333333333")
		err := m.VerifyTransaction(context.Background(), missing.Hex())
		if apperror.GetCode(err) != apperror.CodeVerificationFailed {
			t.Errorf("expected UPDATE_VERIFICATION_FAILED, got %v", err)
		}
	})

	t.Run("malformed reference", func(t *testing.T) {
		err := m.VerifyTransaction(context.Background(), "not-a-hash")
		if apperror.GetCode(err) != apperror.CodeVerificationFailed {
			t.Errorf("expected UPDATE_VERIFICATION_FAILED, got %v", err)
		}
	})
}

func TestManager_IsReadyFallsBackToActiveProbe(t *testing.T) {
	primary := newFakeClient(1)
	dialer := newFakeDialer()
	dialer.serve("ws://primary", primary)
	m := newTestManager(t, []string{"ws://primary"}, dialer)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.IsReady(context.Background()) {
		t.Fatal("expected ready after start")
	}

	// With the healthy flag cleared the readiness check must probe.
	m.healthy.Store(false)
	if !m.IsReady(context.Background()) {
		t.Error("expected probe to succeed")
	}

	primary.blockErr = errors.New("down")
	if m.IsReady(context.Background()) {
		t.Error("expected probe to fail")
	}
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	primary := newFakeClient(1)
	dialer := newFakeDialer()
	dialer.serve("ws://primary", primary)
	m := newTestManager(t, []string{"ws://primary"}, dialer)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}

	primary.mu.Lock()
	closed := primary.closed
	primary.mu.Unlock()
	if !closed {
		t.Error("expected the client to be closed")
	}
}

func TestManager_RequiresEndpoints(t *testing.T) {
	_, err := NewManager(DefaultManagerConfig(1, "empty", nil), &mockLogger{}, nil)
	if apperror.GetCode(err) != apperror.CodeChainNotConfigured {
		t.Errorf("expected CHAIN_NOT_CONFIGURED, got %v", err)
	}
}

func TestManager_RejectsInvalidSigningKey(t *testing.T) {
	cfg := DefaultManagerConfig(1, "testnet", []string{"ws://primary"})
	cfg.PrivateKey = "zz not hex"

	_, err := NewManager(cfg, &mockLogger{}, nil)
	if apperror.GetCode(err) != apperror.CodeSigningIdentityFailed {
		t.Errorf("expected SIGNING_IDENTITY_FAILED, got %v", err)
	}
}

func TestManager_SignerAddressDerivedFromKey(t *testing.T) {
	cfg := DefaultManagerConfig(1, "testnet", []string{"ws://primary"})
	// Well-known test vector: this key derives the address below.
	cfg.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	m, err := NewManager(cfg, &mockLogger{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	want := "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	if got := m.SignerAddress(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestManager_EndpointStatuses(t *testing.T) {
	dialer := newFakeDialer()
	dialer.serve("ws://f1", newFakeClient(1))
	m := newTestManager(t, []string{"ws://primary", "ws://f1", "ws://f2"}, dialer)

	_ = m.Start(context.Background())
	waitFor(t, "connected state", func() bool { return m.State() == domain.StateConnected })

	statuses := m.EndpointStatuses()
	if len(statuses) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(statuses))
	}

	primary := statuses[0]
	if primary.Role != "primary" || primary.URL != "ws://primary" {
		t.Errorf("unexpected primary entry: %+v", primary)
	}
	if primary.Active {
		t.Error("unreachable primary must not be active")
	}
	if primary.LastState != "unreachable" || primary.LastChecked.IsZero() {
		t.Errorf("expected a recorded failed probe for the primary, got %+v", primary)
	}

	f1 := statuses[1]
	if f1.Role != "fallback" || !f1.Active || f1.LastState != "connected" {
		t.Errorf("unexpected f1 entry: %+v", f1)
	}

	f2 := statuses[2]
	if f2.LastState != "unreachable" {
		t.Errorf("expected f2 recorded as unreachable, got %+v", f2)
	}
}
