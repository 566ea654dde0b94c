package peers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ddomesh/ddo-node/business/resolver/domain"
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

func peerServer(t *testing.T, rec domain.ResolutionRecord, gotCID *string) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotCID != nil {
			mu.Lock()
			*gotCID = r.Header.Get("X-Correlation-ID")
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	}))
}

func testRecord(id, provider string, at time.Time) domain.ResolutionRecord {
	return domain.ResolutionRecord{
		ID:             id,
		LastUpdateTx:   "0x" + provider,
		LastUpdateTime: at,
		Provider:       provider,
	}
}

func newTestClient(t *testing.T, endpoints []string) *Client {
	t.Helper()

	cfg := DefaultConfig(endpoints)
	cfg.Timeout = 2 * time.Second
	cfg.RequestsPerMin = 0 // no limiting in tests unless asked for

	c, err := New(cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestClient_QueryFansOutToAllPeers(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var cidA, cidB string
	serverA := peerServer(t, testRecord("ddo-1", "peer-a", t0), &cidA)
	defer serverA.Close()
	serverB := peerServer(t, testRecord("ddo-1", "peer-b", t0.Add(time.Second)), &cidB)
	defer serverB.Close()

	c := newTestClient(t, []string{serverA.URL, serverB.URL})

	records := c.Query(context.Background(), "ddo-1", "corr-123")
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2: %v", len(records), records)
	}

	// Configured peer order must be preserved.
	if records[0].Provider != "peer-a" || records[1].Provider != "peer-b" {
		t.Errorf("records out of order: %q, %q", records[0].Provider, records[1].Provider)
	}

	if cidA != "corr-123" || cidB != "corr-123" {
		t.Errorf("correlation id not propagated: %q, %q", cidA, cidB)
	}
}

func TestClient_NotFoundPeerSkipped(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown identifier"}`, http.StatusNotFound)
	}))
	defer notFound.Close()
	answering := peerServer(t, testRecord("ddo-1", "peer-b", t0), nil)
	defer answering.Close()

	c := newTestClient(t, []string{notFound.URL, answering.URL})

	records := c.Query(context.Background(), "ddo-1", "corr-123")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Provider != "peer-b" {
		t.Errorf("provider = %q, want peer-b", records[0].Provider)
	}
}

func TestClient_UnreachablePeerSkipped(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close() // nothing listens here anymore

	answering := peerServer(t, testRecord("ddo-1", "peer-b", t0), nil)
	defer answering.Close()

	c := newTestClient(t, []string{dead.URL, answering.URL})

	records := c.Query(context.Background(), "ddo-1", "corr-123")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Provider != "peer-b" {
		t.Errorf("provider = %q, want peer-b", records[0].Provider)
	}
}

func TestClient_MismatchedRecordSkipped(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Peer answers with a record for a different identifier.
	wrong := peerServer(t, testRecord("ddo-other", "peer-a", t0), nil)
	defer wrong.Close()

	c := newTestClient(t, []string{wrong.URL})

	records := c.Query(context.Background(), "ddo-1", "corr-123")
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0 (mismatched id must be dropped)", len(records))
	}
}

func TestClient_MissingTimestampSkipped(t *testing.T) {
	rec := domain.ResolutionRecord{ID: "ddo-1", LastUpdateTx: "0xabc", Provider: "peer-a"}
	server := peerServer(t, rec, nil)
	defer server.Close()

	c := newTestClient(t, []string{server.URL})

	records := c.Query(context.Background(), "ddo-1", "corr-123")
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0 (record without timestamp is unusable)", len(records))
	}
}

func TestClient_SlowPeerBoundedByContext(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		json.NewEncoder(w).Encode(testRecord("ddo-1", "peer-slow", t0))
	}))
	defer slow.Close()
	fast := peerServer(t, testRecord("ddo-1", "peer-fast", t0), nil)
	defer fast.Close()

	c := newTestClient(t, []string{slow.URL, fast.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	records := c.Query(ctx, "ddo-1", "corr-123")
	elapsed := time.Since(start)

	if elapsed > 800*time.Millisecond {
		t.Errorf("query took %v, the deadline was not honored", elapsed)
	}
	if len(records) != 1 || records[0].Provider != "peer-fast" {
		t.Fatalf("got %v, want only peer-fast", records)
	}
}

func TestClient_NoPeersConfigured(t *testing.T) {
	c := newTestClient(t, nil)

	if records := c.Query(context.Background(), "ddo-1", "corr-123"); records != nil {
		t.Errorf("got %v, want nil for empty peer set", records)
	}
}
