package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ddomesh/ddo-node/business/resolver/domain"
	"github.com/ddomesh/ddo-node/internal/cache"
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

func testRecord(id, provider string, at time.Time) domain.ResolutionRecord {
	return domain.ResolutionRecord{
		ID:             id,
		LastUpdateTx:   "0x" + provider,
		LastUpdateTime: at,
		Provider:       provider,
	}
}

func TestReconciler_WinnerHasMaxUpdateTime(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		candidates   []domain.ResolutionRecord
		wantProvider string
	}{
		{
			name: "peer newer than local",
			candidates: []domain.ResolutionRecord{
				testRecord("ddo-1", "self", t0),
				testRecord("ddo-1", "peer-a", t0.Add(10*time.Second)),
			},
			wantProvider: "peer-a",
		},
		{
			name: "local newest",
			candidates: []domain.ResolutionRecord{
				testRecord("ddo-1", "self", t0.Add(time.Minute)),
				testRecord("ddo-1", "peer-a", t0),
				testRecord("ddo-1", "peer-b", t0.Add(30*time.Second)),
			},
			wantProvider: "self",
		},
		{
			name: "single candidate",
			candidates: []domain.ResolutionRecord{
				testRecord("ddo-1", "peer-a", t0),
			},
			wantProvider: "peer-a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cache.New[domain.ResolutionRecord](time.Minute)
			r := NewReconciler(c, &mockLogger{})

			ranked := r.Reconcile(context.Background(), "ddo-1", tt.candidates)

			if ranked[0].Provider != tt.wantProvider {
				t.Errorf("winner = %q, want %q", ranked[0].Provider, tt.wantProvider)
			}
			for _, other := range ranked[1:] {
				if other.LastUpdateTime.After(ranked[0].LastUpdateTime) {
					t.Errorf("winner is older than candidate from %q", other.Provider)
				}
			}

			cached, fresh := c.Get("ddo-1")
			if !fresh {
				t.Error("winner should be fresh in cache immediately after reconcile")
			}
			if cached.Provider != tt.wantProvider {
				t.Errorf("cached provider = %q, want %q", cached.Provider, tt.wantProvider)
			}
		})
	}
}

func TestReconciler_TieBreakPrefersFirstListed(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := cache.New[domain.ResolutionRecord](time.Minute)
	r := NewReconciler(c, &mockLogger{})

	// Callers list the local record first; on an exact-time tie the node
	// must prefer its own data over the remote claim.
	ranked := r.Reconcile(context.Background(), "ddo-1", []domain.ResolutionRecord{
		testRecord("ddo-1", "self", t0),
		testRecord("ddo-1", "peer-a", t0),
	})

	if ranked[0].Provider != "self" {
		t.Errorf("tie winner = %q, want self", ranked[0].Provider)
	}
	if cached, _ := c.Get("ddo-1"); cached.Provider != "self" {
		t.Errorf("cached provider = %q, want self", cached.Provider)
	}
}

func TestReconciler_EmptyInputLeavesCacheUntouched(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := cache.New[domain.ResolutionRecord](time.Minute)
	r := NewReconciler(c, &mockLogger{})

	c.Put("ddo-1", testRecord("ddo-1", "self", t0))

	ranked := r.Reconcile(context.Background(), "ddo-1", nil)
	if ranked != nil {
		t.Errorf("reconcile(empty) = %v, want nil", ranked)
	}

	cached, _ := c.Get("ddo-1")
	if cached.Provider != "self" {
		t.Error("empty reconcile modified the cache")
	}
	if c.Len() != 1 {
		t.Errorf("cache length = %d, want 1", c.Len())
	}
}

func TestReconciler_DoesNotMutateInput(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := []domain.ResolutionRecord{
		testRecord("ddo-1", "oldest", t0.Add(-time.Minute)),
		testRecord("ddo-1", "newest", t0),
	}

	c := cache.New[domain.ResolutionRecord](time.Minute)
	NewReconciler(c, &mockLogger{}).Reconcile(context.Background(), "ddo-1", in)

	if in[0].Provider != "oldest" || in[1].Provider != "newest" {
		t.Error("input candidate list was reordered")
	}
}

func TestReconciler_Idempotent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := cache.New[domain.ResolutionRecord](time.Minute)
	r := NewReconciler(c, &mockLogger{})

	first := r.Reconcile(context.Background(), "ddo-1", []domain.ResolutionRecord{
		testRecord("ddo-1", "peer-a", t0.Add(time.Second)),
		testRecord("ddo-1", "self", t0),
	})

	// Reconciling the already-chosen singleton yields the same record.
	second := r.Reconcile(context.Background(), "ddo-1", first[:1])
	if second[0] != first[0] {
		t.Errorf("re-reconciled winner = %v, want %v", second[0], first[0])
	}
}

func TestReconciler_NeverRegressesCache(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := cache.New[domain.ResolutionRecord](time.Minute)
	r := NewReconciler(c, &mockLogger{})

	// A concurrent resolution already cached a newer record.
	c.Put("ddo-1", testRecord("ddo-1", "fresher", t0.Add(time.Minute)))

	r.Reconcile(context.Background(), "ddo-1", []domain.ResolutionRecord{
		testRecord("ddo-1", "staler", t0),
	})

	if cached, _ := c.Get("ddo-1"); cached.Provider != "fresher" {
		t.Errorf("cached provider = %q; stale winner clobbered a fresher entry", cached.Provider)
	}
}

func TestReconciler_KeepNewer(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		existing     *domain.ResolutionRecord
		incomingAt   time.Time
		wantProvider string
	}{
		{
			name:         "empty cache accepts record",
			existing:     nil,
			incomingAt:   t0,
			wantProvider: "incoming",
		},
		{
			name:         "newer record replaces",
			existing:     ptr(testRecord("ddo-1", "existing", t0)),
			incomingAt:   t0.Add(time.Second),
			wantProvider: "incoming",
		},
		{
			name:         "older record ignored",
			existing:     ptr(testRecord("ddo-1", "existing", t0)),
			incomingAt:   t0.Add(-time.Second),
			wantProvider: "existing",
		},
		{
			name:         "exact tie keeps existing",
			existing:     ptr(testRecord("ddo-1", "existing", t0)),
			incomingAt:   t0,
			wantProvider: "existing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cache.New[domain.ResolutionRecord](time.Minute)
			r := NewReconciler(c, &mockLogger{})

			if tt.existing != nil {
				c.Put("ddo-1", *tt.existing)
			}

			r.keepNewer("ddo-1", testRecord("ddo-1", "incoming", tt.incomingAt))

			if cached, _ := c.Get("ddo-1"); cached.Provider != tt.wantProvider {
				t.Errorf("cached provider = %q, want %q", cached.Provider, tt.wantProvider)
			}
		})
	}
}

func TestReconciler_ConcurrentSameIdentifier(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := cache.New[domain.ResolutionRecord](time.Minute)
	r := NewReconciler(c, &mockLogger{})

	// Many concurrent reconciliations for one identifier with different
	// update times; the cache must end at the maximum regardless of
	// interleaving.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := testRecord("ddo-1", fmt.Sprintf("peer-%d", n), t0.Add(time.Duration(n)*time.Second))
			r.Reconcile(context.Background(), "ddo-1", []domain.ResolutionRecord{rec})
		}(i)
	}
	wg.Wait()

	cached, _ := c.Get("ddo-1")
	if cached.Provider != "peer-49" {
		t.Errorf("cached provider = %q, want peer-49 (max update time)", cached.Provider)
	}
}

func ptr[T any](v T) *T { return &v }
