package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ddomesh/ddo-node/business/resolver/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
	"github.com/ddomesh/ddo-node/internal/cache"
)

// fakeStore is an in-memory DescriptorStore.
type fakeStore struct {
	mu    sync.Mutex
	descs map[string]domain.StoredDescriptor
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{descs: make(map[string]domain.StoredDescriptor)}
}

func (s *fakeStore) Retrieve(ctx context.Context, id string) (domain.StoredDescriptor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.StoredDescriptor{}, false, s.err
	}
	d, ok := s.descs[id]
	return d, ok, nil
}

func (s *fakeStore) Save(ctx context.Context, desc domain.StoredDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.descs[desc.ID] = desc
	return nil
}

func (s *fakeStore) List(ctx context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.descs))
	for id := range s.descs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.descs), nil
}

// fakePeers returns canned records and notes whether it was consulted.
type fakePeers struct {
	mu      sync.Mutex
	records []domain.ResolutionRecord
	calls   int
	lastCID string
}

func (p *fakePeers) Query(ctx context.Context, id string, correlationID string) []domain.ResolutionRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastCID = correlationID
	out := make([]domain.ResolutionRecord, len(p.records))
	copy(out, p.records)
	return out
}

func (p *fakePeers) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeVerifier rejects the transaction hashes it is given.
type fakeVerifier struct {
	reject map[string]bool
}

func (v *fakeVerifier) VerifyUpdate(ctx context.Context, chainID uint64, txHash string) error {
	if v.reject[txHash] {
		return errors.New("no receipt found")
	}
	return nil
}

// fakePublisher collects published events.
type fakePublisher struct {
	mu          sync.Mutex
	resolutions []domain.Resolution
	updated     []string
}

func (p *fakePublisher) PublishResolution(res domain.Resolution) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolutions = append(p.resolutions, res)
}

func (p *fakePublisher) PublishDescriptorUpdated(id, action, provider string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, id)
}

type resolverFixture struct {
	resolver *Resolver
	cache    *cache.Cache[domain.ResolutionRecord]
	store    *fakeStore
	peers    *fakePeers
	events   *fakePublisher
	clock    *time.Time
}

func newResolverFixture(verifier UpdateVerifier, verify bool) *resolverFixture {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now

	c := cache.New(60*time.Second, cache.WithClock[domain.ResolutionRecord](func() time.Time { return *clock }))
	store := newFakeStore()
	peers := &fakePeers{}
	events := &fakePublisher{}

	r := NewResolver(
		ResolverConfig{Identity: "self", QueryTimeout: time.Second, VerifyUpdates: verify},
		c,
		store,
		peers,
		NewReconciler(c, &mockLogger{}),
		verifier,
		events,
		&mockLogger{},
	)
	r.now = func() time.Time { return *clock }

	return &resolverFixture{resolver: r, cache: c, store: store, peers: peers, events: events, clock: clock}
}

func (f *resolverFixture) storeDescriptor(id string, at time.Time) {
	f.store.descs[id] = domain.StoredDescriptor{
		ID:             id,
		Document:       []byte(`{"name":"asset"}`),
		LastUpdateTx:   "0xlocal",
		LastUpdateTime: at,
	}
}

func TestResolver_FreshCacheHitShortCircuits(t *testing.T) {
	f := newResolverFixture(nil, false)
	t0 := *f.clock

	f.cache.Put("ddo-1", testRecord("ddo-1", "self", t0))

	res, err := f.resolver.Resolve(context.Background(), "ddo-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Known || !res.Fresh {
		t.Errorf("resolution = known %v fresh %v, want true/true", res.Known, res.Fresh)
	}
	if res.Source != domain.SourceCache {
		t.Errorf("source = %q, want cache", res.Source)
	}
	if f.peers.callCount() != 0 {
		t.Error("fresh cache hit must not consult peers")
	}
}

func TestResolver_StaleCacheEscalatesToNetwork(t *testing.T) {
	f := newResolverFixture(nil, false)
	t0 := *f.clock

	f.cache.Put("ddo-1", testRecord("ddo-1", "self", t0))
	*f.clock = t0.Add(61 * time.Second) // entry is now past its TTL

	f.resolver.Resolve(context.Background(), "ddo-1")

	if f.peers.callCount() != 1 {
		t.Errorf("peer queries = %d, want 1 (stale hit escalates)", f.peers.callCount())
	}
}

func TestResolver_StaleRecordServedWhenNetworkSilent(t *testing.T) {
	f := newResolverFixture(nil, false)
	t0 := *f.clock

	// Only the cache knows this identifier, and the entry has expired.
	f.cache.Put("ddo-1", testRecord("ddo-1", "peer-a", t0))
	*f.clock = t0.Add(2 * time.Minute)

	res, err := f.resolver.Resolve(context.Background(), "ddo-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Known {
		t.Fatal("stale record should still be served when nobody answers")
	}
	if res.Fresh {
		t.Error("served record must carry fresh=false")
	}
	if res.Record.Provider != "peer-a" {
		t.Errorf("record provider = %q, want peer-a", res.Record.Provider)
	}
	if f.peers.callCount() != 1 {
		t.Errorf("peer queries = %d, want 1", f.peers.callCount())
	}
}

func TestResolver_PeerRecordWinsWhenNewer(t *testing.T) {
	f := newResolverFixture(nil, false)
	t0 := *f.clock

	// Local record at T0; a peer knows an update from T0+10s.
	f.storeDescriptor("ddo-1", t0)
	f.peers.records = []domain.ResolutionRecord{
		testRecord("ddo-1", "peer-a", t0.Add(10*time.Second)),
	}

	res, err := f.resolver.Resolve(context.Background(), "ddo-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Record.Provider != "peer-a" {
		t.Errorf("winner = %q, want peer-a", res.Record.Provider)
	}
	if res.Source != domain.SourceNetwork {
		t.Errorf("source = %q, want network", res.Source)
	}

	// The winner must be immediately fresh in the cache.
	if !f.resolver.IsCachedAndFresh("ddo-1") {
		t.Error("winner not fresh in cache after reconciliation")
	}
	cached, _ := f.cache.Get("ddo-1")
	if cached.Provider != "peer-a" {
		t.Errorf("cached provider = %q, want peer-a", cached.Provider)
	}
}

func TestResolver_ExactTiePrefersLocal(t *testing.T) {
	f := newResolverFixture(nil, false)
	t0 := *f.clock

	f.storeDescriptor("ddo-1", t0)
	f.peers.records = []domain.ResolutionRecord{
		testRecord("ddo-1", "peer-a", t0),
	}

	res, _ := f.resolver.Resolve(context.Background(), "ddo-1")

	if res.Record.Provider != "self" {
		t.Errorf("tie winner = %q, want self", res.Record.Provider)
	}
	if res.Source != domain.SourceLocal {
		t.Errorf("source = %q, want local", res.Source)
	}
}

func TestResolver_UnknownIdentifier(t *testing.T) {
	f := newResolverFixture(nil, false)

	res, err := f.resolver.Resolve(context.Background(), "ddo-missing")
	if err != nil {
		t.Fatalf("unknown identifier must not error, got %v", err)
	}
	if res.Known {
		t.Error("resolution reported known for an identifier nobody has")
	}
	if f.cache.Has("ddo-missing") {
		t.Error("unknown resolution wrote to the cache")
	}
}

func TestResolver_StoreErrorSurfaces(t *testing.T) {
	f := newResolverFixture(nil, false)
	f.store.err = errors.New("leveldb: closed")

	_, err := f.resolver.Resolve(context.Background(), "ddo-1")
	if err == nil {
		t.Fatal("expected store failure to surface")
	}
	if apperror.GetCode(err) != apperror.CodeStoreFailed {
		t.Errorf("code = %v, want %v", apperror.GetCode(err), apperror.CodeStoreFailed)
	}
}

func TestResolver_ResolveLocallySideEffect(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		cached       *domain.ResolutionRecord
		storeAt      time.Time
		wantProvider string
	}{
		{"no cache entry adopts store record", nil, t0, "self"},
		{"store newer than cache replaces", ptr(testRecord("ddo-1", "peer-a", t0)), t0.Add(time.Second), "self"},
		{"cache newer than store kept", ptr(testRecord("ddo-1", "peer-a", t0.Add(time.Minute))), t0, "peer-a"},
		{"exact tie keeps cached value", ptr(testRecord("ddo-1", "peer-a", t0)), t0, "peer-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(nil, false)
			if tt.cached != nil {
				f.cache.Put("ddo-1", *tt.cached)
			}
			f.storeDescriptor("ddo-1", tt.storeAt)

			rec, found, err := f.resolver.ResolveLocally(context.Background(), "ddo-1")
			if err != nil || !found {
				t.Fatalf("ResolveLocally = (%v, %v, %v)", rec, found, err)
			}
			if rec.Provider != "self" {
				t.Errorf("built record provider = %q, want self", rec.Provider)
			}

			if cached, _ := f.cache.Get("ddo-1"); cached.Provider != tt.wantProvider {
				t.Errorf("cached provider = %q, want %q", cached.Provider, tt.wantProvider)
			}
		})
	}
}

func TestResolver_ResolveLocallyAbsentIsNotError(t *testing.T) {
	f := newResolverFixture(nil, false)

	_, found, err := f.resolver.ResolveLocally(context.Background(), "ddo-missing")
	if err != nil {
		t.Fatalf("absence must not error, got %v", err)
	}
	if found {
		t.Error("found = true for an identifier the store does not have")
	}
}

func TestResolver_VerificationDropsUnconfirmedPeers(t *testing.T) {
	verifier := &fakeVerifier{reject: map[string]bool{"0xpeer-a": true}}
	f := newResolverFixture(verifier, true)
	t0 := *f.clock

	f.storeDescriptor("ddo-1", t0)
	f.peers.records = []domain.ResolutionRecord{
		testRecord("ddo-1", "peer-a", t0.Add(time.Minute)), // newest but unverifiable
	}

	res, err := f.resolver.Resolve(context.Background(), "ddo-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Record.Provider != "self" {
		t.Errorf("winner = %q, want self (unverified peer dropped)", res.Record.Provider)
	}
}

func TestResolver_PublishDescriptor(t *testing.T) {
	f := newResolverFixture(nil, false)
	t0 := *f.clock

	rec, err := f.resolver.PublishDescriptor(context.Background(), domain.StoredDescriptor{
		ID:             "ddo-1",
		Document:       []byte(`{"name":"asset"}`),
		LastUpdateTx:   "0xabc",
		LastUpdateTime: t0,
	})
	if err != nil {
		t.Fatalf("PublishDescriptor: %v", err)
	}
	if rec.Provider != "self" {
		t.Errorf("record provider = %q, want self", rec.Provider)
	}

	if _, ok := f.store.descs["ddo-1"]; !ok {
		t.Error("descriptor was not persisted")
	}
	if !f.resolver.IsCachedAndFresh("ddo-1") {
		t.Error("published descriptor not fresh in cache")
	}
	if len(f.events.updated) != 1 {
		t.Errorf("descriptor events = %d, want 1", len(f.events.updated))
	}
}

func TestResolver_PublishDescriptorValidation(t *testing.T) {
	f := newResolverFixture(nil, false)

	tests := []struct {
		name string
		desc domain.StoredDescriptor
	}{
		{"missing id", domain.StoredDescriptor{LastUpdateTx: "0xabc"}},
		{"missing update tx", domain.StoredDescriptor{ID: "ddo-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.resolver.PublishDescriptor(context.Background(), tt.desc)
			if apperror.GetCode(err) != apperror.CodeRequiredField {
				t.Errorf("code = %v, want %v", apperror.GetCode(err), apperror.CodeRequiredField)
			}
		})
	}
}

func TestResolver_LocalRecordPrefersCacheEvenStale(t *testing.T) {
	f := newResolverFixture(nil, false)
	t0 := *f.clock

	// Cache holds a peer-provided record; the store has an older local one.
	f.cache.Put("ddo-1", testRecord("ddo-1", "peer-a", t0.Add(time.Minute)))
	f.storeDescriptor("ddo-1", t0)
	*f.clock = t0.Add(2 * time.Hour) // cached entry long stale

	rec, found, err := f.resolver.LocalRecord(context.Background(), "ddo-1")
	if err != nil || !found {
		t.Fatalf("LocalRecord = (%v, %v, %v)", rec, found, err)
	}
	if rec.Provider != "peer-a" {
		t.Errorf("provider = %q, want peer-a (stale cache is still the best-known answer)", rec.Provider)
	}
}

func TestResolver_ConcurrentResolutionsNeverRegress(t *testing.T) {
	f := newResolverFixture(nil, false)
	t0 := *f.clock

	f.storeDescriptor("ddo-1", t0)
	newest := testRecord("ddo-1", "peer-newest", t0.Add(time.Hour))
	f.peers.records = []domain.ResolutionRecord{newest}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.resolver.Resolve(context.Background(), "ddo-1")
		}()
	}
	wg.Wait()

	cached, _ := f.cache.Get("ddo-1")
	if !cached.LastUpdateTime.Equal(newest.LastUpdateTime) {
		t.Errorf("cached update time = %v, want %v (max must win)", cached.LastUpdateTime, newest.LastUpdateTime)
	}
}

func TestResolver_CorrelationIDFlowsToPeers(t *testing.T) {
	f := newResolverFixture(nil, false)

	f.resolver.Resolve(context.Background(), "ddo-1")

	if f.peers.lastCID == "" {
		t.Error("peer query ran without a correlation id")
	}
}
