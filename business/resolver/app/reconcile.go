package app

import (
	"context"
	"sync"

	"github.com/ddomesh/ddo-node/business/resolver/domain"
	"github.com/ddomesh/ddo-node/internal/cache"
	"github.com/ddomesh/ddo-node/internal/logger"
)

// keyedMutex hands out one mutex per identifier so resolutions for
// different identifiers proceed in parallel while cache updates for the
// same identifier serialize. Mutexes are kept for the process lifetime,
// bounded by identifier cardinality, same as the cache itself.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for key and returns it for unlocking.
func (k *keyedMutex) acquire(key string) *sync.Mutex {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m
}

// Reconciler picks the authoritative record among the candidate answers
// gathered for one identifier and keeps the freshness cache in line with
// that choice. All cache writes for resolution records go through it so
// the "keep only the max update time" rule is applied atomically with
// the cache read it is based on.
type Reconciler struct {
	cache  *cache.Cache[domain.ResolutionRecord]
	locks  *keyedMutex
	logger logger.LoggerInterface
}

// NewReconciler creates a Reconciler over the given record cache.
func NewReconciler(c *cache.Cache[domain.ResolutionRecord], log logger.LoggerInterface) *Reconciler {
	return &Reconciler{
		cache:  c,
		locks:  newKeyedMutex(),
		logger: log,
	}
}

// Reconcile ranks the candidates newest-first (stable, so callers listing
// the local record first win exact-time ties) and writes the winner into
// the cache, restarting its freshness window. The input slice is never
// modified. An empty candidate list is valid: it means the identifier is
// unknown, nothing is written, and nil is returned. The full ranked list
// is returned with the winner at index 0.
func (r *Reconciler) Reconcile(ctx context.Context, id string, candidates []domain.ResolutionRecord) []domain.ResolutionRecord {
	ranked := domain.RankByFreshness(candidates)
	if len(ranked) == 0 {
		r.logger.Debug(ctx, "reconcile: no candidates", "id", id)
		return nil
	}
	winner := ranked[0]

	mu := r.locks.acquire(id)
	defer mu.Unlock()

	// A concurrent resolution may have written a strictly newer record
	// between our gather and now; never clobber it with a staler winner.
	if existing, ok := r.current(id); ok && existing.NewerThan(winner) {
		r.logger.Debug(ctx, "reconcile: cache already newer",
			"id", id,
			"cached", existing.LastUpdateTime,
			"winner", winner.LastUpdateTime,
		)
		return ranked
	}
	r.cache.Put(id, winner)

	r.logger.Debug(ctx, "reconcile: winner cached",
		"id", id,
		"provider", winner.Provider,
		"lastUpdateTime", winner.LastUpdateTime,
		"candidates", len(ranked),
	)
	return ranked
}

// keepNewer is the local-resolution side effect: leave the cache pointing
// at whichever of rec and the existing entry has the larger update time.
// An exact tie keeps the existing entry untouched, freshness window
// included.
func (r *Reconciler) keepNewer(id string, rec domain.ResolutionRecord) {
	mu := r.locks.acquire(id)
	defer mu.Unlock()

	if existing, ok := r.current(id); ok && !rec.NewerThan(existing) {
		return
	}
	r.cache.Put(id, rec)
}

// current returns the cached record regardless of freshness.
func (r *Reconciler) current(id string) (domain.ResolutionRecord, bool) {
	if !r.cache.Has(id) {
		return domain.ResolutionRecord{}, false
	}
	rec, _ := r.cache.Get(id)
	return rec, true
}
