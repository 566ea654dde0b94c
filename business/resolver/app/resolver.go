package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ddomesh/ddo-node/business/resolver/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
	"github.com/ddomesh/ddo-node/internal/cache"
	"github.com/ddomesh/ddo-node/internal/logger"
)

// ResolverConfig holds configuration for the resolver.
type ResolverConfig struct {
	// Identity is the provider value stamped on records this node builds
	// from its own store.
	Identity string

	// QueryTimeout bounds how long one resolution waits for peer answers.
	QueryTimeout time.Duration

	// VerifyUpdates gates remote candidates on on-chain confirmation of
	// their update transaction before they may win reconciliation.
	VerifyUpdates bool
}

// Resolver answers resolution requests from the freshness cache and the
// local store, escalating to peers when the local answer is missing or
// stale and reconciling whatever comes back.
type Resolver struct {
	config     ResolverConfig
	cache      *cache.Cache[domain.ResolutionRecord]
	store      DescriptorStore
	peers      PeerQuerier
	reconciler *Reconciler
	verifier   UpdateVerifier
	events     EventPublisher
	logger     logger.LoggerInterface
	now        func() time.Time
}

// NewResolver creates a Resolver. verifier and events may be nil when
// chain verification or event publishing is not wired.
func NewResolver(
	config ResolverConfig,
	recordCache *cache.Cache[domain.ResolutionRecord],
	store DescriptorStore,
	peers PeerQuerier,
	reconciler *Reconciler,
	verifier UpdateVerifier,
	events EventPublisher,
	log logger.LoggerInterface,
) *Resolver {
	return &Resolver{
		config:     config,
		cache:      recordCache,
		store:      store,
		peers:      peers,
		reconciler: reconciler,
		verifier:   verifier,
		events:     events,
		logger:     log,
		now:        time.Now,
	}
}

// IsCachedAndFresh reports whether the identifier can be answered from
// cache without touching the store or the network.
func (r *Resolver) IsCachedAndFresh(id string) bool {
	_, fresh := r.cache.Get(id)
	return fresh
}

// ResolveLocally looks the identifier up in the local store and, when
// found, builds a record claimed by this node. As a side effect the
// cache is left pointing at whichever of the built record and any
// existing entry is newer; an exact tie keeps the existing entry.
// Absence is not an error: it signals the caller to escalate to the
// network.
func (r *Resolver) ResolveLocally(ctx context.Context, id string) (domain.ResolutionRecord, bool, error) {
	desc, found, err := r.store.Retrieve(ctx, id)
	if err != nil {
		return domain.ResolutionRecord{}, false, apperror.Wrap(err, apperror.CodeStoreFailed, "resolver.ResolveLocally")
	}
	if !found {
		return domain.ResolutionRecord{}, false, nil
	}

	rec := desc.Record(r.config.Identity)
	r.reconciler.keepNewer(id, rec)
	return rec, true, nil
}

// Resolve answers one resolution request: a fresh cache hit
// short-circuits; otherwise the local record (listed first, so it wins
// exact-time ties) and the peers' answers are reconciled. No candidates
// at all yields an unknown result, which is an outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, id string) (domain.Resolution, error) {
	start := r.now()
	correlationID := uuid.NewString()

	if rec, fresh := r.cache.Get(id); fresh {
		res := domain.Resolution{
			ID:            id,
			Record:        rec,
			Known:         true,
			Fresh:         true,
			Source:        domain.SourceCache,
			CorrelationID: correlationID,
			Duration:      r.now().Sub(start),
		}
		r.publish(res)
		return res, nil
	}

	var candidates []domain.ResolutionRecord

	local, found, err := r.ResolveLocally(ctx, id)
	if err != nil {
		return domain.Resolution{}, err
	}
	if found {
		candidates = append(candidates, local)
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.config.QueryTimeout)
	remote := r.peers.Query(queryCtx, id, correlationID)
	cancel()
	candidates = append(candidates, r.verifyCandidates(ctx, remote)...)

	ranked := r.reconciler.Reconcile(ctx, id, candidates)
	if len(ranked) == 0 {
		// A stale cached record is still this node's best-known answer;
		// expose it with the freshness flag down rather than claiming
		// the identifier is unknown. Callers decide whether to accept it.
		if r.cache.Has(id) {
			rec, _ := r.cache.Get(id)
			res := domain.Resolution{
				ID:            id,
				Record:        rec,
				Known:         true,
				Fresh:         false,
				Source:        domain.SourceCache,
				CorrelationID: correlationID,
				Duration:      r.now().Sub(start),
			}
			r.publish(res)
			return res, nil
		}

		res := domain.Resolution{
			ID:            id,
			Known:         false,
			CorrelationID: correlationID,
			Duration:      r.now().Sub(start),
		}
		r.publish(res)
		return res, nil
	}

	winner := ranked[0]
	source := domain.SourceLocal
	if winner.Provider != r.config.Identity {
		source = domain.SourceNetwork
	}

	res := domain.Resolution{
		ID:            id,
		Record:        winner,
		Known:         true,
		Fresh:         true,
		Source:        source,
		CorrelationID: correlationID,
		Candidates:    len(ranked),
		Duration:      r.now().Sub(start),
	}
	r.publish(res)
	return res, nil
}

// LocalRecord answers the peer-facing lookup: the cached record when one
// exists (stale included, it is still this node's best-known answer),
// else a plain store lookup. Never escalates to the network.
func (r *Resolver) LocalRecord(ctx context.Context, id string) (domain.ResolutionRecord, bool, error) {
	if r.cache.Has(id) {
		rec, _ := r.cache.Get(id)
		return rec, true, nil
	}
	return r.ResolveLocally(ctx, id)
}

// PublishDescriptor validates and persists an operator-supplied
// descriptor, folding it into the cache under the newer-wins rule.
func (r *Resolver) PublishDescriptor(ctx context.Context, desc domain.StoredDescriptor) (domain.ResolutionRecord, error) {
	if desc.ID == "" {
		return domain.ResolutionRecord{}, apperror.Validation(apperror.CodeRequiredField, "descriptor id")
	}
	if desc.LastUpdateTx == "" {
		return domain.ResolutionRecord{}, apperror.Validation(apperror.CodeRequiredField, "descriptor lastUpdateTx")
	}
	if desc.LastUpdateTime.IsZero() {
		desc.LastUpdateTime = r.now()
	}

	if r.config.VerifyUpdates && r.verifier != nil {
		if err := r.verifier.VerifyUpdate(ctx, desc.ChainID, desc.LastUpdateTx); err != nil {
			return domain.ResolutionRecord{}, apperror.Wrap(err, apperror.CodeVerificationFailed, "resolver.PublishDescriptor")
		}
	}

	desc.StoredAt = r.now()
	if err := r.store.Save(ctx, desc); err != nil {
		return domain.ResolutionRecord{}, apperror.Wrap(err, apperror.CodeStoreFailed, "resolver.PublishDescriptor")
	}

	rec := desc.Record(r.config.Identity)
	r.reconciler.keepNewer(desc.ID, rec)

	if r.events != nil {
		r.events.PublishDescriptorUpdated(desc.ID, "published", r.config.Identity)
	}
	r.logger.Info(ctx, "descriptor published",
		"id", desc.ID,
		"lastUpdateTx", desc.LastUpdateTx,
	)
	return rec, nil
}

// Stats reports store and cache sizes for observability.
func (r *Resolver) Stats(ctx context.Context) (Stats, error) {
	stored, err := r.store.Count(ctx)
	if err != nil {
		return Stats{}, apperror.Wrap(err, apperror.CodeStoreFailed, "resolver.Stats")
	}
	return Stats{
		StoredDescriptors: stored,
		CachedRecords:     r.cache.Len(),
	}, nil
}

// Stats summarizes the resolver's holdings.
type Stats struct {
	StoredDescriptors int `json:"storedDescriptors"`
	CachedRecords     int `json:"cachedRecords"`
}

// verifyCandidates drops remote claims whose update transaction cannot be
// confirmed on chain. With verification off or no verifier wired, the
// candidates pass through unchanged.
func (r *Resolver) verifyCandidates(ctx context.Context, candidates []domain.ResolutionRecord) []domain.ResolutionRecord {
	if !r.config.VerifyUpdates || r.verifier == nil || len(candidates) == 0 {
		return candidates
	}

	kept := make([]domain.ResolutionRecord, 0, len(candidates))
	for _, c := range candidates {
		if err := r.verifier.VerifyUpdate(ctx, 0, c.LastUpdateTx); err != nil {
			r.logger.Warn(ctx, "dropping unverified peer record",
				"id", c.ID,
				"provider", c.Provider,
				"lastUpdateTx", c.LastUpdateTx,
				"error", err,
			)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func (r *Resolver) publish(res domain.Resolution) {
	if r.events != nil {
		r.events.PublishResolution(res)
	}
}
