// Package domain contains the core domain types for the resolver context.
package domain

import (
	"sort"
	"time"
)

// ResolutionRecord is the node's belief about one identifier: which
// on-chain transaction last updated it, when, and which node produced
// the answer. LastUpdateTime is the sole freshness tie-break; it is not
// guaranteed monotonic across peers but is trusted per source.
type ResolutionRecord struct {
	ID             string    `json:"id"`
	LastUpdateTx   string    `json:"lastUpdateTx"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
	Provider       string    `json:"provider"`
}

// NewerThan reports whether r carries a strictly larger update time
// than other.
func (r ResolutionRecord) NewerThan(other ResolutionRecord) bool {
	return r.LastUpdateTime.After(other.LastUpdateTime)
}

// IsZero reports whether the record is unset.
func (r ResolutionRecord) IsZero() bool {
	return r.ID == "" && r.LastUpdateTime.IsZero()
}

// RankByFreshness returns a new slice with the candidates ordered by
// LastUpdateTime descending. The sort is stable: candidates with the
// exact same update time keep their input order, so a caller that lists
// its own record first makes the node prefer local data on a tie. The
// input slice is never modified.
func RankByFreshness(candidates []ResolutionRecord) []ResolutionRecord {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]ResolutionRecord, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].LastUpdateTime.After(ranked[j].LastUpdateTime)
	})
	return ranked
}

// ResolutionSource identifies where a resolution answer came from.
type ResolutionSource string

const (
	SourceCache   ResolutionSource = "cache"
	SourceLocal   ResolutionSource = "local"
	SourceNetwork ResolutionSource = "network"
)

// Resolution is the outcome of resolving one identifier. Known is false
// when neither the local store nor any peer had an answer; that outcome
// is an absent result, not an error.
type Resolution struct {
	ID            string           `json:"id"`
	Record        ResolutionRecord `json:"record"`
	Known         bool             `json:"known"`
	Fresh         bool             `json:"isFresh"`
	Source        ResolutionSource `json:"source,omitempty"`
	CorrelationID string           `json:"correlationId,omitempty"`
	Candidates    int              `json:"candidates,omitempty"`
	Duration      time.Duration    `json:"-"`
}
