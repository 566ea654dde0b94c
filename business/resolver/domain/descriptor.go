package domain

import (
	"encoding/json"
	"time"
)

// StoredDescriptor is a DDO document at rest. The store is assumed to
// hold only data already validated against its on-chain update event, so
// records built from it are trusted without re-verification.
type StoredDescriptor struct {
	ID             string          `json:"id"`
	Document       json.RawMessage `json:"document"`
	ChainID        uint64          `json:"chainId,omitempty"`
	LastUpdateTx   string          `json:"lastUpdateTx"`
	LastUpdateTime time.Time       `json:"lastUpdateTime"`
	StoredAt       time.Time       `json:"storedAt"`
}

// Record converts the stored descriptor into a resolution record claimed
// by the given provider identity.
func (d StoredDescriptor) Record(provider string) ResolutionRecord {
	return ResolutionRecord{
		ID:             d.ID,
		LastUpdateTx:   d.LastUpdateTx,
		LastUpdateTime: d.LastUpdateTime,
		Provider:       provider,
	}
}
