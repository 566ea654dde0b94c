// Package domain contains the core domain types for the storage context.
package domain

import "time"

// StorageType tags the closed set of supported file object locations.
type StorageType string

const (
	TypeURL     StorageType = "url"
	TypeIPFS    StorageType = "ipfs"
	TypeArweave StorageType = "arweave"
)

// FileSpec describes where a descriptor's file object lives. Exactly one
// of the location fields applies, selected by Type: URL for direct
// locations, Hash for the content identifier of gateway-resolved ones
// (IPFS CID, Arweave transaction id).
type FileSpec struct {
	Type StorageType `json:"type"`
	URL  string      `json:"url,omitempty"`
	Hash string      `json:"hash,omitempty"`
}

// FileMetadata is what a metadata probe learns about a file object.
// Available false with a resolved Location means the location is well
// formed but did not answer.
type FileMetadata struct {
	Type          StorageType `json:"type"`
	Location      string      `json:"location"`
	Available     bool        `json:"available"`
	ContentType   string      `json:"contentType,omitempty"`
	ContentLength int64       `json:"contentLength,omitempty"`
	CheckedAt     time.Time   `json:"checkedAt"`
}
