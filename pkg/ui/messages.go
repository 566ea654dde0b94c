// Package ui provides the Bubble Tea dashboard for the DDO node.
package ui

import "time"

// Message types for dashboard updates

// ChainStateMsg is sent when a network changes connectivity state.
type ChainStateMsg struct {
	ChainID  uint64
	Network  string
	From     string
	To       string
	Endpoint string
	Reason   string
}

// ResolutionMsg is sent when a resolution request completes.
type ResolutionMsg struct {
	ID       string
	Known    bool
	Fresh    bool
	Source   string // "store", "cache", "network"
	Duration time.Duration
}

// DescriptorMsg is sent when a descriptor is published or ingested.
type DescriptorMsg struct {
	ID     string
	Action string
}

// ChainStatus is one network's row in a status snapshot.
type ChainStatus struct {
	ChainID   uint64
	Name      string
	State     string
	Endpoint  string
	Height    uint64
	Failovers int
}

// StatusSnapshotMsg carries the periodic snapshot of network connectivity
// plus store and cache counters. Sent by the feed every few seconds.
type StatusSnapshotMsg struct {
	Chains            []ChainStatus
	StoredDescriptors int
	CachedRecords     int
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "done", "failed"
	Message string // Optional message
}
