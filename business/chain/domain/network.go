// Package domain contains the core domain types for the chain context.
package domain

import "time"

// ConnectionState represents the health of one managed network.
type ConnectionState string

const (
	// StateConnected means a live head subscription is running on some
	// endpoint of the pool.
	StateConnected ConnectionState = "connected"
	// StateProbing means the manager is walking the endpoint pool after
	// losing the connection.
	StateProbing ConnectionState = "probing"
	// StateDegraded means the whole pool was exhausted; the network stays
	// configured but needs an operator-triggered reconnect.
	StateDegraded ConnectionState = "degraded"
)

// EndpointStatus describes one endpoint of a network's pool.
type EndpointStatus struct {
	URL         string    `json:"url"`
	Role        string    `json:"role"`
	Active      bool      `json:"active"`
	LastState   string    `json:"lastState,omitempty"`
	LastChecked time.Time `json:"lastChecked,omitempty"`
}

// NetworkStatus is a point-in-time snapshot of one managed network.
type NetworkStatus struct {
	ChainID    uint64          `json:"chainId"`
	Name       string          `json:"name,omitempty"`
	State      ConnectionState `json:"state"`
	Endpoint   string          `json:"endpoint"`
	Endpoints  []string        `json:"endpoints"`
	Signer     string          `json:"signer,omitempty"`
	LastBlock  uint64          `json:"lastBlock"`
	LastHeadAt time.Time       `json:"lastHeadAt"`
	Failovers  int             `json:"failovers"`
}

// Ready reports whether the network can serve chain operations.
func (s NetworkStatus) Ready() bool {
	return s.State == StateConnected
}
