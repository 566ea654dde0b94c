// Package infra contains infrastructure adapters for the resolver context.
package infra

import (
	"time"

	"github.com/ddomesh/ddo-node/business/resolver/domain"
	"github.com/ddomesh/ddo-node/internal/events"
)

// BusPublisher forwards resolver outcomes onto the node event bus, where
// the HTTP event stream and the terminal UI pick them up.
type BusPublisher struct {
	bus *events.Bus
	now func() time.Time
}

// NewBusPublisher creates a BusPublisher.
func NewBusPublisher(bus *events.Bus) *BusPublisher {
	return &BusPublisher{bus: bus, now: time.Now}
}

// PublishResolution emits one resolution outcome.
func (p *BusPublisher) PublishResolution(res domain.Resolution) {
	p.bus.Publish(events.TopicResolution, events.ResolutionEvent{
		ID:            res.ID,
		Known:         res.Known,
		Fresh:         res.Fresh,
		Source:        string(res.Source),
		Provider:      res.Record.Provider,
		CorrelationID: res.CorrelationID,
		DurationMS:    res.Duration.Milliseconds(),
		At:            p.now().UTC(),
	})
}

// PublishDescriptorUpdated emits one local descriptor change.
func (p *BusPublisher) PublishDescriptorUpdated(id, action, provider string) {
	p.bus.Publish(events.TopicDescriptor, events.DescriptorEvent{
		ID:       id,
		Action:   action,
		Provider: provider,
		At:       p.now().UTC(),
	})
}
