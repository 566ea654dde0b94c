// Package ui provides the Bubble Tea dashboard for the DDO node.
package ui

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ddomesh/ddo-node/internal/events"
)

// snapshotInterval is how often the feed asks for a fresh status snapshot.
const snapshotInterval = 2 * time.Second

// StatusSource produces the periodic dashboard snapshot: the current
// network table plus store and cache counters.
type StatusSource func(ctx context.Context) StatusSnapshotMsg

// StartFeed subscribes the dashboard to the event bus and starts the
// periodic status snapshot. It returns once the subscriptions are
// established; forwarding runs until ctx is cancelled. Messages sent
// while no program is running are dropped.
func StartFeed(ctx context.Context, bus *events.Bus, source StatusSource) error {
	resolutions, err := bus.Subscribe(ctx, events.TopicResolution)
	if err != nil {
		return err
	}
	states, err := bus.Subscribe(ctx, events.TopicChainState)
	if err != nil {
		return err
	}
	descriptors, err := bus.Subscribe(ctx, events.TopicDescriptor)
	if err != nil {
		return err
	}

	go forwardResolutions(resolutions)
	go forwardChainStates(states)
	go forwardDescriptors(descriptors)
	go snapshotLoop(ctx, source)

	return nil
}

func forwardResolutions(msgs <-chan *message.Message) {
	for msg := range msgs {
		var ev events.ResolutionEvent
		if err := json.Unmarshal(msg.Payload, &ev); err == nil {
			Send(ResolutionMsg{
				ID:       ev.ID,
				Known:    ev.Known,
				Fresh:    ev.Fresh,
				Source:   ev.Source,
				Duration: time.Duration(ev.DurationMS) * time.Millisecond,
			})
		}
		msg.Ack()
	}
}

func forwardChainStates(msgs <-chan *message.Message) {
	for msg := range msgs {
		var ev events.ChainStateEvent
		if err := json.Unmarshal(msg.Payload, &ev); err == nil {
			Send(ChainStateMsg{
				ChainID:  ev.ChainID,
				Network:  ev.Network,
				From:     ev.From,
				To:       ev.To,
				Endpoint: ev.Endpoint,
				Reason:   ev.Reason,
			})
		}
		msg.Ack()
	}
}

func forwardDescriptors(msgs <-chan *message.Message) {
	for msg := range msgs {
		var ev events.DescriptorEvent
		if err := json.Unmarshal(msg.Payload, &ev); err == nil {
			Send(DescriptorMsg{ID: ev.ID, Action: ev.Action})
		}
		msg.Ack()
	}
}

func snapshotLoop(ctx context.Context, source StatusSource) {
	if source == nil {
		return
	}

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	// First snapshot right away so the dashboard fills without waiting
	// a full interval.
	Send(source(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Send(source(ctx))
		}
	}
}
