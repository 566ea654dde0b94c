// Package events carries node-internal event traffic over an in-process
// pub/sub bus. Components publish resolution outcomes, connectivity state
// transitions and descriptor updates; the HTTP event stream and the
// terminal UI subscribe to them.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/ddomesh/ddo-node/internal/logger"
)

// Topics carried by the bus.
const (
	TopicResolution = "ddo.resolution"
	TopicChainState = "chain.state"
	TopicDescriptor = "ddo.updated"
)

// ResolutionEvent reports the outcome of one resolution request.
type ResolutionEvent struct {
	ID            string    `json:"id"`
	Known         bool      `json:"known"`
	Fresh         bool      `json:"isFresh"`
	Source        string    `json:"source,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	DurationMS    int64     `json:"durationMs"`
	At            time.Time `json:"at"`
}

// ChainStateEvent reports a connectivity state transition on one network.
type ChainStateEvent struct {
	ChainID  uint64    `json:"chainId"`
	Network  string    `json:"network,omitempty"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Endpoint string    `json:"endpoint,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// DescriptorEvent reports a change to a locally stored descriptor.
type DescriptorEvent struct {
	ID       string    `json:"id"`
	Action   string    `json:"action"`
	Provider string    `json:"provider"`
	At       time.Time `json:"at"`
}

// Bus is an in-process publish/subscribe fabric. Messages are JSON-encoded
// event payloads; each subscriber gets its own delivery channel and must
// Ack every message it receives.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger logger.LoggerInterface
}

// New creates a bus with a buffered output channel per subscriber.
func New(log logger.LoggerInterface) *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		newLoggerAdapter(log),
	)

	return &Bus{pubsub: pubsub, logger: log}
}

// Publish JSON-encodes the event and delivers it to every current
// subscriber of the topic. Failures are logged, not returned: event
// delivery is best effort and callers never treat it as fatal.
func (b *Bus) Publish(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error(context.Background(), "events: marshal failed", "topic", topic, "error", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		b.logger.Error(context.Background(), "events: publish failed", "topic", topic, "error", err)
	}
}

// Subscribe returns a channel of messages for the topic. The channel is
// closed when ctx is cancelled or the bus shuts down. Consumers must keep
// draining and Ack each message, or publishers stall on the full buffer.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// loggerAdapter bridges watermill's logging interface onto the node logger.
// Watermill's info-level output is routine subscription bookkeeping, so it
// is demoted to debug.
type loggerAdapter struct {
	log    logger.LoggerInterface
	fields watermill.LogFields
}

func newLoggerAdapter(log logger.LoggerInterface) watermill.LoggerAdapter {
	return &loggerAdapter{log: log}
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(context.Background(), msg, a.args(fields, "error", err)...)
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Debug(context.Background(), msg, a.args(fields)...)
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(context.Background(), msg, a.args(fields)...)
}

func (a *loggerAdapter) Trace(msg string, fields watermill.LogFields) {}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{log: a.log, fields: a.fields.Add(fields)}
}

func (a *loggerAdapter) args(fields watermill.LogFields, extra ...any) []any {
	all := a.fields.Add(fields)
	args := make([]any, 0, len(all)*2+len(extra))
	for k, v := range all {
		args = append(args, k, v)
	}
	return append(args, extra...)
}
