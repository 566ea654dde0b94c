package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ddomesh/ddo-node/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

func TestBus_PublishDelivered(t *testing.T) {
	bus := New(&mockLogger{})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicResolution)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	event := ResolutionEvent{
		ID:     "ddo-1",
		Known:  true,
		Fresh:  true,
		Source: "cache",
		At:     time.Now().UTC(),
	}
	bus.Publish(TopicResolution, event)

	select {
	case msg := <-msgs:
		var got ResolutionEvent
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("payload is not valid JSON: %v", err)
		}
		if got.ID != "ddo-1" || got.Source != "cache" {
			t.Errorf("got event %+v, want id=ddo-1 source=cache", got)
		}
		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_PublishWithoutSubscribersReturns(t *testing.T) {
	bus := New(&mockLogger{})
	defer bus.Close()

	done := make(chan struct{})
	go func() {
		bus.Publish(TopicChainState, ChainStateEvent{ChainID: 1, From: "connected", To: "degraded"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := New(&mockLogger{})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicChainState)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	bus.Publish(TopicDescriptor, DescriptorEvent{ID: "ddo-1", Action: "created"})

	select {
	case msg := <-msgs:
		t.Fatalf("chain.state subscriber received foreign message: %s", msg.Payload)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBus_CloseClosesSubscriberChannels(t *testing.T) {
	bus := New(&mockLogger{})

	msgs, err := bus.Subscribe(context.Background(), TopicResolution)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case _, ok := <-msgs:
		if ok {
			t.Error("expected closed channel, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed after bus shutdown")
	}
}
