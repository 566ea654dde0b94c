package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/coder/websocket"

	"github.com/ddomesh/ddo-node/internal/apperror"
	"github.com/ddomesh/ddo-node/internal/events"
)

const eventWriteTimeout = 5 * time.Second

// streamFrame is one event pushed to a websocket subscriber.
type streamFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// handleEvents streams resolution, chain-state and descriptor events over
// a websocket. The stream lives until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.respondError(w, r, apperror.Unavailable(apperror.CodeServiceUnavailable,
			"event stream is not configured", nil))
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// CloseRead discards client messages and cancels the context when the
	// peer goes away; the subscriptions below die with it.
	ctx := conn.CloseRead(r.Context())

	frames := make(chan streamFrame, 64)
	topics := []string{events.TopicResolution, events.TopicChainState, events.TopicDescriptor}
	for _, topic := range topics {
		msgs, err := s.bus.Subscribe(ctx, topic)
		if err != nil {
			s.logger.Error(r.Context(), "event subscription failed", "topic", topic, "error", err)
			conn.Close(websocket.StatusInternalError, "subscription failed")
			return
		}
		go forwardTopic(ctx, topic, msgs, frames)
	}

	s.logger.Debug(r.Context(), "event stream opened", "request_id", RequestID(r.Context()))

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			payload, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// forwardTopic acks bus messages and fans them into the client's frame
// channel. A client that cannot keep up loses frames rather than stalling
// the bus for every other subscriber.
func forwardTopic(ctx context.Context, topic string, msgs <-chan *message.Message, frames chan<- streamFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			msg.Ack()

			select {
			case frames <- streamFrame{Topic: topic, Payload: json.RawMessage(msg.Payload)}:
			default:
			}
		}
	}
}
