package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mentorhub/chat-relay/pkg/session"
)

// Router dispatches inbound event envelopes to their resolved targets through
// the session registry. Delivery is fire-and-forget: an offline recipient is
// a silent drop, never an error. The sender identity always comes from the
// authenticated session, never from the payload.
type Router struct {
	registry *session.Registry
	logger   *slog.Logger
	now      func() time.Time
}

func New(logger *slog.Logger, registry *session.Registry) *Router {
	return &Router{
		registry: registry,
		logger:   logger.With(slog.String("component", "event_router")),
		now:      time.Now,
	}
}

// HandleMessage parses a raw frame from senderID's connection and routes it.
// Frames from one connection arrive here in emit order; nothing is guaranteed
// across connections.
func (r *Router) HandleMessage(ctx context.Context, senderID string, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		r.logger.Warn("Failed to unmarshal client message", "userID", senderID, "error", err)
		return
	}

	r.logger.Debug("Routing event", slog.String("event", env.Event), slog.String("userID", senderID))
	switch env.Event {
	case EventJoinChat:
		r.handleJoinChat(senderID, env.Payload)
	case EventLeaveChat:
		r.handleLeaveChat(senderID, env.Payload)
	case EventNewMessage:
		r.handleNewMessage(senderID, env.Payload)
	case EventTyping, EventStopTyping:
		r.handleTyping(senderID, env.Event, env.Payload)
	case EventCallInitiate:
		r.handleCallInitiate(senderID, env.Payload)
	case EventCallAnswer:
		r.handleCallAnswer(senderID, env.Payload)
	case EventCallEnd:
		r.handleCallEnd(senderID, env.Payload)
	case EventConnectionRequest:
		r.handleConnectionRequest(senderID, env.Payload)
	case EventConnectionAccepted:
		r.handleConnectionAccepted(senderID, env.Payload)
	default:
		r.logger.Warn("Received unknown event", "event", env.Event, "userID", senderID)
	}
}

// unicast resolves a single recipient via the registry and delivers, dropping
// silently when the recipient is offline.
func (r *Router) unicast(receiverID string, env Envelope) {
	conn, ok := r.registry.Lookup(receiverID)
	if !ok {
		r.logger.Debug("Recipient offline, dropping event", "event", env.Event, "receiverID", receiverID)
		return
	}
	msg, err := json.Marshal(env)
	if err != nil {
		r.logger.Error("Failed to marshal outbound event", "event", env.Event, "error", err)
		return
	}
	conn.Send(msg)
}

// broadcastRoom delivers to every connection joined to the room, excluding
// the sender.
func (r *Router) broadcastRoom(roomID, senderID string, env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		r.logger.Error("Failed to marshal outbound event", "event", env.Event, "error", err)
		return
	}
	for userID, conn := range r.registry.RoomMembers(roomID) {
		if userID == senderID {
			continue
		}
		conn.Send(msg)
	}
}

func envelope(event string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Payload: raw}, nil
}
