package presence

import (
	"encoding/json"
	"log/slog"

	"github.com/mentorhub/chat-relay/internal/router"
	"github.com/mentorhub/chat-relay/pkg/session"
)

const EventUserStatus = "user-status"

type UserStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// Broadcaster announces online/offline transitions to every connected
// session. It holds no state of its own; the registry snapshot at announce
// time is the audience.
type Broadcaster struct {
	registry *session.Registry
	logger   *slog.Logger
}

func NewBroadcaster(logger *slog.Logger, registry *session.Registry) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger.With(slog.String("component", "presence")),
	}
}

// Announce broadcasts a user-status event to all currently registered
// connections.
func (b *Broadcaster) Announce(userID string, online bool) {
	payload, err := json.Marshal(UserStatus{UserID: userID, IsOnline: online})
	if err != nil {
		b.logger.Error("Failed to marshal user-status payload", "error", err)
		return
	}
	msg, err := json.Marshal(router.Envelope{Event: EventUserStatus, Payload: payload})
	if err != nil {
		b.logger.Error("Failed to marshal user-status event", "error", err)
		return
	}

	for _, conn := range b.registry.Snapshot() {
		conn.Send(msg)
	}
	b.logger.Debug("Announced user status", "userID", userID, "isOnline", online)
}
