package router

import (
	"encoding/json"
	"time"
)

// Envelope is the wire format in both directions: a named event with an
// opaque payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names.
const (
	EventJoinChat           = "join-chat"
	EventLeaveChat          = "leave-chat"
	EventNewMessage         = "new-message"
	EventTyping             = "typing"
	EventStopTyping         = "stop-typing"
	EventCallInitiate       = "call-initiate"
	EventCallAnswer         = "call-answer"
	EventCallEnd            = "call-end"
	EventConnectionRequest  = "connection-request"
	EventConnectionAccepted = "connection-accepted"
)

// Outbound event names.
const (
	EventMessageReceived = "message-received"
	EventIncomingCall    = "incoming-call"
	EventCallAnswered    = "call-answered"
	EventCallEnded       = "call-ended"
)

type MessageReceived struct {
	SenderID  string          `json:"senderId"`
	Message   json.RawMessage `json:"message"`
	ChatID    string          `json:"chatId"`
	CreatedAt time.Time       `json:"createdAt"`
}

type TypingStatus struct {
	SenderID string `json:"senderId"`
	ChatID   string `json:"chatId"`
}

type IncomingCall struct {
	SenderID string `json:"senderId"`
	Type     string `json:"type"`
}

type CallAnswered struct {
	SenderID string          `json:"senderId"`
	Signal   json.RawMessage `json:"signal"`
}

type CallEnded struct {
	SenderID string `json:"senderId"`
}

type ConnectionRequest struct {
	SenderID string          `json:"senderId"`
	Request  json.RawMessage `json:"request"`
}

type ConnectionAccepted struct {
	SenderID string          `json:"senderId"`
	Chat     json.RawMessage `json:"chat"`
}
