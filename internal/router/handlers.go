package router

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Payload fields are pulled out with gjson rather than per-event unmarshal
// structs; opaque fields (signal, request, chat) pass through as raw JSON.

func (r *Router) handleJoinChat(senderID string, payload json.RawMessage) {
	chatID := gjson.GetBytes(payload, "chatId").String()
	if chatID == "" {
		r.logger.Warn("join-chat without chatId", "userID", senderID)
		return
	}
	r.registry.Join(senderID, chatID)
}

func (r *Router) handleLeaveChat(senderID string, payload json.RawMessage) {
	chatID := gjson.GetBytes(payload, "chatId").String()
	if chatID == "" {
		r.logger.Warn("leave-chat without chatId", "userID", senderID)
		return
	}
	r.registry.Leave(senderID, chatID)
}

func (r *Router) handleNewMessage(senderID string, payload json.RawMessage) {
	chatID := gjson.GetBytes(payload, "chatId").String()
	if chatID == "" {
		r.logger.Warn("new-message without chatId", "userID", senderID)
		return
	}
	message := gjson.GetBytes(payload, "message")
	if !message.Exists() {
		r.logger.Warn("new-message without message", "userID", senderID, "chatId", chatID)
		return
	}

	env, err := envelope(EventMessageReceived, MessageReceived{
		SenderID:  senderID,
		Message:   json.RawMessage(message.Raw),
		ChatID:    chatID,
		CreatedAt: r.now(),
	})
	if err != nil {
		r.logger.Error("Failed to build message-received event", "error", err)
		return
	}
	// The sender already has the message locally; relay to everyone else in
	// the room.
	r.broadcastRoom(chatID, senderID, env)
}

func (r *Router) handleTyping(senderID, event string, payload json.RawMessage) {
	receiverID := gjson.GetBytes(payload, "receiverId").String()
	if receiverID == "" {
		r.logger.Warn("typing event without receiverId", "event", event, "userID", senderID)
		return
	}
	env, err := envelope(event, TypingStatus{
		SenderID: senderID,
		ChatID:   gjson.GetBytes(payload, "chatId").String(),
	})
	if err != nil {
		r.logger.Error("Failed to build typing event", "error", err)
		return
	}
	r.unicast(receiverID, env)
}

func (r *Router) handleCallInitiate(senderID string, payload json.RawMessage) {
	receiverID := gjson.GetBytes(payload, "receiverId").String()
	if receiverID == "" {
		r.logger.Warn("call-initiate without receiverId", "userID", senderID)
		return
	}
	env, err := envelope(EventIncomingCall, IncomingCall{
		SenderID: senderID,
		Type:     gjson.GetBytes(payload, "type").String(), // "video" or "voice"
	})
	if err != nil {
		r.logger.Error("Failed to build incoming-call event", "error", err)
		return
	}
	r.unicast(receiverID, env)
}

func (r *Router) handleCallAnswer(senderID string, payload json.RawMessage) {
	receiverID := gjson.GetBytes(payload, "receiverId").String()
	if receiverID == "" {
		r.logger.Warn("call-answer without receiverId", "userID", senderID)
		return
	}
	env, err := envelope(EventCallAnswered, CallAnswered{
		SenderID: senderID,
		Signal:   rawField(payload, "signal"),
	})
	if err != nil {
		r.logger.Error("Failed to build call-answered event", "error", err)
		return
	}
	r.unicast(receiverID, env)
}

func (r *Router) handleCallEnd(senderID string, payload json.RawMessage) {
	receiverID := gjson.GetBytes(payload, "receiverId").String()
	if receiverID == "" {
		r.logger.Warn("call-end without receiverId", "userID", senderID)
		return
	}
	env, err := envelope(EventCallEnded, CallEnded{SenderID: senderID})
	if err != nil {
		r.logger.Error("Failed to build call-ended event", "error", err)
		return
	}
	r.unicast(receiverID, env)
}

func (r *Router) handleConnectionRequest(senderID string, payload json.RawMessage) {
	receiverID := gjson.GetBytes(payload, "receiverId").String()
	if receiverID == "" {
		r.logger.Warn("connection-request without receiverId", "userID", senderID)
		return
	}
	env, err := envelope(EventConnectionRequest, ConnectionRequest{
		SenderID: senderID,
		Request:  rawField(payload, "request"),
	})
	if err != nil {
		r.logger.Error("Failed to build connection-request event", "error", err)
		return
	}
	r.unicast(receiverID, env)
}

func (r *Router) handleConnectionAccepted(senderID string, payload json.RawMessage) {
	receiverID := gjson.GetBytes(payload, "receiverId").String()
	if receiverID == "" {
		r.logger.Warn("connection-accepted without receiverId", "userID", senderID)
		return
	}
	env, err := envelope(EventConnectionAccepted, ConnectionAccepted{
		SenderID: senderID,
		Chat:     rawField(payload, "chat"),
	})
	if err != nil {
		r.logger.Error("Failed to build connection-accepted event", "error", err)
		return
	}
	r.unicast(receiverID, env)
}

// rawField extracts a payload field as raw JSON, preserving its shape.
// A missing field becomes JSON null.
func rawField(payload json.RawMessage, path string) json.RawMessage {
	value := gjson.GetBytes(payload, path)
	if !value.Exists() {
		return json.RawMessage("null")
	}
	return json.RawMessage(value.Raw)
}
