package router_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/mentorhub/chat-relay/internal/router"
	"github.com/mentorhub/chat-relay/pkg/session"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeConn struct {
	id   uuid.UUID
	sent [][]byte
}

func newFakeConn() *fakeConn { return &fakeConn{id: uuid.New()} }

func (c *fakeConn) ID() uuid.UUID   { return c.id }
func (c *fakeConn) Send(msg []byte) { c.sent = append(c.sent, msg) }

func (c *fakeConn) envelopes(t *testing.T) []router.Envelope {
	t.Helper()
	out := make([]router.Envelope, 0, len(c.sent))
	for _, msg := range c.sent {
		var env router.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("Delivered frame is not a valid envelope: %v", err)
		}
		out = append(out, env)
	}
	return out
}

func newTestRouter(t *testing.T) (*router.Router, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry(newTestLogger())
	return router.New(newTestLogger(), registry), registry
}

func emit(t *testing.T, r *router.Router, senderID, event, payload string) {
	t.Helper()
	env := router.Envelope{Event: event, Payload: json.RawMessage(payload)}
	msg, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Failed to marshal test envelope: %v", err)
	}
	r.HandleMessage(context.Background(), senderID, msg)
}

// --- Room Broadcast Tests ---

func TestRoomMessageExcludesSender(t *testing.T) {
	r, registry := newTestRouter(t)
	connA, connB := newFakeConn(), newFakeConn()
	registry.Register("user-a", connA)
	registry.Register("user-b", connB)

	emit(t, r, "user-a", router.EventJoinChat, `{"chatId":"c1"}`)
	emit(t, r, "user-b", router.EventJoinChat, `{"chatId":"c1"}`)
	emit(t, r, "user-a", router.EventNewMessage, `{"chatId":"c1","message":"hi"}`)

	if len(connA.sent) != 0 {
		t.Errorf("Sender received their own relay: %d frames", len(connA.sent))
	}
	envs := connB.envelopes(t)
	if len(envs) != 1 {
		t.Fatalf("Expected exactly 1 frame delivered to user-b, got %d", len(envs))
	}
	if envs[0].Event != router.EventMessageReceived {
		t.Errorf("Expected event %q, got %q", router.EventMessageReceived, envs[0].Event)
	}

	var got router.MessageReceived
	if err := json.Unmarshal(envs[0].Payload, &got); err != nil {
		t.Fatalf("Failed to unmarshal message-received payload: %v", err)
	}
	if got.SenderID != "user-a" {
		t.Errorf("Expected senderId user-a, got %s", got.SenderID)
	}
	if string(got.Message) != `"hi"` {
		t.Errorf("Expected message \"hi\", got %s", got.Message)
	}
	if got.ChatID != "c1" {
		t.Errorf("Expected chatId c1, got %s", got.ChatID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected createdAt to be set")
	}
}

func TestMessageToUnjoinedRoomDeliversNothing(t *testing.T) {
	r, registry := newTestRouter(t)
	connA, connB := newFakeConn(), newFakeConn()
	registry.Register("user-a", connA)
	registry.Register("user-b", connB)

	emit(t, r, "user-a", router.EventNewMessage, `{"chatId":"nobody-here","message":"hi"}`)

	if len(connA.sent) != 0 || len(connB.sent) != 0 {
		t.Error("Message to a room with no members was delivered somewhere")
	}
}

func TestLeaveChatStopsDelivery(t *testing.T) {
	r, registry := newTestRouter(t)
	connA, connB := newFakeConn(), newFakeConn()
	registry.Register("user-a", connA)
	registry.Register("user-b", connB)

	emit(t, r, "user-a", router.EventJoinChat, `{"chatId":"c1"}`)
	emit(t, r, "user-b", router.EventJoinChat, `{"chatId":"c1"}`)
	emit(t, r, "user-b", router.EventLeaveChat, `{"chatId":"c1"}`)
	emit(t, r, "user-a", router.EventNewMessage, `{"chatId":"c1","message":"hi"}`)

	if len(connB.sent) != 0 {
		t.Error("User received a room message after leaving the room")
	}
}

// --- Targeted Unicast Tests ---

func TestTypingUnicast(t *testing.T) {
	r, registry := newTestRouter(t)
	connA, connB := newFakeConn(), newFakeConn()
	registry.Register("user-a", connA)
	registry.Register("user-b", connB)

	emit(t, r, "user-a", router.EventTyping, `{"receiverId":"user-b","chatId":"c1"}`)

	envs := connB.envelopes(t)
	if len(envs) != 1 {
		t.Fatalf("Expected 1 typing frame, got %d", len(envs))
	}
	if envs[0].Event != router.EventTyping {
		t.Errorf("Expected event typing, got %q", envs[0].Event)
	}
	var got router.TypingStatus
	if err := json.Unmarshal(envs[0].Payload, &got); err != nil {
		t.Fatalf("Failed to unmarshal typing payload: %v", err)
	}
	if got.SenderID != "user-a" || got.ChatID != "c1" {
		t.Errorf("Unexpected typing payload: %+v", got)
	}
}

func TestTypingToOfflinePeerIsSilent(t *testing.T) {
	r, registry := newTestRouter(t)
	connA := newFakeConn()
	registry.Register("user-a", connA)

	// Must not panic, error, or deliver anything.
	emit(t, r, "user-a", router.EventTyping, `{"receiverId":"user-offline","chatId":"c1"}`)

	if len(connA.sent) != 0 {
		t.Error("Typing to an offline peer produced a delivery")
	}
}

func TestCallSignalPassthrough(t *testing.T) {
	r, registry := newTestRouter(t)
	connA, connB := newFakeConn(), newFakeConn()
	registry.Register("user-a", connA)
	registry.Register("user-b", connB)

	emit(t, r, "user-a", router.EventCallInitiate, `{"receiverId":"user-b","type":"video"}`)
	emit(t, r, "user-b", router.EventCallAnswer, `{"receiverId":"user-a","signal":{"sdp":"v=0","kind":"answer"}}`)
	emit(t, r, "user-a", router.EventCallEnd, `{"receiverId":"user-b"}`)

	bEnvs := connB.envelopes(t)
	if len(bEnvs) != 2 {
		t.Fatalf("Expected user-b to receive incoming-call and call-ended, got %d frames", len(bEnvs))
	}
	if bEnvs[0].Event != router.EventIncomingCall {
		t.Errorf("Expected incoming-call, got %q", bEnvs[0].Event)
	}
	var incoming router.IncomingCall
	if err := json.Unmarshal(bEnvs[0].Payload, &incoming); err != nil {
		t.Fatalf("Failed to unmarshal incoming-call payload: %v", err)
	}
	if incoming.SenderID != "user-a" || incoming.Type != "video" {
		t.Errorf("Unexpected incoming-call payload: %+v", incoming)
	}
	if bEnvs[1].Event != router.EventCallEnded {
		t.Errorf("Expected call-ended, got %q", bEnvs[1].Event)
	}

	aEnvs := connA.envelopes(t)
	if len(aEnvs) != 1 {
		t.Fatalf("Expected user-a to receive call-answered, got %d frames", len(aEnvs))
	}
	var answered router.CallAnswered
	if err := json.Unmarshal(aEnvs[0].Payload, &answered); err != nil {
		t.Fatalf("Failed to unmarshal call-answered payload: %v", err)
	}
	if answered.SenderID != "user-b" {
		t.Errorf("Expected senderId user-b, got %s", answered.SenderID)
	}
	// The signal is an opaque passthrough: its structure must survive intact.
	var signal map[string]any
	if err := json.Unmarshal(answered.Signal, &signal); err != nil {
		t.Fatalf("Signal did not survive the relay as JSON: %v", err)
	}
	if signal["sdp"] != "v=0" || signal["kind"] != "answer" {
		t.Errorf("Signal was mangled in transit: %v", signal)
	}
}

func TestConnectionRequestRelay(t *testing.T) {
	r, registry := newTestRouter(t)
	connA, connB := newFakeConn(), newFakeConn()
	registry.Register("user-a", connA)
	registry.Register("user-b", connB)

	emit(t, r, "user-a", router.EventConnectionRequest, `{"receiverId":"user-b","request":{"id":"req-1"}}`)

	envs := connB.envelopes(t)
	if len(envs) != 1 {
		t.Fatalf("Expected 1 connection-request frame, got %d", len(envs))
	}
	var got router.ConnectionRequest
	if err := json.Unmarshal(envs[0].Payload, &got); err != nil {
		t.Fatalf("Failed to unmarshal connection-request payload: %v", err)
	}
	if got.SenderID != "user-a" {
		t.Errorf("Expected senderId user-a, got %s", got.SenderID)
	}
	var req map[string]any
	if err := json.Unmarshal(got.Request, &req); err != nil {
		t.Fatalf("Request payload did not survive the relay: %v", err)
	}
	if req["id"] != "req-1" {
		t.Errorf("Request payload was mangled: %v", req)
	}
}

// --- Robustness Tests ---

func TestUnknownEventDropped(t *testing.T) {
	r, registry := newTestRouter(t)
	connA, connB := newFakeConn(), newFakeConn()
	registry.Register("user-a", connA)
	registry.Register("user-b", connB)

	emit(t, r, "user-a", "definitely-not-an-event", `{"receiverId":"user-b"}`)

	if len(connA.sent) != 0 || len(connB.sent) != 0 {
		t.Error("Unknown event produced a delivery")
	}
}

func TestMalformedFrameDropped(t *testing.T) {
	r, registry := newTestRouter(t)
	connA := newFakeConn()
	registry.Register("user-a", connA)

	r.HandleMessage(context.Background(), "user-a", []byte("{not json"))
	r.HandleMessage(context.Background(), "user-a", nil)
}

func TestSenderIdentityComesFromSession(t *testing.T) {
	r, registry := newTestRouter(t)
	connA, connB := newFakeConn(), newFakeConn()
	registry.Register("user-a", connA)
	registry.Register("user-b", connB)

	// A client claiming someone else's identity in the payload is ignored;
	// the delivered senderId is always the authenticated session's.
	emit(t, r, "user-a", router.EventTyping, `{"receiverId":"user-b","chatId":"c1","senderId":"user-x"}`)

	envs := connB.envelopes(t)
	if len(envs) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(envs))
	}
	var got router.TypingStatus
	if err := json.Unmarshal(envs[0].Payload, &got); err != nil {
		t.Fatalf("Failed to unmarshal typing payload: %v", err)
	}
	if got.SenderID != "user-a" {
		t.Errorf("Delivered senderId %q was taken from the payload, not the session", got.SenderID)
	}
}
