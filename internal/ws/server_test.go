package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/capitalize-ai/chat-platform/internal/auth"
	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/internal/service"
	"github.com/capitalize-ai/chat-platform/internal/store/memory"
)

// wsEnv is a full in-process stack behind a test HTTP server.
type wsEnv struct {
	ts     *httptest.Server
	hub    *Hub
	issuer *auth.TokenIssuer
	users  *memory.UserStore
	convs  *service.ConversationService
	msgs   *service.MessageService
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()

	log := newTestLogger()
	users := memory.NewUserStore()
	conversations := memory.NewConversationStore()
	messages := memory.NewMessageStore()

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	verifier := auth.NewVerifier("test-secret")

	convSvc := service.NewConversationService(conversations, users, messages, log)
	msgSvc := service.NewMessageService(messages, convSvc, users, log)

	hub := NewHub(log)
	presence := NewPresenceRegistry(users, log)
	authenticator := NewAuthenticator(verifier, users)
	srv := NewServer(authenticator, hub, presence, convSvc, msgSvc, Config{}, log)

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)

	return &wsEnv{ts: ts, hub: hub, issuer: issuer, users: users, convs: convSvc, msgs: msgSvc}
}

func (e *wsEnv) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	token, err := e.issuer.Issue(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event model.EventType, payload interface{}) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(Envelope{Event: event, Payload: data}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// waitForEvent reads until it sees the wanted event type, skipping unrelated
// events such as presence announcements.
func waitForEvent(t *testing.T, conn *websocket.Conn, want model.EventType) Envelope {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if env.Event == want {
			return env
		}
	}
}

// waitForRoomSize polls until the room reaches the wanted size.
func (e *wsEnv) waitForRoomSize(t *testing.T, conversationID string, want int) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if e.hub.RoomSize(conversationID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached size %d", conversationID, want)
}

func (e *wsEnv) seedUser(t *testing.T, id, name string) {
	t.Helper()
	if err := e.users.Create(context.Background(), &model.User{
		ID: id, Name: name, Email: name + "@example.com", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
}

func TestRejectsMissingAndBadCredentials(t *testing.T) {
	env := newWSEnv(t)

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http")
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("dial without credential should fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 handshake response, got %+v", resp)
	}

	if _, resp, err := websocket.DefaultDialer.Dial(url+"?token=garbage", nil); err == nil {
		t.Error("dial with bad credential should fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 handshake response, got %+v", resp)
	}
}

func TestRejectsUnknownIdentity(t *testing.T) {
	env := newWSEnv(t)

	// Valid signature, but the identity does not exist in the store.
	token, err := env.issuer.Issue("ghost")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "?token=" + token
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("dial as unknown identity should fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 handshake response, got %+v", resp)
	}
}

func TestChatScenario(t *testing.T) {
	env := newWSEnv(t)
	ctx := context.Background()

	env.seedUser(t, "alice", "alice")
	env.seedUser(t, "bob", "bob")
	env.seedUser(t, "mallory", "mallory")

	conv, _, err := env.convs.GetOrCreateDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	alice := env.dial(t, "alice")
	bob := env.dial(t, "bob")

	// Alice connected first, so she hears bob come online.
	env2 := waitForEvent(t, alice, model.EventIdentityOnline)
	var presence model.PresenceEvent
	if err := json.Unmarshal(env2.Payload, &presence); err != nil {
		t.Fatalf("bad presence payload: %v", err)
	}
	if presence.UserID != "bob" {
		t.Errorf("online announcement for %q, want bob", presence.UserID)
	}

	// Both join the conversation's room.
	send(t, alice, model.EventJoinRoom, roomRequest{ConversationID: conv.ID})
	send(t, bob, model.EventJoinRoom, roomRequest{ConversationID: conv.ID})
	env.waitForRoomSize(t, conv.ID, 2)

	// Alice sends a message: she gets the ack, bob gets the delivery.
	send(t, alice, model.EventSendMessage, model.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "hello bob",
	})

	ack := waitForEvent(t, alice, model.EventMessageSentAck)
	var acked model.MessageEvent
	if err := json.Unmarshal(ack.Payload, &acked); err != nil {
		t.Fatalf("bad ack payload: %v", err)
	}
	if acked.Message.Content != "hello bob" || acked.Message.Sequence != 1 {
		t.Errorf("ack payload = %+v", acked.Message)
	}

	delivered := waitForEvent(t, bob, model.EventMessageDelivered)
	var got model.MessageEvent
	if err := json.Unmarshal(delivered.Payload, &got); err != nil {
		t.Fatalf("bad delivery payload: %v", err)
	}
	if got.Message.SenderID != "alice" || got.Message.SenderName != "alice" {
		t.Errorf("delivery payload = %+v", got.Message)
	}

	// The message survived the connection: history shows it.
	history, err := env.msgs.List(ctx, "bob", conv.ID, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(history.Messages) != 1 {
		t.Fatalf("history has %d messages, want 1", len(history.Messages))
	}

	// Typing reaches bob with the sender stamped by the server.
	send(t, alice, model.EventTyping, model.TypingEvent{
		ConversationID: conv.ID,
		SenderID:       "forged", // ignored on input
		IsTyping:       true,
	})
	typing := waitForEvent(t, bob, model.EventTyping)
	var typed model.TypingEvent
	if err := json.Unmarshal(typing.Payload, &typed); err != nil {
		t.Fatalf("bad typing payload: %v", err)
	}
	if typed.SenderID != "alice" || !typed.IsTyping {
		t.Errorf("typing payload = %+v", typed)
	}
}

func TestSequentialSendsArriveInOrder(t *testing.T) {
	env := newWSEnv(t)
	ctx := context.Background()

	env.seedUser(t, "alice", "alice")
	env.seedUser(t, "bob", "bob")

	conv, _, err := env.convs.GetOrCreateDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	alice := env.dial(t, "alice")
	bob := env.dial(t, "bob")

	send(t, alice, model.EventJoinRoom, roomRequest{ConversationID: conv.ID})
	send(t, bob, model.EventJoinRoom, roomRequest{ConversationID: conv.ID})
	env.waitForRoomSize(t, conv.ID, 2)

	// Two sends from one connection are dispatched sequentially by the read
	// loop, so the second message is not persisted before the first has been
	// fanned out. Every recipient must observe them in sequence order.
	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		send(t, alice, model.EventSendMessage, model.SendMessageRequest{
			ConversationID: conv.ID,
			Content:        content,
		})
	}

	var lastSeq uint64
	for i, want := range contents {
		delivered := waitForEvent(t, bob, model.EventMessageDelivered)
		var got model.MessageEvent
		if err := json.Unmarshal(delivered.Payload, &got); err != nil {
			t.Fatalf("bad delivery payload: %v", err)
		}
		if got.Message.Content != want {
			t.Fatalf("delivery %d = %q, want %q", i, got.Message.Content, want)
		}
		if got.Message.Sequence <= lastSeq {
			t.Fatalf("delivery %d has sequence %d, not after %d", i, got.Message.Sequence, lastSeq)
		}
		lastSeq = got.Message.Sequence
	}

	// The sender's acks carry the same order.
	for i, want := range contents {
		ack := waitForEvent(t, alice, model.EventMessageSentAck)
		var got model.MessageEvent
		if err := json.Unmarshal(ack.Payload, &got); err != nil {
			t.Fatalf("bad ack payload: %v", err)
		}
		if got.Message.Content != want {
			t.Fatalf("ack %d = %q, want %q", i, got.Message.Content, want)
		}
	}
}

func TestJoinDeniedForNonMember(t *testing.T) {
	env := newWSEnv(t)
	ctx := context.Background()

	env.seedUser(t, "alice", "alice")
	env.seedUser(t, "bob", "bob")
	env.seedUser(t, "mallory", "mallory")

	conv, _, err := env.convs.GetOrCreateDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	mallory := env.dial(t, "mallory")

	send(t, mallory, model.EventJoinRoom, roomRequest{ConversationID: conv.ID})

	env2 := waitForEvent(t, mallory, model.EventOperationError)
	var opErr model.ErrorEvent
	if err := json.Unmarshal(env2.Payload, &opErr); err != nil {
		t.Fatalf("bad error payload: %v", err)
	}
	if opErr.Kind != "AccessDenied" {
		t.Errorf("kind = %q, want AccessDenied", opErr.Kind)
	}
	if env.hub.RoomSize(conv.ID) != 0 {
		t.Error("denied join must not admit the connection")
	}
}

func TestSendDeniedForNonMember(t *testing.T) {
	env := newWSEnv(t)
	ctx := context.Background()

	env.seedUser(t, "alice", "alice")
	env.seedUser(t, "bob", "bob")
	env.seedUser(t, "mallory", "mallory")

	conv, _, err := env.convs.GetOrCreateDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	mallory := env.dial(t, "mallory")
	send(t, mallory, model.EventSendMessage, model.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "let me in",
	})

	env2 := waitForEvent(t, mallory, model.EventOperationError)
	var opErr model.ErrorEvent
	if err := json.Unmarshal(env2.Payload, &opErr); err != nil {
		t.Fatalf("bad error payload: %v", err)
	}
	if opErr.Kind != "AccessDenied" {
		t.Errorf("kind = %q, want AccessDenied", opErr.Kind)
	}

	history, err := env.msgs.List(ctx, "alice", conv.ID, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(history.Messages) != 0 {
		t.Error("denied send must not persist")
	}
}

func TestMalformedEventGetsInvalidInput(t *testing.T) {
	env := newWSEnv(t)

	env.seedUser(t, "alice", "alice")
	alice := env.dial(t, "alice")

	if err := alice.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	env2 := waitForEvent(t, alice, model.EventOperationError)
	var opErr model.ErrorEvent
	if err := json.Unmarshal(env2.Payload, &opErr); err != nil {
		t.Fatalf("bad error payload: %v", err)
	}
	if opErr.Kind != "InvalidInput" {
		t.Errorf("kind = %q, want InvalidInput", opErr.Kind)
	}
}
