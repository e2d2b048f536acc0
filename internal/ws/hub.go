package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/pkg/logger"
	"github.com/capitalize-ai/chat-platform/pkg/metrics"
)

// Hub is the room registry: per-conversation sets of admitted live
// connections. Admission is connection-scoped and explicit; closing a
// connection releases all of its rooms atomically.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	joined map[*Client]map[string]struct{}
	logger *logger.Logger
}

// NewHub creates an empty room registry.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
		logger: log,
	}
}

// Join admits a connection to a conversation's room. Joining twice is a
// no-op. Authorization is the caller's responsibility; the hub only manages
// the live connection set.
func (h *Hub) Join(client *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[conversationID] = room
	}
	if _, admitted := room[client]; admitted {
		return
	}
	room[client] = struct{}{}

	if h.joined[client] == nil {
		h.joined[client] = make(map[string]struct{})
	}
	h.joined[client][conversationID] = struct{}{}
	metrics.RoomJoinsTotal.Inc()
}

// Leave removes a connection from a room. Leaving a room the connection is
// not in is a no-op; no authorization is required.
func (h *Hub) Leave(client *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, conversationID)
}

// LeaveAll releases every room admission held by the connection. Called on
// disconnect.
func (h *Hub) LeaveAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conversationID := range h.joined[client] {
		h.leaveLocked(client, conversationID)
	}
	delete(h.joined, client)
}

func (h *Hub) leaveLocked(client *Client, conversationID string) {
	room, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
	if set := h.joined[client]; set != nil {
		delete(set, conversationID)
	}
}

// RoomSize returns the number of connections admitted to a room.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// snapshot returns the admitted connections of a room. The copy keeps
// membership mutations from racing a fan-out in progress.
func (h *Hub) snapshot(conversationID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[conversationID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	return clients
}

// BroadcastMessage delivers a persisted message to every connection admitted
// to the conversation's room. The sender's own connections receive
// message-sent-ack; everyone else receives message-delivered. Delivery is
// best-effort per recipient: a full send buffer drops that recipient's copy
// without delaying the rest.
func (h *Hub) BroadcastMessage(conversationID string, msg *model.Message) {
	event := model.MessageEvent{Message: *msg, ConversationID: conversationID}

	delivered, err := encodeEvent(model.EventMessageDelivered, event)
	if err != nil {
		h.logger.Error("failed to encode message event", zap.Error(err))
		return
	}
	ack, err := encodeEvent(model.EventMessageSentAck, event)
	if err != nil {
		h.logger.Error("failed to encode message ack", zap.Error(err))
		return
	}

	for _, client := range h.snapshot(conversationID) {
		payload := delivered
		if client.userID == msg.SenderID {
			payload = ack
		}
		h.deliver(client, payload)
	}
	metrics.BroadcastsTotal.WithLabelValues(string(model.EventMessageDelivered)).Inc()
}

// BroadcastTyping relays a typing indicator to the room, suppressing every
// connection owned by the sender.
func (h *Hub) BroadcastTyping(conversationID string, event model.TypingEvent) {
	payload, err := encodeEvent(model.EventTyping, event)
	if err != nil {
		h.logger.Error("failed to encode typing event", zap.Error(err))
		return
	}

	for _, client := range h.snapshot(conversationID) {
		if client.userID == event.SenderID {
			continue
		}
		h.deliver(client, payload)
	}
	metrics.BroadcastsTotal.WithLabelValues(string(model.EventTyping)).Inc()
}

func (h *Hub) deliver(client *Client, payload []byte) {
	if !client.trySend(payload) {
		metrics.DroppedDeliveriesTotal.Inc()
		h.logger.Debug("dropped delivery, send buffer full",
			zap.String("conn_id", client.id),
			zap.String("user_id", client.userID),
		)
	}
}
