package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/internal/service"
	"github.com/capitalize-ai/chat-platform/pkg/logger"
	"github.com/capitalize-ai/chat-platform/pkg/metrics"
)

// Config tunes connection handling.
type Config struct {
	MaxMessageSize int64
	SendBuffer     int
}

// Server owns the real-time endpoint: it authenticates connections, registers
// them with the presence registry, and dispatches their events to the room
// registry and the message ingest pipeline.
type Server struct {
	authenticator *Authenticator
	hub           *Hub
	presence      *PresenceRegistry
	conversations *service.ConversationService
	messages      *service.MessageService
	logger        *logger.Logger

	upgrader       websocket.Upgrader
	maxMessageSize int64
	sendBuffer     int
}

// NewServer creates the real-time server.
func NewServer(
	authenticator *Authenticator,
	hub *Hub,
	presence *PresenceRegistry,
	conversations *service.ConversationService,
	messages *service.MessageService,
	cfg Config,
	log *logger.Logger,
) *Server {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Server{
		authenticator: authenticator,
		hub:           hub,
		presence:      presence,
		conversations: conversations,
		messages:      messages,
		logger:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		maxMessageSize: cfg.MaxMessageSize,
		sendBuffer:     cfg.SendBuffer,
	}
}

// Hub exposes the room registry, e.g. for readiness reporting.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Presence exposes the presence registry.
func (s *Server) Presence() *PresenceRegistry {
	return s.presence
}

// HandleWS upgrades an authenticated HTTP request to a WebSocket connection.
// The credential comes from the token query parameter or a bearer
// Authorization header and is checked before the upgrade: a rejected
// connection never sees a room or message capability.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		if h := r.Header.Get("Authorization"); h != "" {
			parts := strings.SplitN(h, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				credential = parts[1]
			}
		}
	}

	user, err := s.authenticator.Authenticate(r.Context(), credential)
	if err != nil {
		s.logger.Debug("connection rejected", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(model.HTTPStatus(err))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "authentication failed",
			"kind":  model.KindOf(err),
		})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.Must(uuid.NewV7()).String()
	client := &Client{
		id:     connID,
		userID: user.ID,
		conn:   conn,
		send:   make(chan []byte, s.sendBuffer),
		done:   make(chan struct{}),
		server: s,
		logger: s.logger.WithConnection(connID, user.ID),
	}

	metrics.IncrementWSConnections()
	s.presence.OnConnect(context.Background(), client)
	client.logger.Info("connection established")

	go client.writePump()
	go client.readPump()
}

// unregister tears down a connection: all room admissions are released
// atomically with destruction, then presence is updated.
func (s *Server) unregister(client *Client) {
	s.hub.LeaveAll(client)
	s.presence.OnDisconnect(context.Background(), client)
	client.shutdown()
	_ = client.conn.Close()
	metrics.DecrementWSConnections()
	client.logger.Info("connection closed")
}

// dispatch handles one inbound event. It runs on the connection's read loop,
// so events from a single connection are processed strictly in order. The
// background context deliberately outlives the connection: a persist already
// issued completes even if the sender disconnects mid-operation.
func (s *Server) dispatch(client *Client, raw []byte) {
	ctx := context.Background()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.operationError(client, model.ErrInvalidInput, "malformed event")
		return
	}

	switch env.Event {
	case model.EventJoinRoom:
		var req roomRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil || req.ConversationID == "" {
			s.operationError(client, model.ErrInvalidInput, "conversation_id is required")
			return
		}
		if err := s.conversations.Authorize(ctx, client.userID, req.ConversationID); err != nil {
			s.operationError(client, err, "cannot join room")
			return
		}
		s.hub.Join(client, req.ConversationID)

	case model.EventLeaveRoom:
		var req roomRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil || req.ConversationID == "" {
			s.operationError(client, model.ErrInvalidInput, "conversation_id is required")
			return
		}
		s.hub.Leave(client, req.ConversationID)

	case model.EventSendMessage:
		var req model.SendMessageRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			s.operationError(client, model.ErrInvalidInput, "malformed send-message payload")
			return
		}
		msg, err := s.messages.Ingest(ctx, req.ConversationID, client.userID, req.Content)
		if err != nil {
			s.operationError(client, err, "cannot send message")
			return
		}
		s.hub.BroadcastMessage(req.ConversationID, msg)

	case model.EventTyping:
		var ev model.TypingEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil || ev.ConversationID == "" {
			s.operationError(client, model.ErrInvalidInput, "malformed typing payload")
			return
		}
		ev.SenderID = client.userID
		s.hub.BroadcastTyping(ev.ConversationID, ev)

	default:
		s.operationError(client, model.ErrInvalidInput, "unknown event")
	}
}

// operationError reports a failed operation to the originating connection
// only. Denials and invalid input are expected outcomes and log at debug.
func (s *Server) operationError(client *Client, err error, message string) {
	kind := model.KindOf(err)
	metrics.OperationErrorsTotal.WithLabelValues(kind).Inc()
	client.logger.Debug("operation failed", zap.String("kind", kind), zap.Error(err))

	payload, encErr := encodeEvent(model.EventOperationError, model.ErrorEvent{
		Message: message,
		Kind:    kind,
	})
	if encErr != nil {
		return
	}
	client.trySend(payload)
}
