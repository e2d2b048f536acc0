package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/chat-platform/internal/middleware"
	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/internal/service"
	"github.com/capitalize-ai/chat-platform/pkg/logger"
)

const defaultMessagePageSize = 50

// MessageBroadcaster fans a persisted message out to connected room members.
type MessageBroadcaster interface {
	BroadcastMessage(conversationID string, msg *model.Message)
}

// MessageHandler handles message history and REST-based sending.
type MessageHandler struct {
	messageService *service.MessageService
	broadcaster    MessageBroadcaster
	logger         *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(messageService *service.MessageService, broadcaster MessageBroadcaster, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		broadcaster:    broadcaster,
		logger:         log,
	}
}

// List handles GET /api/v1/conversations/{conversationID}/messages?after=seq&limit=n
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r.Context())

	conversationID := chi.URLParam(r, "conversationID")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after parameter")
			return
		}
		after = parsed
	}

	limit := defaultMessagePageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	resp, err := h.messageService.List(r.Context(), callerID, conversationID, after, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/conversations/{conversationID}/messages
//
// The websocket send-message event is the primary path; this endpoint
// exists for clients without a live socket. Delivery to joined room
// members still happens through the hub.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r.Context())

	conversationID := chi.URLParam(r, "conversationID")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.messageService.Ingest(r.Context(), conversationID, callerID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.broadcaster.BroadcastMessage(conversationID, msg)
	writeJSON(w, http.StatusCreated, msg)
}
