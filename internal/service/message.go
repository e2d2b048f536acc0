package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/internal/store"
	"github.com/capitalize-ai/chat-platform/pkg/logger"
	"github.com/capitalize-ai/chat-platform/pkg/metrics"
)

// MessageService is the message ingest pipeline: it validates, authorizes,
// persists, and stamps incoming messages. Delivery to live connections is the
// room registry's job; this service only produces the fully-resolved message.
type MessageService struct {
	messages      store.MessageStore
	conversations *ConversationService
	users         store.UserStore
	logger        *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(
	messages store.MessageStore,
	conversations *ConversationService,
	users store.UserStore,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		messages:      messages,
		conversations: conversations,
		users:         users,
		logger:        log,
	}
}

// Ingest validates and persists a message, updates the conversation's
// latest-message pointer, and returns the message with sender display fields
// attached, ready for broadcast.
//
// A failed pointer update after a successful persist is a recoverable
// inconsistency: the message exists and will appear on the next full fetch,
// so the caller's request still succeeds.
func (s *MessageService) Ingest(ctx context.Context, conversationID, senderID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content is empty: %w", model.ErrInvalidInput)
	}

	if err := s.conversations.Authorize(ctx, senderID, conversationID); err != nil {
		return nil, err
	}

	sender, err := s.users.Get(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		ReadBy:         []string{senderID},
		CreatedAt:      time.Now(),
	}

	seq, err := s.messages.Append(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.Sequence = seq
	metrics.MessagesTotal.WithLabelValues("chat").Inc()

	if err := s.conversations.SetLatestMessage(ctx, conversationID, msg.ID); err != nil {
		s.logger.Warn("latest-message pointer update failed after persist",
			zap.String("conversation_id", conversationID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	msg.SenderName = sender.Name
	msg.SenderAvatar = sender.Avatar
	return msg, nil
}

// List returns messages of a conversation the caller is a member of, in
// ascending order, with sender display fields attached.
func (s *MessageService) List(ctx context.Context, callerID, conversationID string, afterSequence uint64, limit int) (*model.ListMessagesResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	if err := s.conversations.Authorize(ctx, callerID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.messages.List(ctx, conversationID, afterSequence, limit)
	if err != nil {
		return nil, err
	}

	senders := make(map[string]*model.User)
	var lastSeq uint64
	for i := range messages {
		m := &messages[i]
		sender, ok := senders[m.SenderID]
		if !ok {
			sender, _ = s.users.Get(ctx, m.SenderID)
			senders[m.SenderID] = sender
		}
		if sender != nil {
			m.SenderName = sender.Name
			m.SenderAvatar = sender.Avatar
		}
		lastSeq = m.Sequence
	}

	return &model.ListMessagesResponse{
		Messages:     messages,
		HasMore:      len(messages) == limit,
		LastSequence: lastSeq,
	}, nil
}
