package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-platform/internal/model"
	"github.com/capitalize-ai/chat-platform/internal/store"
	"github.com/capitalize-ai/chat-platform/pkg/logger"
	"github.com/capitalize-ai/chat-platform/pkg/metrics"
)

// ConversationService handles conversation lifecycle and membership
// authorization.
type ConversationService struct {
	conversations store.ConversationStore
	users         store.UserStore
	messages      store.MessageStore
	logger        *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(
	conversations store.ConversationStore,
	users store.UserStore,
	messages store.MessageStore,
	log *logger.Logger,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		users:         users,
		messages:      messages,
		logger:        log,
	}
}

// GetOrCreateDirect resolves the direct conversation between the caller and
// another user, creating it if it does not exist. The same unordered pair
// always yields the same conversation. The bool reports whether this call
// created it.
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, callerID, otherID string) (*model.Conversation, bool, error) {
	if otherID == "" {
		return nil, false, fmt.Errorf("user_id is required: %w", model.ErrInvalidInput)
	}
	if otherID == callerID {
		return nil, false, fmt.Errorf("cannot start a conversation with yourself: %w", model.ErrInvalidInput)
	}
	if _, err := s.users.Get(ctx, otherID); err != nil {
		return nil, false, err
	}

	now := time.Now()
	candidate := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      model.KindDirect,
		MemberIDs: []string{callerID, otherID},
		CreatedAt: now,
		UpdatedAt: now,
	}

	conv, created, err := s.conversations.FindOrCreateDirect(ctx, candidate)
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.ConversationsTotal.WithLabelValues(string(model.KindDirect)).Inc()
		s.logger.Info("direct conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("user_id", callerID),
		)
	}

	return s.populate(ctx, conv), created, nil
}

// CreateGroup creates a group conversation with the caller as admin. A group
// needs a name and at least two members besides the creator.
func (s *ConversationService) CreateGroup(ctx context.Context, callerID string, req *model.CreateGroupConversationRequest) (*model.Conversation, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("group name is required: %w", model.ErrInvalidInput)
	}

	members := dedupe(append(req.MemberIDs, callerID))
	if len(members) < 3 {
		return nil, fmt.Errorf("group needs at least two members besides the creator: %w", model.ErrInvalidInput)
	}
	for _, id := range members {
		if _, err := s.users.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      model.KindGroup,
		Name:      req.Name,
		MemberIDs: members,
		AdminID:   callerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	metrics.ConversationsTotal.WithLabelValues(string(model.KindGroup)).Inc()
	s.logger.Info("group conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("admin_id", callerID),
		zap.Int("members", len(members)),
	)

	return s.populate(ctx, conv), nil
}

// Get returns a conversation the caller is a member of.
func (s *ConversationService) Get(ctx context.Context, callerID, conversationID string) (*model.Conversation, error) {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsMember(callerID) {
		return nil, fmt.Errorf("not a member of conversation %s: %w", conversationID, model.ErrAccessDenied)
	}
	return s.populate(ctx, conv), nil
}

// List returns the caller's conversations, most recently updated first.
func (s *ConversationService) List(ctx context.Context, callerID string) (*model.ListConversationsResponse, error) {
	convs, err := s.conversations.ListForUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	for i := range convs {
		convs[i] = *s.populate(ctx, &convs[i])
	}
	return &model.ListConversationsResponse{Conversations: convs, Total: len(convs)}, nil
}

// Authorize reports whether the identity is a current member of the
// conversation. It is a pure check with no side effects; deny is an expected
// outcome and is never logged as a system error.
func (s *ConversationService) Authorize(ctx context.Context, userID, conversationID string) error {
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsMember(userID) {
		return fmt.Errorf("not a member of conversation %s: %w", conversationID, model.ErrAccessDenied)
	}
	return nil
}

// SetLatestMessage updates the conversation's latest-message pointer.
func (s *ConversationService) SetLatestMessage(ctx context.Context, conversationID, messageID string) error {
	return s.conversations.SetLatestMessage(ctx, conversationID, messageID)
}

// populate attaches member profiles and the latest message for API responses.
// Lookup failures leave the field empty rather than failing the read.
func (s *ConversationService) populate(ctx context.Context, conv *model.Conversation) *model.Conversation {
	conv.Members = conv.Members[:0]
	for _, id := range conv.MemberIDs {
		if user, err := s.users.Get(ctx, id); err == nil {
			conv.Members = append(conv.Members, *user)
		}
	}

	if conv.LatestMessageID != "" {
		if msg, err := s.messages.Latest(ctx, conv.ID); err == nil {
			if sender, err := s.users.Get(ctx, msg.SenderID); err == nil {
				msg.SenderName = sender.Name
				msg.SenderAvatar = sender.Avatar
			}
			conv.LatestMessage = msg
		}
	}
	return conv
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
