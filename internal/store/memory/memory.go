// Package memory provides mutex-guarded in-memory implementations of the
// store contracts. It backs local development and tests; production wiring
// uses the NATS-backed stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

// UserStore is an in-memory store.UserStore.
type UserStore struct {
	mu      sync.RWMutex
	users   map[string]*model.User
	byEmail map[string]string
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return fmt.Errorf("user %s: %w", user.Email, model.ErrAlreadyExists)
	}

	u := *user
	s.users[u.ID] = &u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, model.ErrNotFound)
	}
	copied := *s.users[id]
	return &copied, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *UserStore) SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	u.IsOnline = online
	u.LastSeen = lastSeen
	return nil
}

// ConversationStore is an in-memory store.ConversationStore.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	directIndex   map[string]string
}

// NewConversationStore creates an empty in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*model.Conversation),
		directIndex:   make(map[string]string),
	}
}

// directKey builds the canonical index key for an unordered member pair.
func directKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func (s *ConversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneConversation(conv)
	s.conversations[c.ID] = c
	return nil
}

func (s *ConversationStore) FindOrCreateDirect(ctx context.Context, conv *model.Conversation) (*model.Conversation, bool, error) {
	if len(conv.MemberIDs) != 2 {
		return nil, false, fmt.Errorf("direct conversation needs exactly two members: %w", model.ErrInvalidInput)
	}
	key := directKey(conv.MemberIDs[0], conv.MemberIDs[1])

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.directIndex[key]; ok {
		copied := *s.conversations[id]
		return &copied, false, nil
	}

	c := cloneConversation(conv)
	s.conversations[c.ID] = c
	s.directIndex[key] = c.ID
	copied := *c
	return &copied, true, nil
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, model.ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (s *ConversationStore) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []model.Conversation
	for _, c := range s.conversations {
		if c.IsMember(userID) {
			convs = append(convs, *c)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs, nil
}

func (s *ConversationStore) SetLatestMessage(ctx context.Context, conversationID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, model.ErrNotFound)
	}
	c.LatestMessageID = messageID
	c.UpdatedAt = time.Now()
	return nil
}

func cloneConversation(conv *model.Conversation) *model.Conversation {
	c := *conv
	c.MemberIDs = append([]string(nil), conv.MemberIDs...)
	return &c
}

// MessageStore is an in-memory store.MessageStore. Messages are kept in
// insertion order per conversation, which is also their timestamp order since
// timestamps are assigned under the same lock.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string][]model.Message
	seq      map[string]uint64
}

// NewMessageStore creates an empty in-memory message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string][]model.Message),
		seq:      make(map[string]uint64),
	}
}

func (s *MessageStore) Append(ctx context.Context, msg *model.Message) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[msg.ConversationID]++
	seq := s.seq[msg.ConversationID]

	m := *msg
	m.Sequence = seq
	m.ReadBy = append([]string(nil), msg.ReadBy...)
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], m)
	return seq, nil
}

func (s *MessageStore) List(ctx context.Context, conversationID string, afterSequence uint64, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Message
	for _, m := range s.messages[conversationID] {
		if m.Sequence <= afterSequence {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MessageStore) Latest(ctx context.Context, conversationID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	if len(msgs) == 0 {
		return nil, fmt.Errorf("conversation %s has no messages: %w", conversationID, model.ErrNotFound)
	}
	copied := msgs[len(msgs)-1]
	return &copied, nil
}
