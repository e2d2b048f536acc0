package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

// ConversationStore is a JetStream KV-backed store.ConversationStore.
type ConversationStore struct {
	conversations jetstream.KeyValue
	direct        jetstream.KeyValue
}

// directKey builds the canonical index key for an unordered member pair.
// User IDs are UUIDs, so the key stays within the KV key alphabet.
func directKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "." + b
}

func (s *ConversationStore) put(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if _, err := s.conversations.Put(ctx, conv.ID, data); err != nil {
		return storeErr("put conversation", err)
	}
	return nil
}

func (s *ConversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	return s.put(ctx, conv)
}

func (s *ConversationStore) FindOrCreateDirect(ctx context.Context, conv *model.Conversation) (*model.Conversation, bool, error) {
	if len(conv.MemberIDs) != 2 {
		return nil, false, fmt.Errorf("direct conversation needs exactly two members: %w", model.ErrInvalidInput)
	}
	key := directKey(conv.MemberIDs[0], conv.MemberIDs[1])

	// Atomic create on the pair index decides the race: exactly one caller
	// wins, everyone else reads the winner's conversation ID.
	_, err := s.direct.Create(ctx, key, []byte(conv.ID))
	if err == nil {
		if err := s.put(ctx, conv); err != nil {
			return nil, false, err
		}
		return conv, true, nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return nil, false, storeErr("claim direct pair", err)
	}

	entry, err := s.direct.Get(ctx, key)
	if err != nil {
		return nil, false, storeErr("resolve direct pair", err)
	}
	existing, err := s.Get(ctx, string(entry.Value()))
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	entry, err := s.conversations.Get(ctx, id)
	if err != nil {
		return nil, storeErr("get conversation", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *ConversationStore) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	lister, err := s.conversations.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, storeErr("list conversations", err)
	}

	// Full scan; conversation counts per deployment stay small enough that a
	// secondary membership index is not worth its write amplification.
	var convs []model.Conversation
	for key := range lister.Keys() {
		conv, err := s.Get(ctx, key)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if conv.IsMember(userID) {
			convs = append(convs, *conv)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs, nil
}

func (s *ConversationStore) SetLatestMessage(ctx context.Context, conversationID, messageID string) error {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}

	conv.LatestMessageID = messageID
	conv.UpdatedAt = time.Now()
	return s.put(ctx, conv)
}
