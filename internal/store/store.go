// Package store defines the persistence contracts for users, conversations,
// and messages. The store is the single source of truth; in-memory registries
// are a derived cache of who is currently reachable.
package store

import (
	"context"
	"time"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

// UserStore persists user accounts and presence flags.
type UserStore interface {
	// Create persists a new user. Returns model.ErrAlreadyExists if the
	// email is taken.
	Create(ctx context.Context, user *model.User) error

	// Get returns the user with the given ID, or model.ErrNotFound.
	Get(ctx context.Context, id string) (*model.User, error)

	// GetByEmail returns the user with the given email, or model.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// List returns all users.
	List(ctx context.Context) ([]model.User, error)

	// SetPresence updates the online flag and last-seen timestamp. Only the
	// presence registry calls this.
	SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
}

// ConversationStore persists conversations and their membership.
type ConversationStore interface {
	// Create persists a new conversation.
	Create(ctx context.Context, conv *model.Conversation) error

	// FindOrCreateDirect atomically resolves the direct conversation for the
	// unordered member pair in conv.MemberIDs, creating it if absent. The
	// second return value reports whether a new conversation was created.
	FindOrCreateDirect(ctx context.Context, conv *model.Conversation) (*model.Conversation, bool, error)

	// Get returns the conversation with the given ID, or model.ErrNotFound.
	Get(ctx context.Context, id string) (*model.Conversation, error)

	// ListForUser returns the conversations the user is a member of, most
	// recently updated first.
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)

	// SetLatestMessage updates the latest-message pointer.
	SetLatestMessage(ctx context.Context, conversationID, messageID string) error
}

// MessageStore persists the append-only message log of each conversation.
type MessageStore interface {
	// Append persists a message and returns its assigned sequence. Sequences
	// are monotonically increasing within a conversation.
	Append(ctx context.Context, msg *model.Message) (uint64, error)

	// List returns up to limit messages of the conversation with sequence
	// greater than afterSequence, in ascending order.
	List(ctx context.Context, conversationID string, afterSequence uint64, limit int) ([]model.Message, error)

	// Latest returns the most recent message of the conversation, or
	// model.ErrNotFound if it has none.
	Latest(ctx context.Context, conversationID string) (*model.Message, error)
}
