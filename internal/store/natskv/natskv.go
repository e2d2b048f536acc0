// Package natskv implements the store contracts on NATS JetStream: key-value
// buckets for users and conversations, and a stream for the per-conversation
// message logs.
package natskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

const (
	// UsersBucket holds user records keyed by user ID.
	UsersBucket = "CHAT_USERS"

	// EmailIndexBucket maps encoded email addresses to user IDs.
	EmailIndexBucket = "CHAT_USER_EMAILS"

	// ConversationsBucket holds conversation records keyed by conversation ID.
	ConversationsBucket = "CHAT_CONVERSATIONS"

	// DirectIndexBucket maps canonical member-pair keys to conversation IDs.
	// The atomic KV create on this bucket is what makes direct-conversation
	// get-or-create race-free.
	DirectIndexBucket = "CHAT_DIRECT_INDEX"

	// MessagesStream is the stream holding all conversation messages.
	MessagesStream = "CHAT_MESSAGES"

	// messageSubjectPrefix prefixes per-conversation message subjects.
	messageSubjectPrefix = "chat.msg"
)

// Stores bundles the JetStream-backed store implementations.
type Stores struct {
	Users         *UserStore
	Conversations *ConversationStore
	Messages      *MessageStore
}

// Setup ensures all buckets and streams exist and returns the stores.
func Setup(ctx context.Context, js jetstream.JetStream) (*Stores, error) {
	users, err := ensureBucket(ctx, js, UsersBucket)
	if err != nil {
		return nil, err
	}
	emails, err := ensureBucket(ctx, js, EmailIndexBucket)
	if err != nil {
		return nil, err
	}
	convs, err := ensureBucket(ctx, js, ConversationsBucket)
	if err != nil {
		return nil, err
	}
	direct, err := ensureBucket(ctx, js, DirectIndexBucket)
	if err != nil {
		return nil, err
	}
	if err := ensureMessagesStream(ctx, js); err != nil {
		return nil, err
	}

	return &Stores{
		Users:         &UserStore{users: users, emails: emails},
		Conversations: &ConversationStore{conversations: convs, direct: direct},
		Messages:      &MessageStore{js: js},
	}, nil
}

func ensureBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		Storage: jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return kv, nil
}

func ensureMessagesStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.Stream(ctx, MessagesStream)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        MessagesStream,
		Subjects:    []string{fmt.Sprintf("%s.>", messageSubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Append-only conversation message logs",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// messageSubject returns the subject for a conversation's messages.
func messageSubject(conversationID string) string {
	return fmt.Sprintf("%s.%s", messageSubjectPrefix, conversationID)
}

// storeErr classifies a JetStream error into the platform taxonomy.
func storeErr(op string, err error) error {
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrNoKeysFound) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %v: %w", op, err, model.ErrUnavailable)
}
