package natskv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

// MessageStore is a JetStream stream-backed store.MessageStore. Each
// conversation publishes to its own subject; the stream sequence provides the
// per-conversation ordering and tie-breaking the data model requires.
type MessageStore struct {
	js jetstream.JetStream
}

func (s *MessageStore) Append(ctx context.Context, msg *model.Message) (uint64, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := s.js.Publish(ctx, messageSubject(msg.ConversationID), data)
	if err != nil {
		return 0, storeErr("append message", err)
	}
	return ack.Sequence, nil
}

func (s *MessageStore) List(ctx context.Context, conversationID string, afterSequence uint64, limit int) ([]model.Message, error) {
	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: messageSubject(conversationID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := s.js.CreateConsumer(ctx, MessagesStream, consumerConfig)
	if err != nil {
		return nil, storeErr("create consumer", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, storeErr("fetch messages", err)
	}

	var messages []model.Message
	for raw := range batch.Messages() {
		var message model.Message
		if err := json.Unmarshal(raw.Data(), &message); err != nil {
			continue
		}
		if meta, err := raw.Metadata(); err == nil {
			message.Sequence = meta.Sequence.Stream
		}
		messages = append(messages, message)
	}
	if batch.Error() != nil && batch.Error() != context.DeadlineExceeded {
		return nil, storeErr("fetch messages", batch.Error())
	}
	return messages, nil
}

func (s *MessageStore) Latest(ctx context.Context, conversationID string) (*model.Message, error) {
	stream, err := s.js.Stream(ctx, MessagesStream)
	if err != nil {
		return nil, storeErr("open stream", err)
	}

	raw, err := stream.GetLastMsgForSubject(ctx, messageSubject(conversationID))
	if err != nil {
		return nil, fmt.Errorf("conversation %s has no messages: %w", conversationID, model.ErrNotFound)
	}

	var message model.Message
	if err := json.Unmarshal(raw.Data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	message.Sequence = raw.Sequence
	return &message, nil
}
