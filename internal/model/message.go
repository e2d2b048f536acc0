package model

import (
	"time"
)

// Message represents a single message in a conversation. Messages are
// immutable once created; only the ReadBy set may grow.
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`

	// Content
	Content string `json:"content"`

	// Read receipts. The sender is included at creation.
	ReadBy []string `json:"read_by"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`

	// Store sequence within the conversation (populated on persist/read).
	Sequence uint64 `json:"sequence,omitempty"`

	// Sender display fields, populated before delivery.
	SenderName   string `json:"sender_name,omitempty"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages     []Message `json:"messages"`
	HasMore      bool      `json:"has_more"`
	LastSequence uint64    `json:"last_sequence"`
}
