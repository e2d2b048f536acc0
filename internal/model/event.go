package model

// EventType identifies an event on the real-time channel.
type EventType string

// Client-to-server events.
const (
	EventJoinRoom    EventType = "join-room"
	EventLeaveRoom   EventType = "leave-room"
	EventSendMessage EventType = "send-message"
	EventTyping      EventType = "typing"
)

// Server-to-client events.
const (
	EventMessageDelivered EventType = "message-delivered"
	EventMessageSentAck   EventType = "message-sent-ack"
	EventIdentityOnline   EventType = "identity-online"
	EventIdentityOffline  EventType = "identity-offline"
	EventOperationError   EventType = "operation-error"
)

// MessageEvent is the payload for message-delivered and message-sent-ack.
type MessageEvent struct {
	Message        Message `json:"message"`
	ConversationID string  `json:"conversation_id"`
}

// TypingEvent is the payload for typing, in both directions. SenderID is
// ignored on input and stamped by the server on output.
type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id,omitempty"`
	IsTyping       bool   `json:"is_typing"`
}

// PresenceEvent is the payload for identity-online and identity-offline.
type PresenceEvent struct {
	UserID string `json:"user_id"`
}

// ErrorEvent is the payload for operation-error. It is delivered only to the
// connection whose operation failed.
type ErrorEvent struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}
