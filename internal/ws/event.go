// Package ws implements the real-time messaging and presence subsystem: the
// authenticated WebSocket endpoint, per-conversation rooms, presence
// tracking, and fan-out delivery.
package ws

import (
	"encoding/json"
	"fmt"

	"github.com/capitalize-ai/chat-platform/internal/model"
)

// Envelope frames every event on the real-time channel.
type Envelope struct {
	Event   model.EventType `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// roomRequest is the payload for join-room and leave-room.
type roomRequest struct {
	ConversationID string `json:"conversation_id"`
}

// encodeEvent marshals an event envelope for the wire.
func encodeEvent(event model.EventType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Payload: data})
}
