package model

import (
	"time"
)

// ConversationKind distinguishes two-party and group conversations.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Conversation represents a persistent two-party or group conversation.
//
// MemberIDs is unique per conversation. AdminID and Name are set for group
// conversations only. LatestMessageID, when non-empty, references a message
// belonging to this conversation.
type Conversation struct {
	ID              string           `json:"id"`
	Kind            ConversationKind `json:"kind"`
	Name            string           `json:"name,omitempty"`
	MemberIDs       []string         `json:"member_ids"`
	AdminID         string           `json:"admin_id,omitempty"`
	LatestMessageID string           `json:"latest_message_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`

	// Populated on read for API responses.
	Members       []User   `json:"members,omitempty"`
	LatestMessage *Message `json:"latest_message,omitempty"`
}

// IsMember reports whether userID belongs to the conversation's member set.
func (c *Conversation) IsMember(userID string) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CreateDirectConversationRequest requests a direct conversation with another
// user. The same unordered pair always resolves to the same conversation.
type CreateDirectConversationRequest struct {
	UserID string `json:"user_id"`
}

// CreateGroupConversationRequest requests a new group conversation. The
// caller becomes the group admin and is added to the member set.
type CreateGroupConversationRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
