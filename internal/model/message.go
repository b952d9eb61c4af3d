package model

import "sort"

// Role is the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn within a Conversation.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	CreatedAt      int64  `json:"createdAt"`
}

// Key identifies a message within its conversation for uniqueness checks.
type Key struct {
	ConversationID string
	ID             string
}

func (m Message) Key() Key {
	return Key{ConversationID: m.ConversationID, ID: m.ID}
}

// SortByCreatedAt sorts msgs ascending by CreatedAt, the display order
// required throughout the spec.
func SortByCreatedAt(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt < msgs[j].CreatedAt
	})
}
