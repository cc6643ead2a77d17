package models

import "time"

// Message is a single persisted chat entry. ReadAt transitions null to a
// timestamp exactly once, when the recipient marks the conversation read.
type Message struct {
	ID             int        `db:"id" json:"id"`
	ConversationID int        `db:"conversation_id" json:"conversation_id"`
	SenderID       int        `db:"sender_id" json:"sender_id"`
	Content        string     `db:"content" json:"content"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// MessageView is a message with the sender resolved for display.
type MessageView struct {
	Message
	SenderName string `json:"sender_name,omitempty"`
}
