package models

import "time"

// Conversation is a two-party channel scoped to a job application or a
// competition registration. Exactly one of ApplicationID/CompetitionID is set.
type Conversation struct {
	ID            int       `db:"id" json:"id"`
	ApplicationID *int      `db:"application_id" json:"application_id,omitempty"`
	CompetitionID *int      `db:"competition_id" json:"competition_id,omitempty"`
	LastMessageID *int      `db:"last_message_id" json:"last_message_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Participant is the per-user state attached to a conversation. UnreadCount
// is the single source of truth for the user's badge count.
type Participant struct {
	ConversationID int `db:"conversation_id" json:"conversation_id"`
	UserID         int `db:"user_id" json:"user_id"`
	UnreadCount    int `db:"unread_count" json:"unread_count"`
}

// ParticipantView is a participant enriched with display fields.
type ParticipantView struct {
	UserID      int    `json:"user_id"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	UnreadCount int    `json:"unread_count"`
}

// ConversationSummary is the API view of a conversation for one caller.
type ConversationSummary struct {
	Conversation
	Participants []ParticipantView `json:"participants"`
	LastMessage  *MessageView      `json:"last_message,omitempty"`
	UnreadCount  int               `json:"unread_count"`
}
