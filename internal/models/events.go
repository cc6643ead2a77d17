package models

// Events emitted over websocket connections.

// NewMessageEvent is broadcast to a conversation room after a send.
type NewMessageEvent struct {
	Type    string      `json:"type"`
	Message MessageView `json:"message"`
}

// TypingEvent relays typing state to a conversation room, excluding the
// typist's own connection. Nothing is persisted.
type TypingEvent struct {
	Type           string `json:"type"`
	ConversationID int    `json:"conversation_id"`
	UserID         int    `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// MessagesReadEvent goes to a user's personal room so other tabs and devices
// of the same user refresh their badge counts.
type MessagesReadEvent struct {
	Type           string `json:"type"`
	ConversationID int    `json:"conversation_id"`
}

// ErrorEvent answers a rejected client request on the socket.
type ErrorEvent struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Client-to-server event, decoded from the socket read loop.
type ClientEvent struct {
	Type           string `json:"type"`
	ConversationID int    `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

// Event type names shared by both directions.
const (
	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventMessagesRead      = "messages_read"
	EventError             = "error"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventTyping            = "typing"
)
