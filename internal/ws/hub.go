package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
)

// Client is one registered websocket connection. Writes are serialized per
// connection since broadcasts arrive from many request goroutines.
type Client struct {
	conn    *websocket.Conn
	info    ConnInfo
	writeMu sync.Mutex
}

func (c *Client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the active websocket rooms: one personal room per connected
// user and one room per joined conversation. Single-process only.
type Hub struct {
	mu                sync.RWMutex
	conversationRooms map[int]map[*Client]bool
	personalRooms     map[int]map[*Client]bool
	memberships       map[*Client]map[int]bool

	publisher rabbitmq.Publisher
	logger    *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(publisher rabbitmq.Publisher, logger *zap.Logger) *Hub {
	return &Hub{
		conversationRooms: make(map[int]map[*Client]bool),
		personalRooms:     make(map[int]map[*Client]bool),
		memberships:       make(map[*Client]map[int]bool),
		publisher:         publisher,
		logger:            logger,
	}
}

// AddConnection registers a connection and joins the user's personal room.
func (h *Hub) AddConnection(conn *websocket.Conn, info ConnInfo) *Client {
	client := &Client{conn: conn, info: info}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.personalRooms[info.UserID]; !ok {
		h.personalRooms[info.UserID] = make(map[*Client]bool)
	}
	h.personalRooms[info.UserID][client] = true
	h.memberships[client] = make(map[int]bool)
	return client
}

// RemoveConnection drops the connection from its personal room and from
// every conversation room it joined.
func (h *Hub) RemoveConnection(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.personalRooms[client.info.UserID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.personalRooms, client.info.UserID)
		}
	}
	for conversationID := range h.memberships[client] {
		if conns, ok := h.conversationRooms[conversationID]; ok {
			delete(conns, client)
			if len(conns) == 0 {
				delete(h.conversationRooms, conversationID)
			}
		}
	}
	delete(h.memberships, client)
}

// JoinConversation adds the connection to a conversation room. Membership
// authorization happens in the gateway before this is called.
func (h *Hub) JoinConversation(client *Client, conversationID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conversationRooms[conversationID]; !ok {
		h.conversationRooms[conversationID] = make(map[*Client]bool)
	}
	h.conversationRooms[conversationID][client] = true
	if rooms, ok := h.memberships[client]; ok {
		rooms[conversationID] = true
	}
}

// LeaveConversation removes the connection from a conversation room.
func (h *Hub) LeaveConversation(client *Client, conversationID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.conversationRooms[conversationID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.conversationRooms, conversationID)
		}
	}
	if rooms, ok := h.memberships[client]; ok {
		delete(rooms, conversationID)
	}
}

// InConversation reports whether the connection already joined the room.
func (h *Hub) InConversation(client *Client, conversationID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.memberships[client][conversationID]
}

// BroadcastNewMessage fans a stored message out to the conversation room.
// Best-effort: the message is already durable when this runs.
func (h *Hub) BroadcastNewMessage(conversationID int, msg models.MessageView) {
	event := models.NewMessageEvent{Type: models.EventNewMessage, Message: msg}
	payload, _ := json.Marshal(event)
	h.broadcastToConversation(conversationID, payload, nil)
}

// BroadcastTyping relays typing state to the room, excluding the typist's
// own connection. Last writer wins; nothing is persisted.
func (h *Hub) BroadcastTyping(conversationID int, sender *Client, userID int, isTyping bool) {
	event := models.TypingEvent{
		Type:           models.EventUserTyping,
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	}
	payload, _ := json.Marshal(event)
	h.broadcastToConversation(conversationID, payload, sender)
}

// NotifyMessagesRead tells every connection of one user that a conversation
// was marked read, so badge counts refresh across tabs and devices.
func (h *Hub) NotifyMessagesRead(userID int, conversationID int) {
	event := models.MessagesReadEvent{Type: models.EventMessagesRead, ConversationID: conversationID}
	payload, _ := json.Marshal(event)

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.personalRooms[userID]))
	for client := range h.personalRooms[userID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(payload); err != nil {
			h.dropClient(client, err)
		}
	}
}

func (h *Hub) broadcastToConversation(conversationID int, payload []byte, exclude *Client) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.conversationRooms[conversationID]))
	for client := range h.conversationRooms[conversationID] {
		if client != exclude {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(payload); err != nil {
			h.dropClient(client, err)
		}
	}
}

// dropClient closes and unregisters a connection after a failed write.
func (h *Hub) dropClient(client *Client, err error) {
	h.logger.Warn("websocket write failed",
		zap.String("conn_id", client.info.ConnID),
		zap.Int("user_id", client.info.UserID),
		zap.Error(err))
	client.conn.Close()
	h.RemoveConnection(client)
	observability.IncWSEvent("ws_error")

	if h.publisher == nil {
		return
	}
	_ = h.publisher.Publish(context.Background(), "ws_events.messaging", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		RequestID: client.info.RequestID,
		TraceID:   client.info.TraceID,
		Payload: map[string]interface{}{
			"conn_id":     client.info.ConnID,
			"user_id":     client.info.UserID,
			"duration_ms": time.Since(client.info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
	})
}
