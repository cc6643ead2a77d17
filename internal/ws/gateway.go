package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/identity"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
)

const accessTokenCookie = "access_token"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GatewayHandler authenticates websocket connections and runs their read
// loops. REST and websocket share one Verifier, so both transports enforce
// identical credential rules.
type GatewayHandler struct {
	hub       *Hub
	verifier  *identity.Verifier
	convRepo  repositories.ConversationRepository
	publisher rabbitmq.Publisher
	logger    *zap.Logger
}

// NewGatewayHandler constructs a GatewayHandler.
func NewGatewayHandler(hub *Hub, verifier *identity.Verifier, convRepo repositories.ConversationRepository, publisher rabbitmq.Publisher, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{hub: hub, verifier: verifier, convRepo: convRepo, publisher: publisher, logger: logger}
}

// Handle performs the handshake, joins the personal room and starts reading.
// A failed handshake refuses the connection before the upgrade.
func (h *GatewayHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ident, err := h.verifier.Verify(ctx, tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      ident.UserID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := h.hub.AddConnection(conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycle(ctx, "ws_connect", info, "")

	go h.readLoop(client)
}

func (h *GatewayHandler) readLoop(client *Client) {
	conn := client.conn
	info := client.info
	var closeReason string

	defer func() {
		h.hub.RemoveConnection(client)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycle(context.Background(), "ws_disconnect", info, closeReason)
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycle(context.Background(), "ws_error", info, closeReason)
			}
			return
		}

		var event models.ClientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			h.sendError(client, "invalid_argument", "malformed event")
			continue
		}
		h.handleEvent(client, event)
	}
}

func (h *GatewayHandler) handleEvent(client *Client, event models.ClientEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch event.Type {
	case models.EventJoinConversation:
		member, err := h.convRepo.IsParticipant(ctx, event.ConversationID, client.info.UserID)
		if err != nil {
			h.logger.Error("room join membership check failed",
				zap.Int("conversation_id", event.ConversationID), zap.Error(err))
			h.sendError(client, "unavailable", "could not verify membership")
			return
		}
		if !member {
			// Knowing a conversation id is not enough to receive its events.
			h.sendError(client, "unauthorized", "not a conversation participant")
			return
		}
		h.hub.JoinConversation(client, event.ConversationID)
		observability.IncWSEvent("room_join")
	case models.EventLeaveConversation:
		h.hub.LeaveConversation(client, event.ConversationID)
	case models.EventTyping:
		// Joining the room already proved membership; unjoined typists are
		// dropped silently.
		if !h.hub.InConversation(client, event.ConversationID) {
			return
		}
		h.hub.BroadcastTyping(event.ConversationID, client, client.info.UserID, event.IsTyping)
	default:
		h.sendError(client, "invalid_argument", "unknown event type")
	}
}

func (h *GatewayHandler) sendError(client *Client, code, message string) {
	payload, _ := json.Marshal(models.ErrorEvent{Type: models.EventError, Code: code, Error: message})
	if err := client.write(payload); err != nil {
		h.hub.dropClient(client, err)
	}
}

func (h *GatewayHandler) publishLifecycle(ctx context.Context, name string, info ConnInfo, reason string) {
	if h.publisher == nil {
		return
	}
	_ = h.publisher.Publish(ctx, "ws_events.messaging", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Payload: map[string]interface{}{
			"conn_id":     info.ConnID,
			"user_id":     info.UserID,
			"device_id":   info.DeviceID,
			"ip":          info.IP,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
	})
}

// tokenFromRequest pulls the bearer credential from the Authorization
// header, the token query parameter, or the access-token cookie.
func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}

	if token := c.Query("token"); token != "" {
		return token
	}

	if token, err := c.Cookie(accessTokenCookie); err == nil {
		return token
	}
	return ""
}
