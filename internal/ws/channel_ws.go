package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/observability"
)

// TokenVerifier validates a bearer token and returns the subject user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ChannelHandler owns the realtime duplex endpoint. A connection
// authenticates once at upgrade time, then drives the hub with join, leave
// and message events.
type ChannelHandler struct {
	hub    *Hub
	tokens TokenVerifier
}

// NewChannelHandler constructs a ChannelHandler.
func NewChannelHandler(hub *Hub, tokens TokenVerifier) *ChannelHandler {
	return &ChannelHandler{hub: hub, tokens: tokens}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundEvent is one client frame. Extra keys are kept so message payloads
// pass through untouched.
type inboundEvent struct {
	Type   string `json:"type"`
	Room   string `json:"room"`
	ChatID string `json:"chat_id"`
}

type ackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Handle upgrades the connection and runs its event loop until disconnect.
func (h *ChannelHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.Register(conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycle(ctx, info, "ws_connect", "")

	// The gin context is recycled once Handle returns; the loop only gets
	// the plain context and the captured ConnInfo.
	go h.readLoop(ctx, conn, info)
}

func (h *ChannelHandler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.Unregister(conn)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycle(ctx, info, "ws_disconnect", closeReason)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycle(ctx, info, "ws_error", closeReason)
			}
			return
		}

		var event inboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			continue
		}

		switch event.Type {
		case "join":
			if event.Room == "" {
				continue
			}
			h.hub.Join(event.Room, conn)
			observability.IncWSEvent("join")
		case "leave":
			if event.Room == "" {
				continue
			}
			h.hub.Leave(event.Room, conn)
			observability.IncWSEvent("leave")
		case "message":
			// Re-broadcast the client payload as-is to the chat's room, or
			// to everyone when no chat is named, then acknowledge the sender.
			var payload map[string]interface{}
			if err := json.Unmarshal(raw, &payload); err != nil {
				continue
			}
			payload["type"] = "message"
			out, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			h.hub.Broadcast(event.ChatID, out, conn)
			observability.IncWSEvent("message")

			ack, _ := json.Marshal(ackResponse{Status: "ok", Message: "Message received"})
			h.hub.write(conn, ack)
		}
	}
}

func (h *ChannelHandler) publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	_ = observability.PublishEvent(ctx, "ws_events.channel", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

func (h *ChannelHandler) validateToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return h.tokens.Verify(parts[1])
	}
	return "", fmt.Errorf("invalid token")
}
