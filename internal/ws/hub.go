package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// GlobalRoom is the well-known room used when a message event names no chat.
const GlobalRoom = ""

// StatusEvent announces joins and leaves to a room.
type StatusEvent struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// Hub routes realtime events to room subscribers. Rooms are keyed by chat id
// and hold live websocket connections only; persistence never flows through
// here. Delivery is best-effort: a failed write closes the connection and the
// event is not retried.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*websocket.Conn]bool
	clients map[*websocket.Conn]ConnInfo
	// writers serializes frame writes per connection: a connection's ack
	// writes and broadcasts from other goroutines would otherwise interleave,
	// and gorilla allows only one concurrent writer.
	writers map[*websocket.Conn]*sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*websocket.Conn]bool),
		clients: make(map[*websocket.Conn]ConnInfo),
		writers: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Register tracks a new connection. The connection belongs to no room until
// it joins one.
func (h *Hub) Register(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = info
	h.writers[conn] = &sync.Mutex{}
}

// Unregister drops a connection from the hub and from every room it joined.
// No status events are sent for an unregistering connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	delete(h.writers, conn)
	for room, conns := range h.rooms {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Join subscribes the connection to a room and announces the arrival to the
// subscribers already there. Membership authorization is the caller's
// responsibility.
func (h *Hub) Join(room string, conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	h.rooms[room][conn] = true
	h.mu.Unlock()

	h.broadcastStatus(room, "Someone joined the room", conn)
}

// Leave unsubscribes the connection and announces the departure to the
// remaining subscribers.
func (h *Hub) Leave(room string, conn *websocket.Conn) {
	h.mu.Lock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	h.broadcastStatus(room, "Someone left the room", nil)
}

// Broadcast delivers payload to every subscriber of the room except the
// excluded connection. The GlobalRoom reaches every connected client.
func (h *Hub) Broadcast(room string, payload []byte, exclude *websocket.Conn) {
	for _, conn := range h.subscribers(room) {
		if conn == exclude {
			continue
		}
		h.write(conn, payload)
	}
}

// NotifyMessage broadcasts a lightweight new-message event to the chat's
// room, skipping every connection owned by the sender. It is called after
// the fan-out transaction commits; the ledger stays authoritative.
func (h *Hub) NotifyMessage(chatID string, event models.MessageEvent, senderID string) {
	payload, _ := json.Marshal(event)
	for _, conn := range h.subscribers(chatID) {
		h.mu.RLock()
		info := h.clients[conn]
		h.mu.RUnlock()
		if info.UserID == senderID {
			continue
		}
		h.write(conn, payload)
	}
}

func (h *Hub) broadcastStatus(room, msg string, exclude *websocket.Conn) {
	payload, _ := json.Marshal(StatusEvent{Type: "status", Msg: msg})
	h.Broadcast(room, payload, exclude)
}

// subscribers snapshots the room's connections (or all clients for the
// global room) so writes happen outside the lock.
func (h *Hub) subscribers(room string) []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room == GlobalRoom {
		conns := make([]*websocket.Conn, 0, len(h.clients))
		for conn := range h.clients {
			conns = append(conns, conn)
		}
		return conns
	}
	conns := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) write(conn *websocket.Conn, payload []byte) {
	h.mu.RLock()
	wmu, ok := h.writers[conn]
	h.mu.RUnlock()
	if !ok {
		// Already unregistered; the write would race with Close.
		return
	}

	wmu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, payload)
	wmu.Unlock()

	if err != nil {
		log.Printf("websocket write error: %v", err)
		conn.Close()
		h.publishWSError(conn, err)
		h.Unregister(conn)
	}
}

func (h *Hub) publishWSError(conn *websocket.Conn, err error) {
	h.mu.RLock()
	info, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.channel", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}

// RoomSize reports the current subscriber count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room == GlobalRoom {
		return len(h.clients)
	}
	return len(h.rooms[room])
}
