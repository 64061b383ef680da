package realtime

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/joshua-takyi/eventhub/internal/metrics"
)

const (
	// PingInterval and PongWait drive the heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	// sendBuffer is the per-client outbound queue; a full queue drops messages.
	sendBuffer = 256

	// GlobalChannel reaches every connected client.
	GlobalChannel = "global"
	roomPrefix    = "room:"
)

// RoomChannel names the channel scoped to one event.
func RoomChannel(eventID string) string {
	return roomPrefix + eventID
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub is the channel registry: every client is in the global channel while connected
// and in any number of event rooms.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	closed  bool
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds c to the global channel. A closed hub rejects the client by closing
// its send queue.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(c.send)
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	h.logger.Debug("Client connected", "client_id", c.ID)
}

// Unregister removes c from every channel and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
	h.mu.Unlock()

	metrics.WSConnections.Dec()
	h.logger.Debug("Client disconnected", "client_id", c.ID)
}

func (h *Hub) JoinRoom(c *Client, eventID string) {
	if eventID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[eventID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[eventID] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) LeaveRoom(c *Client, eventID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[eventID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, eventID)
	}
}

// Broadcast queues msg for every connected client.
func (h *Hub) Broadcast(msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		h.enqueue(c, msg)
	}
}

// BroadcastToRoom queues msg for the clients subscribed to eventID.
func (h *Hub) BroadcastToRoom(eventID string, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[eventID] {
		h.enqueue(c, msg)
	}
}

// Deliver routes msg by channel name (GlobalChannel or RoomChannel). Unknown names are ignored.
func (h *Hub) Deliver(channel string, msg WSMessage) {
	switch {
	case channel == GlobalChannel:
		h.Broadcast(msg)
	case strings.HasPrefix(channel, roomPrefix):
		h.BroadcastToRoom(strings.TrimPrefix(channel, roomPrefix), msg)
	default:
		h.logger.Warn("Unknown broadcast channel", "channel", channel)
	}
}

// enqueue must be called with h.mu held; send queues are only closed under the write lock.
func (h *Hub) enqueue(c *Client, msg WSMessage) {
	select {
	case c.send <- msg:
	default:
		metrics.BroadcastsDropped.Inc()
		h.logger.Debug("Client send queue full, message dropped", "client_id", c.ID, "event", msg.Event)
	}
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize is the number of clients subscribed to eventID.
func (h *Hub) RoomSize(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// Close drops every connection. Later registrations are rejected.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.send)
		metrics.WSConnections.Dec()
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.logger.Info("Realtime hub closed")
}
