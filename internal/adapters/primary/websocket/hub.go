package websocket

import (
	"log/slog"
	"sync"

	"github.com/lorrc/severino-relay/internal/core/domain"
	apperrors "github.com/lorrc/severino-relay/internal/core/errors"
	"github.com/lorrc/severino-relay/internal/core/ports"
)

// Hub is the connection registry. It owns room membership for every live
// connection and fans frames out to rooms.
//
// All membership reads and writes happen under mu. Frames are pushed while
// holding the read lock and send channels are closed only under the write
// lock, so a push never races with a close.
type Hub struct {
	policy domain.RoomPolicy

	// rooms maps room names to their current members
	rooms map[string]map[*Client]struct{}

	// clients maps each registered connection to the rooms it joined
	clients map[*Client][]string

	closed bool

	mu sync.RWMutex

	logger *slog.Logger
}

var _ ports.EventDeliverer = (*Hub)(nil)

// NewHub creates an empty registry using policy to derive room memberships.
func NewHub(policy domain.RoomPolicy, logger *slog.Logger) *Hub {
	return &Hub{
		policy:  policy,
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client][]string),
		logger:  logger.With("component", "connection_registry"),
	}
}

// Greeting builds the first frame a connection receives from the rooms it
// joined.
type Greeting func(rooms []string) []byte

// Register joins client to the rooms derived from its identity. When greet is
// not nil its frame is queued before the membership becomes visible to
// Deliver, so it always precedes room traffic. Registering the same client
// twice is a no-op.
func (h *Hub) Register(client *Client, greet Greeting) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return apperrors.ErrRegistryClosed
	}
	if _, exists := h.clients[client]; exists {
		return nil
	}

	rooms := h.policy.RoomsFor(client.Identity)
	if greet != nil {
		select {
		case client.send <- greet(rooms):
		default:
		}
	}
	for _, room := range rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][client] = struct{}{}
	}
	h.clients[client] = rooms

	h.logger.Info("client registered",
		"connection_id", client.ID,
		"user_id", client.Identity.UserID,
		"role", client.Identity.Role,
		"rooms", rooms,
		"total_connections", len(h.clients),
	)
	return nil
}

// Unregister removes client from every room and closes its send channel.
// It is safe to call repeatedly and on clients that were never registered.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.clients[client]
	if !ok {
		return
	}
	h.removeLocked(client, rooms)

	h.logger.Info("client unregistered",
		"connection_id", client.ID,
		"user_id", client.Identity.UserID,
		"total_connections", len(h.clients),
	)
}

func (h *Hub) removeLocked(client *Client, rooms []string) {
	for _, room := range rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.clients, client)
	client.closeSend()
}

// Deliver queues frame for every current member of room. An empty room is a
// no-op. A member whose buffer is full misses the frame and is evicted as a
// slow consumer; the others are unaffected.
func (h *Hub) Deliver(room string, frame []byte) ports.DeliveryReport {
	var report ports.DeliveryReport
	var slow []*Client

	h.mu.RLock()
	for client := range h.rooms[room] {
		select {
		case client.send <- frame:
			report.Recipients++
		default:
			report.Dropped++
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("client send buffer full, unregistering",
			"connection_id", client.ID,
			"user_id", client.Identity.UserID,
			"room", room,
		)
		h.Unregister(client)
	}

	return report
}

// SendToClient queues frame for a single registered client. It reports false
// if the client is not registered or its buffer is full.
func (h *Hub) SendToClient(client *Client, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client]; !ok {
		return false
	}
	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// Close unregisters every client and rejects later registrations. Each
// client's write pump sends a close frame once its channel is closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	count := len(h.clients)
	for client, rooms := range h.clients {
		h.removeLocked(client, rooms)
	}

	h.logger.Info("connection registry closed", "disconnected", count)
}

// ClientCount returns the total number of registered connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms with at least one member
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// MembersOf returns the number of connections currently in room
func (h *Hub) MembersOf(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomsOf returns a copy of the rooms client joined, or nil if it is not
// registered.
func (h *Hub) RoomsOf(client *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms, ok := h.clients[client]
	if !ok {
		return nil
	}
	return append([]string(nil), rooms...)
}
