package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatter/internal/metrics"
)

const presenceWriteTimeout = 5 * time.Second

// PresenceStore persists the durable online flag alongside the
// in-memory registry. Write failures are logged and non-fatal.
type PresenceStore interface {
	SetPresence(ctx context.Context, id uuid.UUID, online bool, lastSeen time.Time) error
}

// Hub is the presence registry and connection lifecycle manager: the
// process-wide map from user identity to live connection. All
// registrations and removals go through the single Run goroutine, so a
// reader never observes a connection mid-registration; delivery-path
// reads take the lock and see either the old or the new state, never a
// partial one.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	presence PresenceStore
}

func NewHub(presence PresenceStore) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		presence:   presence,
	}
}

// Run starts the Hub's lifecycle loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		}
	}
}

// Register hands a freshly authenticated connection to the lifecycle loop.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister unwinds a connection's state after its transport closed.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) handleRegister(client *Client) {
	userID := client.user.ID

	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = client
	h.mu.Unlock()

	if prev != nil {
		// One connection per user: last-connected-wins. The replaced
		// connection is shut down so a stale handle cannot keep
		// receiving messages nobody reads.
		prev.shutdown()
		log.Printf("ws hub: user %s reconnected, previous connection dropped", userID)
	} else {
		metrics.ConnectionsActive.Inc()
	}
	log.Printf("ws hub: user %s connected (%d total)", userID, h.clientCount())

	h.setPresence(userID, true)
	h.broadcastPresence(userID, true)
	h.sendOnlineUsers(client)
}

func (h *Hub) handleUnregister(client *Client) {
	userID := client.user.ID

	h.mu.Lock()
	current, ok := h.clients[userID]
	if !ok || current != client {
		// Already replaced by a newer connection; nothing to unwind.
		h.mu.Unlock()
		return
	}
	delete(h.clients, userID)
	h.mu.Unlock()

	client.shutdown()
	metrics.ConnectionsActive.Dec()
	log.Printf("ws hub: user %s disconnected (%d total)", userID, h.clientCount())

	h.setPresence(userID, false)
	h.broadcastPresence(userID, false)
}

// SendToUser unicasts an event to a user's live connection. Returns
// false when the user is offline or their buffer is full; delivery is
// best-effort on top of whatever durable write preceded it.
func (h *Hub) SendToUser(userID uuid.UUID, event *Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return false
	}

	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !client.enqueue(data) {
		log.Printf("ws hub: dropping %s for slow client %s", event.Type, userID)
		return false
	}
	return true
}

// BroadcastAll fans an event out to every connection except the
// excluded one. A slow or closed individual connection only loses its
// own copy; delivery to the others is never blocked.
func (h *Hub) BroadcastAll(event *Event, excludeID *uuid.UUID) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, client := range h.clients {
		if excludeID != nil && userID == *excludeID {
			continue
		}
		if !client.enqueue(data) {
			log.Printf("ws hub: dropping %s for slow client %s", event.Type, userID)
		}
	}
}

// BroadcastToRoom scopes a broadcast to members of a derived
// conversation room. Rooms are delivery-scoping sugar over direct
// unicast and carry no state of their own.
func (h *Hub) BroadcastToRoom(roomKey string, event *Event, excludeID *uuid.UUID) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, client := range h.clients {
		if excludeID != nil && userID == *excludeID {
			continue
		}
		if !client.InRoom(roomKey) {
			continue
		}
		if !client.enqueue(data) {
			log.Printf("ws hub: dropping %s for slow client %s", event.Type, userID)
		}
	}
}

// RelayTyping forwards a typing signal to the receiver if they are
// online. The signal is never persisted or queued: an offline receiver
// simply misses it, and nothing but the most recent state is ever in
// flight per pair.
func (h *Hub) RelayTyping(from *Client, receiverID uuid.UUID, isTyping bool) {
	evt, err := NewEvent(EventTypeUserTyping, UserTypingPayload{
		UserID:   from.user.ID,
		Username: from.user.Username,
		IsTyping: isTyping,
	})
	if err != nil {
		return
	}
	h.SendToUser(receiverID, evt)
}

// OnlineUsers returns a snapshot of currently reachable identities.
func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// IsOnline reports whether a user currently has a live connection.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) setPresence(userID uuid.UUID, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceWriteTimeout)
	defer cancel()
	if err := h.presence.SetPresence(ctx, userID, online, time.Now()); err != nil {
		log.Printf("ws hub: presence write for %s failed: %v", userID, err)
	}
}

func (h *Hub) broadcastPresence(userID uuid.UUID, online bool) {
	evt, err := NewEvent(EventTypePresence, PresencePayload{
		UserID:   userID,
		IsOnline: online,
	})
	if err != nil {
		return
	}
	h.BroadcastAll(evt, &userID)
}

// sendOnlineUsers unicasts the current online set to a newly connected
// client only.
func (h *Hub) sendOnlineUsers(client *Client) {
	evt, err := NewEvent(EventTypePresenceState, PresenceStatePayload{
		UserIDs: h.OnlineUsers(),
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	client.enqueue(data)
}
