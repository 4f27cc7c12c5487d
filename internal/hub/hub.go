package hub

import (
	"log"
	"sync"
)

// Hub is the connection registry: the in-memory map from user identity to
// the active client handle. It is the only shared mutable view of presence;
// every access goes through the mutex.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// New creates an empty registry.
func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register maps the client's bound user id to the client. Registration is
// last-write-wins: if another client already holds the id, it is displaced
// and returned so the caller can close its channel.
func (h *Hub) Register(c *Client) (displaced *Client) {
	id := c.UserID()

	h.mu.Lock()
	prev, ok := h.clients[id]
	h.clients[id] = c
	h.mu.Unlock()

	if ok && prev != c {
		log.Printf("Client registered: %s (displaced previous connection)", id)
		return prev
	}
	log.Printf("Client registered: %s", id)
	return nil
}

// Lookup returns the active client for a user id.
func (h *Hub) Lookup(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

// Unregister removes the entry for a user id. No-op if absent.
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	if _, ok := h.clients[userID]; ok {
		delete(h.clients, userID)
		log.Printf("Client unregistered: %s", userID)
	}
	h.mu.Unlock()
}

// UnregisterClient removes the entry only if it still maps to this exact
// client. A displaced connection disconnecting late must not evict its
// replacement. Reports whether an entry was removed.
func (h *Hub) UnregisterClient(c *Client) bool {
	id := c.UserID()
	if id == "" {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[id]; ok && cur == c {
		delete(h.clients, id)
		log.Printf("Client unregistered: %s", id)
		return true
	}
	return false
}

// Snapshot returns the current set of clients for iteration outside the
// lock, used by the liveness prober.
func (h *Hub) Snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every registered client and empties the registry. Used
// during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
	h.mu.Unlock()
}
