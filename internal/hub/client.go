package hub

import "sync"

// Client is the addressable handle for one live connection. The transport
// layer owns the websocket itself; everything else reaches the connection
// only through the bounded send channel.
type Client struct {
	mu     sync.Mutex
	userID string
	handle string
	alive  bool
	closed bool
	send   chan []byte
}

// NewClient creates an unbound client with a bounded outbound buffer.
// The client has no identity until Bind is called during registration.
func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		send: make(chan []byte, buffer),
	}
}

// Bind attaches a user identity to the client. Called once, at
// registration time; the identity is cached here so a transport-level
// disconnect can unregister without knowing the lookup key.
func (c *Client) Bind(userID, handle string) {
	c.mu.Lock()
	c.userID = userID
	c.handle = handle
	c.alive = true
	c.mu.Unlock()
}

// UserID returns the bound user identity, or "" before registration.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Handle returns the display handle supplied at registration.
func (c *Client) Handle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Registered reports whether the client has completed registration.
func (c *Client) Registered() bool {
	return c.UserID() != ""
}

// Push queues data for delivery. It never blocks: a full buffer or a
// closed client drops the payload and reports false.
func (c *Client) Push(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Outbound exposes the send channel to the write pump.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Close shuts the send channel. Idempotent; later Push calls report false.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// MarkAlive records a liveness acknowledgment.
func (c *Client) MarkAlive() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

// TakeAlive returns the current liveness flag and resets it, starting the
// next probe cycle.
func (c *Client) TakeAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	alive := c.alive
	c.alive = false
	return alive
}
