package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parlor-social/realtime-hub/internal/config"
	"github.com/parlor-social/realtime-hub/internal/hub"
	"github.com/parlor-social/realtime-hub/internal/metrics"
	"github.com/parlor-social/realtime-hub/internal/service"
)

// WebSocketHandler accepts connections and runs the read/write pumps. A
// connection carries no identity until its first register event; the
// service rejects everything else before then.
type WebSocketHandler struct {
	config   *config.Config
	service  *service.Service
	metrics  metrics.Collector
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cfg *config.Config, svc *service.Service, m metrics.Collector) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			// Allow all origins if configured
			if len(cfg.HTTP.AllowedOrigins) == 1 && cfg.HTTP.AllowedOrigins[0] == "*" {
				return true
			}

			// Check against allowed origins
			for _, allowed := range cfg.HTTP.AllowedOrigins {
				if allowed == origin {
					return true
				}
			}

			return false
		},
	}

	return &WebSocketHandler{
		config:   cfg,
		service:  svc,
		metrics:  m,
		upgrader: upgrader,
	}
}

// ServeHTTP upgrades the connection and starts its pumps.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	// Set connection parameters
	conn.SetReadLimit(h.config.WebSocket.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.config.WebSocket.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.config.WebSocket.PongWait))
		return nil
	})

	client := hub.NewClient(h.config.WebSocket.SendBuffer)
	sess := h.service.NewSession(client)

	go h.writePump(conn, client)
	go h.readPump(conn, sess)
}

// readPump pumps events from the WebSocket connection into the service
func (h *WebSocketHandler) readPump(conn *websocket.Conn, sess *service.Session) {
	defer func() {
		h.service.HandleDisconnect(sess)
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
				h.metrics.ClientError("unexpected_close")
			}
			break
		}

		h.service.HandleEvent(sess, message)
	}
}

// writePump pumps events from the client's send channel to the WebSocket
// connection
func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(h.config.WebSocket.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Outbound():
			conn.SetWriteDeadline(time.Now().Add(h.config.WebSocket.WriteWait))
			if !ok {
				// Channel was closed
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued events to the current WebSocket message
			n := len(client.Outbound())
			for i := 0; i < n; i++ {
				queued, ok := <-client.Outbound()
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(queued)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WebSocket.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
