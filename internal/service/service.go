// Package service routes every inbound client event to the message relay,
// the call signaling table, or the liveness prober, after validating it at
// the boundary.
package service

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/parlor-social/realtime-hub/internal/config"
	"github.com/parlor-social/realtime-hub/internal/hub"
	"github.com/parlor-social/realtime-hub/internal/metrics"
	"github.com/parlor-social/realtime-hub/internal/model"
	"github.com/parlor-social/realtime-hub/internal/store"
)

// Service is the hub's event dispatcher and the owner of all call state.
type Service struct {
	cfg      *config.Config
	hub      *hub.Hub
	store    store.MessageStore
	blobs    store.BlobStore
	metrics  metrics.Collector
	validate *validator.Validate
	calls    *callTable
	stopChan chan struct{}
}

// New creates the service. Start must be called before events arrive so the
// liveness prober is running.
func New(cfg *config.Config, h *hub.Hub, st store.MessageStore, blobs store.BlobStore, m metrics.Collector) *Service {
	return &Service{
		cfg:      cfg,
		hub:      h,
		store:    st,
		blobs:    blobs,
		metrics:  m,
		validate: validator.New(),
		calls:    newCallTable(),
		stopChan: make(chan struct{}),
	}
}

// Start launches the liveness prober.
func (s *Service) Start() {
	go s.runLiveness()
}

// Close stops the prober and drops every connection.
func (s *Service) Close() {
	close(s.stopChan)
	s.hub.CloseAll()
}

// Status returns the current connection and call-session counts.
func (s *Service) Status() (connections, activeCalls int) {
	return s.hub.Len(), s.calls.active()
}

// Session is the per-connection dispatch state. The client starts unbound;
// registration gives it an identity and places it in the registry.
type Session struct {
	client  *hub.Client
	limiter *rate.Limiter
}

// NewSession wraps a freshly accepted connection.
func (s *Service) NewSession(c *hub.Client) *Session {
	return &Session{
		client:  c,
		limiter: rate.NewLimiter(rate.Limit(s.cfg.Limits.EventsPerSecond), s.cfg.Limits.Burst),
	}
}

// Client exposes the underlying handle to the transport layer.
func (sess *Session) Client() *hub.Client {
	return sess.client
}

// HandleEvent processes one inbound event. Every failure is reported back
// on the sender's own channel; nothing propagates further.
func (s *Service) HandleEvent(sess *Session, raw []byte) {
	if !sess.limiter.Allow() {
		s.sendError(sess.client, "rate_limited", "too many events")
		return
	}

	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.sendError(sess.client, "malformed_event", "event is not valid JSON")
		return
	}
	if env.Type == "" {
		s.sendError(sess.client, "malformed_event", "event type is required")
		return
	}

	// Unregistered connections may only register.
	if !sess.client.Registered() && env.Type != model.EventRegister {
		s.sendError(sess.client, "not_registered", "registration required before "+env.Type)
		return
	}

	switch env.Type {
	case model.EventRegister:
		s.handleRegister(sess, raw)
	case model.EventSendText:
		s.handleSendText(sess, raw)
	case model.EventSendImage:
		s.handleSendImage(sess, raw)
	case model.EventSendVoice:
		s.handleSendVoice(sess, raw)
	case model.EventCallOffer:
		s.handleCallOffer(sess, raw)
	case model.EventCallAnswer:
		s.handleCallAnswer(sess, raw)
	case model.EventICECandidate:
		s.handleICECandidate(sess, raw)
	case model.EventCallReject:
		s.handleCallReject(sess, raw)
	case model.EventCallHangup:
		s.handleCallHangup(sess, raw)
	case model.EventLivenessAck:
		sess.client.MarkAlive()
	default:
		s.sendError(sess.client, "unknown_event", "unknown event type: "+env.Type)
	}
}

// HandleDisconnect cleans up after the transport closes. Any call session
// involving the user is ended and the remaining peer notified.
func (s *Service) HandleDisconnect(sess *Session) {
	c := sess.client
	if c.Registered() && s.hub.UnregisterClient(c) {
		s.metrics.ClientDisconnected()
		s.teardownCalls(c.UserID())
	}
	c.Close()
}

func (s *Service) handleRegister(sess *Session, raw []byte) {
	var ev model.RegisterEvent
	if err := s.decode(raw, &ev); err != nil {
		s.sendError(sess.client, "bad_register", "register: user_id is required")
		return
	}
	if sess.client.Registered() {
		s.sendError(sess.client, "bad_register", "connection is already registered")
		return
	}

	sess.client.Bind(ev.UserID, ev.DisplayHandle)
	if displaced := s.hub.Register(sess.client); displaced != nil {
		// Last registration wins; close the superseded channel so its
		// write pump exits. Its gauge slot is released here, since its
		// own disconnect no longer matches a registry entry.
		displaced.Close()
		s.metrics.ClientDisconnected()
	}
	s.metrics.ClientConnected()

	s.push(sess.client, model.WelcomeEvent{
		Type:          model.EventWelcome,
		UserID:        ev.UserID,
		DisplayHandle: ev.DisplayHandle,
		Timestamp:     nowMillis(),
	})
}

// decode unmarshals an event payload and validates it in one step so every
// handler rejects malformed input the same way.
func (s *Service) decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// push marshals and queues an outbound event. A full send buffer drops the
// connection rather than blocking the dispatcher.
func (s *Service) push(c *hub.Client, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to marshal outbound event: %v", err)
		return false
	}
	if !c.Push(data) {
		if id := c.UserID(); id != "" {
			log.Printf("Send buffer full for %s, dropping connection", id)
		}
		c.Close()
		return false
	}
	return true
}

func (s *Service) sendError(c *hub.Client, errorType, message string) {
	s.metrics.ClientError(errorType)
	s.push(c, model.ErrorEvent{Type: model.EventError, Message: message})
}
