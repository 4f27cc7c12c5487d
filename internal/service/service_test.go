package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlor-social/realtime-hub/internal/config"
	"github.com/parlor-social/realtime-hub/internal/hub"
	"github.com/parlor-social/realtime-hub/internal/metrics"
	"github.com/parlor-social/realtime-hub/internal/model"
)

type mockStore struct {
	mu         sync.Mutex
	appended   []*model.Message
	failAppend bool
	onAppend   func(*model.Message)
}

func (m *mockStore) AppendMessage(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errors.New("store unavailable")
	}
	if m.onAppend != nil {
		m.onAppend(msg)
	}
	m.appended = append(m.appended, msg)
	return nil
}

func (m *mockStore) Conversation(_ context.Context, userA, userB string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.ConversationKey(userA, userB)
	var out []model.Message
	for _, msg := range m.appended {
		if msg.ConversationKey == key {
			out = append(out, *msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appended)
}

type mockBlobs struct {
	fail bool
}

func (m *mockBlobs) Save(kind string, data []byte, mimeType string) (string, error) {
	if m.fail {
		return "", errors.New("disk full")
	}
	return fmt.Sprintf("%s_%d.bin", kind, len(data)), nil
}

func newTestService(t *testing.T) (*Service, *mockStore) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	st := &mockStore{}
	s := New(cfg, hub.New(), st, &mockBlobs{}, metrics.NopCollector{})
	return s, st
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// nextEvent pops one queued outbound event. Handlers run synchronously, so
// anything pushed is already buffered by the time this is called.
func nextEvent(t *testing.T, c *hub.Client) map[string]any {
	t.Helper()
	select {
	case data, ok := <-c.Outbound():
		require.True(t, ok, "send channel closed")
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	default:
		t.Fatal("expected a queued event, channel is empty")
		return nil
	}
}

func assertNoEvent(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Outbound():
		t.Fatalf("expected no event, got %s", data)
	default:
	}
}

// connect registers a new connection for userID and drains the welcome.
func connect(t *testing.T, s *Service, userID string) *Session {
	t.Helper()
	sess := s.NewSession(hub.NewClient(16))
	s.HandleEvent(sess, mustJSON(t, map[string]any{
		"type":    model.EventRegister,
		"user_id": userID,
	}))
	ev := nextEvent(t, sess.Client())
	require.Equal(t, model.EventWelcome, ev["type"])
	return sess
}

func TestHandleEvent_RejectsBeforeRegistration(t *testing.T) {
	s, st := newTestService(t)
	sess := s.NewSession(hub.NewClient(16))

	s.HandleEvent(sess, mustJSON(t, map[string]any{
		"type": model.EventSendText, "to": "bob", "content": "hi",
	}))

	ev := nextEvent(t, sess.Client())
	assert.Equal(t, model.EventError, ev["type"])
	assert.Zero(t, st.count())
}

func TestHandleEvent_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "not json", raw: []byte("{nope")},
		{name: "missing type", raw: []byte(`{"to":"bob"}`)},
		{name: "unknown type", raw: []byte(`{"type":"teleport"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestService(t)
			sess := connect(t, s, "alice")

			s.HandleEvent(sess, tt.raw)

			ev := nextEvent(t, sess.Client())
			assert.Equal(t, model.EventError, ev["type"])
		})
	}
}

func TestRegister_RequiresUserID(t *testing.T) {
	s, _ := newTestService(t)
	sess := s.NewSession(hub.NewClient(16))

	s.HandleEvent(sess, mustJSON(t, map[string]any{"type": model.EventRegister}))

	ev := nextEvent(t, sess.Client())
	assert.Equal(t, model.EventError, ev["type"])
	assert.False(t, sess.Client().Registered())

	// The connection stays open and can still register properly.
	s.HandleEvent(sess, mustJSON(t, map[string]any{
		"type": model.EventRegister, "user_id": "alice",
	}))
	ev = nextEvent(t, sess.Client())
	assert.Equal(t, model.EventWelcome, ev["type"])
}

func TestRegister_DuplicateIdentityDisplacesPrevious(t *testing.T) {
	s, _ := newTestService(t)
	first := connect(t, s, "alice")
	second := connect(t, s, "alice")

	// The old channel is closed, with no eviction notice queued.
	_, open := <-first.Client().Outbound()
	assert.False(t, open)

	// Messages to alice now reach the second connection.
	bob := connect(t, s, "bob")
	s.HandleEvent(bob, mustJSON(t, map[string]any{
		"type": model.EventSendText, "to": "alice", "content": "hello again",
	}))
	ev := nextEvent(t, second.Client())
	assert.Equal(t, model.EventNewTextMessage, ev["type"])
}

func TestHandleDisconnect_UnregistersOnlyOwnEntry(t *testing.T) {
	s, _ := newTestService(t)
	first := connect(t, s, "alice")
	second := connect(t, s, "alice")

	// The displaced connection's transport eventually closes; that must
	// not evict the live replacement.
	s.HandleDisconnect(first)

	connections, _ := s.Status()
	assert.Equal(t, 1, connections)

	s.HandleDisconnect(second)
	connections, _ = s.Status()
	assert.Equal(t, 0, connections)
}

// countingCollector tracks the connection gauge movements.
type countingCollector struct {
	metrics.NopCollector
	mu           sync.Mutex
	connected    int
	disconnected int
}

func (c *countingCollector) ClientConnected() {
	c.mu.Lock()
	c.connected++
	c.mu.Unlock()
}

func (c *countingCollector) ClientDisconnected() {
	c.mu.Lock()
	c.disconnected++
	c.mu.Unlock()
}

func (c *countingCollector) gauge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected - c.disconnected
}

func TestMetrics_GaugeBalancedAcrossDisplacement(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	collector := &countingCollector{}
	s := New(cfg, hub.New(), &mockStore{}, &mockBlobs{}, collector)

	first := connect(t, s, "alice")
	second := connect(t, s, "alice")
	assert.Equal(t, 1, collector.gauge(), "a displaced connection must free its gauge slot")

	// Transport-level close of both connections, in either order.
	s.HandleDisconnect(first)
	s.HandleDisconnect(second)

	connections, _ := s.Status()
	assert.Equal(t, 0, connections)
	assert.Equal(t, 0, collector.gauge(), "active-connections gauge should return to zero")
	assert.Equal(t, 2, collector.connected)
	assert.Equal(t, 2, collector.disconnected)
}

func TestLivenessProbe(t *testing.T) {
	s, _ := newTestService(t)
	alice := connect(t, s, "alice")

	// First cycle: registration marked the client alive, so it is not
	// stale; the probe resets the flag.
	s.probeAll()
	ev := nextEvent(t, alice.Client())
	assert.Equal(t, model.EventLivenessProbe, ev["type"])

	// Ack restores the flag before the next cycle.
	s.HandleEvent(alice, mustJSON(t, map[string]any{"type": model.EventLivenessAck}))
	s.probeAll()
	ev = nextEvent(t, alice.Client())
	assert.Equal(t, model.EventLivenessProbe, ev["type"])

	// No ack this time: the client is flagged but still registered and
	// still probed.
	s.probeAll()
	ev = nextEvent(t, alice.Client())
	assert.Equal(t, model.EventLivenessProbe, ev["type"])
	connections, _ := s.Status()
	assert.Equal(t, 1, connections)
}
