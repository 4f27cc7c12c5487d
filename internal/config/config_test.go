package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.HTTP.Address)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
	assert.Equal(t, 256, cfg.WebSocket.SendBuffer)
	assert.Equal(t, 30*time.Second, cfg.Liveness.Interval)
	assert.Equal(t, "realtime-hub", cfg.Service.Name)
	assert.Less(t, cfg.WebSocket.PingPeriod, cfg.WebSocket.PongWait)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	// Durations are int64 nanoseconds in yaml.
	data := `
http:
  address: ":9999"
store:
  path: /var/lib/hub/messages.db
liveness:
  interval: 10000000000
limits:
  events_per_second: 5
  burst: 10
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Address)
	assert.Equal(t, "/var/lib/hub/messages.db", cfg.Store.Path)
	assert.Equal(t, 10*time.Second, cfg.Liveness.Interval)
	assert.Equal(t, float64(5), cfg.Limits.EventsPerSecond)

	// Untouched sections keep their defaults.
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":7070")
	t.Setenv("STORE_PATH", "/tmp/override.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Address)
	assert.Equal(t, "/tmp/override.db", cfg.Store.Path)
}

func TestLoad_RejectsBadPingPeriod(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
websocket:
  ping_period: 120000000000
  pong_wait: 60000000000
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
