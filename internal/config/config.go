package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Service information
	Service struct {
		Name        string `yaml:"name"`
		Version     string `yaml:"version"`
		Environment string `yaml:"environment"`
	} `yaml:"service"`

	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Store     StoreConfig     `yaml:"store"`
	Liveness  LivenessConfig  `yaml:"liveness"`
	Limits    LimitsConfig    `yaml:"limits"`
	Log       LogConfig       `yaml:"log"`
}

// HTTPConfig represents HTTP server configuration
type HTTPConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// WebSocketConfig represents WebSocket gateway configuration
type WebSocketConfig struct {
	Path             string        `yaml:"path"`
	MaxMessageSize   int64         `yaml:"max_message_size"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteWait        time.Duration `yaml:"write_wait"`
	PongWait         time.Duration `yaml:"pong_wait"`
	PingPeriod       time.Duration `yaml:"ping_period"`
	SendBuffer       int           `yaml:"send_buffer"`
}

// StoreConfig represents message store configuration
type StoreConfig struct {
	Path         string `yaml:"path"`
	MediaDir     string `yaml:"media_dir"`
	HistoryLimit int    `yaml:"history_limit"`
}

// LivenessConfig represents the liveness prober configuration
type LivenessConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LimitsConfig represents per-connection inbound event limits
type LimitsConfig struct {
	EventsPerSecond float64 `yaml:"events_per_second"`
	Burst           int     `yaml:"burst"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads the configuration, starting from defaults, then the optional
// config file, then environment overrides.
func Load(path string) (*Config, error) {
	// Set default configuration
	config := &Config{
		HTTP: HTTPConfig{
			Address:         ":8090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		WebSocket: WebSocketConfig{
			Path:             "/ws",
			MaxMessageSize:   1 << 20,
			HandshakeTimeout: 10 * time.Second,
			WriteWait:        10 * time.Second,
			PongWait:         60 * time.Second,
			PingPeriod:       30 * time.Second,
			SendBuffer:       256,
		},
		Store: StoreConfig{
			Path:         "hub.db",
			MediaDir:     "media",
			HistoryLimit: 50,
		},
		Liveness: LivenessConfig{
			Interval: 30 * time.Second,
		},
		Limits: LimitsConfig{
			EventsPerSecond: 50,
			Burst:           100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
	config.Service.Name = "realtime-hub"

	// Read the configuration file if one was given
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment overrides
	applyEnvironmentOverrides(config)

	if config.WebSocket.PingPeriod >= config.WebSocket.PongWait {
		return nil, fmt.Errorf("ping_period (%s) must be shorter than pong_wait (%s)",
			config.WebSocket.PingPeriod, config.WebSocket.PongWait)
	}

	return config, nil
}

// applyEnvironmentOverrides applies environment overrides
func applyEnvironmentOverrides(config *Config) {
	// HTTP address
	if addr := os.Getenv("HTTP_ADDRESS"); addr != "" {
		config.HTTP.Address = addr
	}

	// Store path
	if path := os.Getenv("STORE_PATH"); path != "" {
		config.Store.Path = path
	}

	// Media directory
	if dir := os.Getenv("MEDIA_DIR"); dir != "" {
		config.Store.MediaDir = dir
	}

	// Environment
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		config.Service.Environment = env
	}
}
