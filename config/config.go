package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration shared by the server and the listener.
type Config struct {
	Channel ChannelConfig `yaml:"channel"`
	Socket  SocketConfig  `yaml:"socket"`
	Log     LogConfig     `yaml:"log"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	return &Config{
		Channel: DefaultChannelConfig(),
		Socket:  DefaultSocketConfig(),
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads a YAML file on top of the defaults. Fields absent from the
// file keep their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the channel or server cannot run with.
func (c *Config) Validate() error {
	if c.Channel.ReconnectDelay <= 0 {
		return fmt.Errorf("channel.reconnect_delay must be positive, got %s", c.Channel.ReconnectDelay)
	}
	if c.Channel.ToastBuffer < 0 {
		return fmt.Errorf("channel.toast_buffer must not be negative, got %d", c.Channel.ToastBuffer)
	}
	if c.Socket.MaxConnections < 0 {
		return fmt.Errorf("socket.max_connections must not be negative, got %d", c.Socket.MaxConnections)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables. Returns an error if
// a value cannot be parsed.
//
// Supported variables:
//   - NOTIFY_WS_ENDPOINT (string, e.g. "ws://localhost:8090/ws")
//   - NOTIFY_RECONNECT_DELAY (duration, e.g. "3s")
//   - NOTIFY_LISTEN_ADDR (string, e.g. ":8090")
//   - NOTIFY_MAX_CONNECTIONS (int)
//   - NOTIFY_LOG_LEVEL (debug | info | warn | error)
//   - NOTIFY_LOG_FORMAT (console | json)
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("NOTIFY_WS_ENDPOINT"); v != "" {
		cfg.Channel.Endpoint = v
	}
	if v := os.Getenv("NOTIFY_RECONNECT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFY_RECONNECT_DELAY: %w", err)
		}
		cfg.Channel.ReconnectDelay = d
	}
	if v := os.Getenv("NOTIFY_LISTEN_ADDR"); v != "" {
		cfg.Socket.ListenAddr = v
	}
	if v := os.Getenv("NOTIFY_MAX_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFY_MAX_CONNECTIONS: %w", err)
		}
		cfg.Socket.MaxConnections = n
	}
	if v := os.Getenv("NOTIFY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("NOTIFY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return cfg.Validate()
}
