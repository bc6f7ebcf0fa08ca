package config

import "time"

// DefaultReconnectDelay is the fixed wait between a disconnect and the next dial.
const DefaultReconnectDelay = 3 * time.Second

// ChannelConfig configures the client side live notification channel.
type ChannelConfig struct {
	// Endpoint is the websocket URL. Empty leaves the channel inert.
	Endpoint string `yaml:"endpoint"`

	// ReconnectDelay is the fixed delay before each reconnect attempt.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ToastBuffer bounds the asynchronous toast queue.
	ToastBuffer int `yaml:"toast_buffer"`
}

// DefaultChannelConfig returns the default channel configuration.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		ReconnectDelay: DefaultReconnectDelay,
		DialTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		ToastBuffer:    64,
	}
}
