package config

import "time"

// SocketConfig holds WebSocket server configuration.
type SocketConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	MaxConnections  int           `yaml:"max_connections"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	SendBuffer      int           `yaml:"send_buffer"`
}

// DefaultSocketConfig returns the default WebSocket server configuration.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		ListenAddr:      ":8090",
		MaxConnections:  1000,
		WriteTimeout:    10 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
	}
}
