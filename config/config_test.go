package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Channel.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.Channel.ReconnectDelay)
	assert.Equal(t, 64, cfg.Channel.ToastBuffer)
	assert.Equal(t, ":8090", cfg.Socket.ListenAddr)
	assert.Equal(t, 1000, cfg.Socket.MaxConnections)
	assert.Equal(t, 10*time.Second, cfg.Socket.WriteTimeout)
	assert.Equal(t, 1024, cfg.Socket.ReadBufferSize)
	assert.Equal(t, 1024, cfg.Socket.WriteBufferSize)
	assert.Equal(t, 256, cfg.Socket.SendBuffer)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := writeConfig(t, `
channel:
  endpoint: ws://localhost:8090/ws
  reconnect_delay: 5s
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8090/ws", cfg.Channel.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Channel.ReconnectDelay)
	assert.Equal(t, 10*time.Second, cfg.Channel.DialTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 1000, cfg.Socket.MaxConnections)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "channel: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsZeroReconnectDelay(t *testing.T) {
	path := writeConfig(t, "channel:\n  reconnect_delay: 0s\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "reconnect_delay")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NOTIFY_WS_ENDPOINT", "ws://dev.local/ws")
	t.Setenv("NOTIFY_RECONNECT_DELAY", "750ms")
	t.Setenv("NOTIFY_LISTEN_ADDR", ":9999")
	t.Setenv("NOTIFY_MAX_CONNECTIONS", "12")
	t.Setenv("NOTIFY_LOG_LEVEL", "warn")
	t.Setenv("NOTIFY_LOG_FORMAT", "json")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "ws://dev.local/ws", cfg.Channel.Endpoint)
	assert.Equal(t, 750*time.Millisecond, cfg.Channel.ReconnectDelay)
	assert.Equal(t, ":9999", cfg.Socket.ListenAddr)
	assert.Equal(t, 12, cfg.Socket.MaxConnections)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestApplyEnvInvalidDuration(t *testing.T) {
	t.Setenv("NOTIFY_RECONNECT_DELAY", "soon")
	assert.ErrorContains(t, ApplyEnv(DefaultConfig()), "NOTIFY_RECONNECT_DELAY")
}

func TestApplyEnvInvalidInt(t *testing.T) {
	t.Setenv("NOTIFY_MAX_CONNECTIONS", "lots")
	assert.ErrorContains(t, ApplyEnv(DefaultConfig()), "NOTIFY_MAX_CONNECTIONS")
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "channel:\n  endpoint: ws://one/ws\n")

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zerolog.Nop(), func(c *Config) { changes <- c })
	}()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	var got *Config
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("channel:\n  endpoint: ws://two/ws\n"), 0o600)
		select {
		case got = <-changes:
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, "ws://two/ws", got.Channel.Endpoint)
}

func TestWatchReloadsAfterRenameOver(t *testing.T) {
	path := writeConfig(t, "channel:\n  endpoint: ws://one/ws\n")
	dir := filepath.Dir(path)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zerolog.Nop(), func(c *Config) { changes <- c })
	}()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Two saves in a row: the second proves the watch survived the first.
	for _, endpoint := range []string{"ws://two/ws", "ws://three/ws"} {
		var got *Config
		require.Eventually(t, func() bool {
			tmp := filepath.Join(dir, ".notify.yaml.tmp")
			if err := os.WriteFile(tmp, []byte("channel:\n  endpoint: "+endpoint+"\n"), 0o600); err != nil {
				return false
			}
			if err := os.Rename(tmp, path); err != nil {
				return false
			}
			for {
				select {
				case c := <-changes:
					if c.Channel.Endpoint == endpoint {
						got = c
						return true
					}
				default:
					return false
				}
			}
		}, 3*time.Second, 50*time.Millisecond, endpoint)
		assert.Equal(t, endpoint, got.Channel.Endpoint)
	}
}

func TestWatchMissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), zerolog.Nop(), func(*Config) {})
	assert.Error(t, err)
}
