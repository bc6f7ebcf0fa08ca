package providers

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/notify/config"
	"github.com/orchestra-mcp/notify/src/channel"
	"github.com/orchestra-mcp/notify/src/toast"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActiveServer(t *testing.T, cfg config.SocketConfig) *Server {
	t.Helper()
	s := NewServer(cfg, zerolog.Nop())
	s.Activate(nil)
	t.Cleanup(func() { _ = s.Deactivate() })
	return s
}

// serve runs s on a loopback listener and returns its address.
func serve(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return ln.Addr().String()
}

func doJSON(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	s := newActiveServer(t, config.DefaultSocketConfig())

	status, body := doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["active"])
}

func TestInfo(t *testing.T) {
	s := newActiveServer(t, config.DefaultSocketConfig())

	status, body := doJSON(t, s, http.MethodGet, "/ws/info", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/ws", body["endpoint"])
	assert.Equal(t, float64(0), body["clients"])
	assert.Equal(t, false, body["bridged"])
}

func TestNotifyValidation(t *testing.T) {
	s := newActiveServer(t, config.DefaultSocketConfig())

	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{"title":`, "invalid_body"},
		{"missing title", `{"topic":"builds","description":"x"}`, "invalid_notification"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, s, http.MethodPost, "/notify", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestNotifyDefaultsToGlobalTopic(t *testing.T) {
	s := newActiveServer(t, config.DefaultSocketConfig())

	status, body := doJSON(t, s, http.MethodPost, "/notify", `{"title":"Deploy","description":"done"}`)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "global", body["topic"])
}

func TestPublishValidation(t *testing.T) {
	s := newActiveServer(t, config.DefaultSocketConfig())

	status, body := doJSON(t, s, http.MethodPost, "/publish", `{"type":"status"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "topic is required", body["message"])

	status, _ = doJSON(t, s, http.MethodPost, "/publish", `{"topic":"builds"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, s, http.MethodPost, "/publish", `{"topic":"builds","type":"status","data":{"ok":true}}`)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "builds", body["topic"])
}

func TestParseTopics(t *testing.T) {
	assert.Nil(t, parseTopics(""))
	assert.Equal(t, []string{"a", "b"}, parseTopics("a, b,,"))
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := newActiveServer(t, config.DefaultSocketConfig())
	addr := serve(t, s)

	resp, err := http.Get("http://" + addr + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newActiveServer(t, config.DefaultSocketConfig())
	addr := serve(t, s)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "notify_hub_clients")
	assert.Contains(t, string(raw), "go_goroutines")
}

func TestNotificationReachesChannel(t *testing.T) {
	s := newActiveServer(t, config.DefaultSocketConfig())
	addr := serve(t, s)

	rec := &toast.Recorder{}
	ch := channel.New(config.DefaultChannelConfig(), rec)
	require.NoError(t, ch.Connect("ws://"+addr+"/ws?topics=builds"))
	t.Cleanup(ch.Dispose)

	require.Eventually(t, ch.Connected, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Service().Notify("builds", "Build finished", "main is green"))
	require.NoError(t, s.Service().Notify("deploys", "Ignored", "not subscribed"))

	require.Eventually(t, func() bool { return len(rec.Toasts()) == 1 }, 5*time.Second, 10*time.Millisecond)
	got := rec.Toasts()[0]
	assert.Equal(t, "Build finished", got.Title)
	assert.Equal(t, "main is green", got.Description)

	require.NoError(t, s.Service().Notify("", "Everyone", ""))
	require.Eventually(t, func() bool { return len(rec.Toasts()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Everyone", rec.Toasts()[1].Title)
}

func TestMaxConnections(t *testing.T) {
	cfg := config.DefaultSocketConfig()
	cfg.MaxConnections = 1
	s := newActiveServer(t, cfg)
	addr := serve(t, s)

	first, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestConcurrentUpgradesRespectLimit(t *testing.T) {
	cfg := config.DefaultSocketConfig()
	cfg.MaxConnections = 2
	s := newActiveServer(t, cfg)
	addr := serve(t, s)

	const dialers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []*websocket.Conn
		rejected int
	)
	start := make(chan struct{})
	for i := 0; i < dialers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if resp != nil && resp.StatusCode == http.StatusServiceUnavailable {
					rejected++
				}
				return
			}
			accepted = append(accepted, conn)
		}()
	}
	close(start)
	wg.Wait()
	defer func() {
		for _, c := range accepted {
			c.Close()
		}
	}()

	assert.Len(t, accepted, 2)
	assert.Equal(t, dialers-2, rejected)
}

func TestConnectionSlots(t *testing.T) {
	cfg := config.DefaultSocketConfig()
	cfg.MaxConnections = 1
	s := NewServer(cfg, zerolog.Nop())

	require.True(t, s.acquireSlot())
	assert.False(t, s.acquireSlot())
	s.releaseSlot()
	assert.True(t, s.acquireSlot())

	cfg.MaxConnections = 0
	unlimited := NewServer(cfg, zerolog.Nop())
	for i := 0; i < 10; i++ {
		assert.True(t, unlimited.acquireSlot())
	}
}

func TestActiveFlagFollowsLifecycle(t *testing.T) {
	s := NewServer(config.DefaultSocketConfig(), zerolog.Nop())
	assert.False(t, s.IsActive())

	s.Activate(nil)
	assert.True(t, s.IsActive())
	_, body := doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, true, body["active"])

	require.NoError(t, s.Deactivate())
	assert.False(t, s.IsActive())
}
