package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialerRoundTrip(t *testing.T) {
	endpoint := echoServer(t)
	d := NewDialer(time.Second, time.Second)

	conn, err := d.Dial(context.Background(), endpoint)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage([]byte(`{"type":"ping"}`)))
	data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(data))
}

func TestDialerHandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewDialer(time.Second, 0).Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestDialerHonoursCancelledContext(t *testing.T) {
	endpoint := echoServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDialer(time.Second, 0).Dial(ctx, endpoint)
	assert.Error(t, err)
}

func TestReadAfterCloseFails(t *testing.T) {
	endpoint := echoServer(t)
	conn, err := NewDialer(time.Second, time.Second).Dial(context.Background(), endpoint)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	_, err = conn.ReadMessage()
	assert.Error(t, err)
}
