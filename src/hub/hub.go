package hub

import (
	"sync"

	"github.com/orchestra-mcp/notify/src/metrics"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
)

// GlobalTopic is joined by every client on registration.
const GlobalTopic = "global"

// MessageBridge publishes messages to other server instances.
// Defined here to avoid circular imports with the bridge package.
type MessageBridge interface {
	Publish(topic string, msg types.Message) error
	Available() bool
}

// Option customises a Hub.
type Option func(*Hub)

// WithSendBuffer sets the per-client outbound buffer size.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithMetrics records client counts, publishes and drops on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// Hub manages all WebSocket client connections and topic subscriptions.
type Hub struct {
	clients map[string]*Client
	topics  map[string]map[string]bool // topic -> set of clientIDs

	register   chan *Client
	unregister chan *Client
	incoming   chan clientMessage
	broadcast  chan broadcastMsg
	localCast  chan broadcastMsg // messages from bridge, no re-publish

	handlers  map[string]types.MessageHandler
	onConnect []func(string)
	onDisconn []func(string)

	bridge     MessageBridge
	metrics    *metrics.Metrics
	sendBuffer int
	mu         sync.RWMutex
	logger     zerolog.Logger
	done       chan struct{}
	stopOnce   sync.Once
}

type broadcastMsg struct {
	topic string
	msg   types.Message
}

type clientMessage struct {
	clientID string
	msg      types.Message
}

// New creates a new Hub with the subscribe, unsubscribe and ping handlers installed.
func New(logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		topics:     make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan clientMessage, 256),
		broadcast:  make(chan broadcastMsg, 256),
		localCast:  make(chan broadcastMsg, 256),
		handlers:   make(map[string]types.MessageHandler),
		sendBuffer: 256,
		logger:     logger.With().Str("component", "hub").Logger(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registerBuiltins()
	return h
}

// SetBridge attaches a cross-instance message bridge to the hub.
// When set, published messages are also forwarded to other instances.
func (h *Hub) SetBridge(b MessageBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// BroadcastToLocal delivers a message from the bridge to local subscribers only.
// It does not re-publish to the bridge, preventing infinite loops.
func (h *Hub) BroadcastToLocal(topic string, msg types.Message) {
	select {
	case h.localCast <- broadcastMsg{topic: topic, msg: msg}:
	case <-h.done:
	}
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case cm := <-h.incoming:
			h.handleMessage(cm.clientID, cm.msg)
		case bm := <-h.broadcast:
			h.publishToBridge(bm.topic, bm.msg)
			h.broadcastToTopic(bm.topic, bm.msg)
		case bm := <-h.localCast:
			h.broadcastToTopic(bm.topic, bm.msg)
		case <-h.done:
			return
		}
	}
}

// Stop halts the hub event loop and closes every client so their pumps
// exit. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.RLock()
		defer h.mu.RUnlock()
		for _, c := range h.clients {
			c.Close()
		}
	})
}

// Register queues a client for registration.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	for _, topic := range append([]string{GlobalTopic}, c.initialTopics...) {
		h.subscribeLocked(topic, c.ID)
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.HubClients(count)
	h.logger.Info().Str("client_id", c.ID).Msg("client registered")

	for _, cb := range h.onConnect {
		cb(c.ID)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)

	// Remove from all topic subscriptions.
	for topic, subs := range h.topics {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.Close()
	h.metrics.HubClients(count)
	h.logger.Info().Str("client_id", c.ID).Msg("client unregistered")

	for _, cb := range h.onDisconn {
		cb(c.ID)
	}
}
