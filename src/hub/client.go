package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/orchestra-mcp/notify/src/types"
)

// Client wraps a WebSocket connection and manages message flow.
type Client struct {
	ID            string
	UserAgent     string
	conn          types.Conn
	hub           *Hub
	Send          chan types.Message
	connectedAt   time.Time
	initialTopics []string
	topics        map[string]bool
	mu            sync.RWMutex
	done          chan struct{}
	closed        bool
}

// NewClient creates a new WebSocket client wrapper. The client joins
// topics, plus the global topic, when the hub registers it.
func NewClient(id string, conn types.Conn, h *Hub, topics ...string) *Client {
	return &Client{
		ID:            id,
		conn:          conn,
		hub:           h,
		Send:          make(chan types.Message, h.sendBuffer),
		connectedAt:   time.Now(),
		initialTopics: topics,
		topics:        make(map[string]bool),
		done:          make(chan struct{}),
	}
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	topics := make([]string, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	return types.ClientInfo{
		ID:          c.ID,
		ConnectedAt: c.connectedAt,
		Topics:      topics,
		UserAgent:   c.UserAgent,
	}
}

// AddTopic records a topic subscription.
func (c *Client) AddTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = true
}

// RemoveTopic drops a topic subscription.
func (c *Client) RemoveTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

// ReadPump reads frames from the WebSocket and routes them to the hub.
// Frames that are not a valid message are skipped.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Debug().Err(err).Str("client_id", c.ID).Msg("malformed frame")
			continue
		}
		if msg.Timestamp == "" {
			msg.Timestamp = types.Now()
		}
		select {
		case c.hub.incoming <- clientMessage{clientID: c.ID, msg: msg}:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				c.hub.logger.Error().Err(err).Str("client_id", c.ID).Msg("encode message")
				continue
			}
			if err := c.conn.WriteMessage(data); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
		close(c.Send)
	}
}

// enqueue queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) enqueue(msg types.Message) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}
