package hub

import (
	"github.com/orchestra-mcp/notify/src/types"
)

func (h *Hub) handleMessage(clientID string, msg types.Message) {
	h.mu.RLock()
	handler, ok := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug().Str("type", msg.Type).Msg("no handler")
		return
	}
	if err := handler(clientID, msg); err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Str("client_id", clientID).Msg("handler error")
	}
}

func (h *Hub) broadcastToTopic(topic string, msg types.Message) {
	h.mu.RLock()
	subs, ok := h.topics[topic]
	if !ok {
		h.mu.RUnlock()
		return
	}
	// Copy subscriber IDs to avoid holding lock during sends.
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.mu.RLock()
		client, exists := h.clients[id]
		h.mu.RUnlock()
		if !exists {
			continue
		}
		if !client.enqueue(msg) {
			h.metrics.HubDropped()
			h.logger.Warn().Str("client_id", id).Msg("send buffer full, dropping")
		}
	}
}

// publishToBridge forwards a message to the bridge if one is attached.
func (h *Hub) publishToBridge(topic string, msg types.Message) {
	h.mu.RLock()
	b := h.bridge
	h.mu.RUnlock()

	if b == nil || !b.Available() {
		return
	}
	if err := b.Publish(topic, msg); err != nil {
		h.logger.Error().Err(err).Msg("bridge publish failed")
	}
}

// Publish sends a message to all subscribers of a topic.
func (h *Hub) Publish(topic string, msg types.Message) {
	h.metrics.HubPublished()
	select {
	case h.broadcast <- broadcastMsg{topic: topic, msg: msg}:
	case <-h.done:
	}
}

// Subscribe adds a client to a topic.
func (h *Hub) Subscribe(topic, clientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subscribeLocked(topic, clientID)
}

func (h *Hub) subscribeLocked(topic, clientID string) bool {
	client, ok := h.clients[clientID]
	if !ok || topic == "" {
		return false
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]bool)
	}
	h.topics[topic][clientID] = true
	client.AddTopic(topic)
	return true
}

// Unsubscribe removes a client from a topic.
func (h *Hub) Unsubscribe(topic, clientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		return false
	}
	delete(subs, clientID)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
	if c, ok := h.clients[clientID]; ok {
		c.RemoveTopic(topic)
	}
	return true
}

// SendToClient sends a message directly to a specific client.
func (h *Hub) SendToClient(clientID string, msg types.Message) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return client.enqueue(msg)
}
