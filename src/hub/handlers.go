package hub

import (
	"fmt"

	"github.com/orchestra-mcp/notify/src/types"
)

// Inbound message types handled by every hub.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
)

type topicRequest struct {
	Topic string `json:"topic"`
}

func (h *Hub) registerBuiltins() {
	h.handlers[TypeSubscribe] = h.handleSubscribe
	h.handlers[TypeUnsubscribe] = h.handleUnsubscribe
	h.handlers[TypePing] = h.handlePing
}

func (h *Hub) handleSubscribe(clientID string, msg types.Message) error {
	var req topicRequest
	if err := msg.DecodeData(&req); err != nil {
		return fmt.Errorf("decode subscribe: %w", err)
	}
	if !h.Subscribe(req.Topic, clientID) {
		return fmt.Errorf("subscribe %q: client %s not found or topic empty", req.Topic, clientID)
	}
	return nil
}

func (h *Hub) handleUnsubscribe(clientID string, msg types.Message) error {
	var req topicRequest
	if err := msg.DecodeData(&req); err != nil {
		return fmt.Errorf("decode unsubscribe: %w", err)
	}
	h.Unsubscribe(req.Topic, clientID)
	return nil
}

func (h *Hub) handlePing(clientID string, _ types.Message) error {
	pong, _ := types.NewMessage(TypePong, nil)
	if !h.SendToClient(clientID, pong) {
		return fmt.Errorf("pong to %s not delivered", clientID)
	}
	return nil
}
