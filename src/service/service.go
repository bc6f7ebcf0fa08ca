package service

import (
	"fmt"

	"github.com/orchestra-mcp/notify/src/hub"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
)

// Service provides the high-level notification push API on top of a hub.
type Service struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

// New creates a new notification service backed by the given hub.
func New(h *hub.Hub, logger zerolog.Logger) *Service {
	return &Service{hub: h, logger: logger.With().Str("component", "service").Logger()}
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// RegisterHandler registers a handler for an inbound message type.
func (s *Service) RegisterHandler(msgType string, handler types.MessageHandler) {
	s.hub.RegisterHandler(msgType, handler)
	s.logger.Debug().Str("type", msgType).Msg("handler registered")
}

// Notify pushes a toast-worthy notification to every subscriber of topic.
// An empty topic targets every connected client.
func (s *Service) Notify(topic, title, description string) error {
	if title == "" {
		return fmt.Errorf("notification title is required")
	}
	if topic == "" {
		topic = hub.GlobalTopic
	}
	s.hub.Publish(topic, types.NewNotification(title, description))
	s.logger.Debug().Str("topic", topic).Str("title", title).Msg("notification published")
	return nil
}

// Publish sends a message of any type to all subscribers of a topic.
func (s *Service) Publish(topic, msgType string, data any) error {
	if msgType == "" {
		return fmt.Errorf("message type is required")
	}
	msg, err := types.NewMessage(msgType, data)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msgType, err)
	}
	s.hub.Publish(topic, msg)
	return nil
}

// Subscribe adds a client to a topic.
func (s *Service) Subscribe(topic, clientID string) error {
	if ok := s.hub.Subscribe(topic, clientID); !ok {
		return fmt.Errorf("client %s not found", clientID)
	}
	s.logger.Debug().
		Str("client_id", clientID).
		Str("topic", topic).
		Msg("subscribed")
	return nil
}

// Unsubscribe removes a client from a topic.
func (s *Service) Unsubscribe(topic, clientID string) error {
	if ok := s.hub.Unsubscribe(topic, clientID); !ok {
		return fmt.Errorf("topic %s or client %s not found", topic, clientID)
	}
	s.logger.Debug().
		Str("client_id", clientID).
		Str("topic", topic).
		Msg("unsubscribed")
	return nil
}

// OnConnection registers a callback for new connections.
func (s *Service) OnConnection(cb func(clientID string)) {
	s.hub.OnConnection(cb)
}

// OnDisconnection registers a callback for disconnections.
func (s *Service) OnDisconnection(cb func(clientID string)) {
	s.hub.OnDisconnection(cb)
}

// GetConnectedClients returns IDs of all connected clients.
func (s *Service) GetConnectedClients() []string {
	return s.hub.ConnectedClients()
}

// SendToClient sends a message directly to a specific client.
func (s *Service) SendToClient(clientID, msgType string, data any) error {
	msg, err := types.NewMessage(msgType, data)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msgType, err)
	}
	if ok := s.hub.SendToClient(clientID, msg); !ok {
		return fmt.Errorf("client %s not found or buffer full", clientID)
	}
	return nil
}

// GetTopics returns active topics with subscriber counts.
func (s *Service) GetTopics() map[string]int {
	return s.hub.Topics()
}

// GetClientInfo returns info for a connected client, or error.
func (s *Service) GetClientInfo(clientID string) (*types.ClientInfo, error) {
	info := s.hub.ClientInfo(clientID)
	if info == nil {
		return nil, fmt.Errorf("client %s not found", clientID)
	}
	return info, nil
}
