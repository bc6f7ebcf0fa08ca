package types

import (
	"context"
	"encoding/json"
	"time"
)

// TypeNotification marks messages that surface as a toast.
const TypeNotification = "notification"

// TimestampLayout is the wire format of Message.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Message is the wire envelope exchanged over the notification socket.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Notification is the payload of a TypeNotification message.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewMessage builds a message of the given type stamped with the current time.
func NewMessage(typ string, data any) (Message, error) {
	msg := Message{Type: typ, Timestamp: Now()}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	msg.Data = raw
	return msg, nil
}

// NewNotification builds a notification message.
func NewNotification(title, description string) Message {
	msg, _ := NewMessage(TypeNotification, Notification{Title: title, Description: description})
	return msg
}

// Notification decodes the title and description carried in Data.
// Data that is absent or not an object yields an empty Notification, and a
// field of the wrong type is left empty without losing the other one.
func (m Message) Notification() Notification {
	var n Notification
	if len(m.Data) == 0 {
		return n
	}
	// encoding/json keeps decoding past a type mismatch, so n holds every
	// field that did fit.
	_ = json.Unmarshal(m.Data, &n)
	return n
}

// DecodeData unmarshals Data into v.
func (m Message) DecodeData(v any) error {
	if len(m.Data) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(m.Data, v)
}

// Now returns the current time in the wire timestamp format.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// MessageHandler handles an incoming message of one type.
type MessageHandler func(clientID string, msg Message) error

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	Topics      []string  `json:"topics"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens client connections.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}
