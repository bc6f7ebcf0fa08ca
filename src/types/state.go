package types

// State is the lifecycle state of a notification channel.
type State int

const (
	// StateDisconnected means no connection is open and none is being dialed.
	StateDisconnected State = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateConnected means the connection is open.
	StateConnected

	// StateDisposed is terminal: the owner released the channel.
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of a channel's observable state.
type Snapshot struct {
	State       State    `json:"state"`
	Connected   bool     `json:"connected"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// MarshalText renders the state by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
