// Package domain contains entity without logic, just meta-data
package domain

// ConnectionState is the user-facing lifecycle of one call attempt.
// It is driven only by transport events and explicit user actions,
// never by the poll loop.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Terminal reports whether the state ends the current call attempt.
// A new attempt creates a new CallSession.
func (s ConnectionState) Terminal() bool {
	return s == StateDisconnected || s == StateError
}

// Live reports whether a media session is established.
func (s ConnectionState) Live() bool {
	return s == StateConnected || s == StateReconnecting
}

// CallSession is one call attempt. RoomID and ParticipantID are generated
// once per attempt and immutable for its lifetime.
type CallSession struct {
	RoomID        string
	ParticipantID string
	State         ConnectionState
	Muted         bool
}
