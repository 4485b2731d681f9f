package realtime

import "fmt"

type State int32

const (
	StateUninitialized State = iota
	StateDisconnected
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

type EventType int

const (
	EventStateChange EventType = iota
	EventError
	EventMessage
)

// Event is delivered to observers. Only the fields matching Type are set.
type Event struct {
	Type    EventType
	From    State
	To      State
	Err     *TransportError
	Message *Envelope
}

// TransportError is a failed dial or a dropped connection. Attempt is 1-based
// within the current connection cycle, 0 for a drop of an established connection.
type TransportError struct {
	Attempt int
	Err     error
}

func (e *TransportError) Error() string {
	if e.Attempt == 0 {
		return fmt.Sprintf("connection lost: %v", e.Err)
	}
	return fmt.Sprintf("dial attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
