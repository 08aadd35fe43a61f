package tcp

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a Connection.
type State int32

const (
	// Created: no socket id yet. Never observable outside New.
	Created State = iota
	// Bound: the modem assigned a socket id.
	Bound
	Listening
	Connecting
	Connected
	// Closed is terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Bound:
		return "bound"
	case Listening:
		return "listening"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var (
	// ErrInvalidState is matched by *StateError. No command is sent to the
	// modem for an operation rejected this way.
	ErrInvalidState = errors.New("invalid connection state")

	// ErrAwaitTimeout is returned when no peer connected before the polling
	// budget ran out. The connection keeps listening.
	ErrAwaitTimeout = errors.New("no peer connected")
)

// StateError reports an operation attempted outside its valid state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("tcp: %s not allowed in state %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}
