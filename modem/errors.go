package modem

import (
	"errors"
	"fmt"

	"i4.energy/across/nbiot/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has not been successfully initialized.
	//
	// This can occur if the Dialer returned no transport or if the Modem was
	// not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when the Modem has already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLineTooLong is returned when a modem response line exceeds the
	// maximum allowed length.
	//
	// This typically indicates malformed input, unexpected binary data,
	// or a protocol framing error.
	ErrLineTooLong = errors.New("response line too long")

	// ErrInvalidCommand is returned for an empty command or one that already
	// contains a line terminator. Nothing is written to the transport.
	ErrInvalidCommand = errors.New("invalid AT command")

	// ErrInvalidSocketID is returned when a socket operation is given an id
	// the modem could not have assigned. Nothing is written to the transport.
	ErrInvalidSocketID = errors.New("invalid socket id")

	// ErrInvalidArgument is returned when a socket operation argument is out
	// of range, for example a port outside 1-65535 or an empty payload.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrParse is returned when a successful response does not have the
	// shape needed to extract a value from it.
	ErrParse = errors.New("unexpected response format")

	// ErrRemoteRejected is matched by *RejectedError via errors.Is.
	ErrRemoteRejected = errors.New("command rejected by modem")

	// ErrSocketBound is returned when an id is bound to a Socket twice.
	ErrSocketBound = errors.New("socket already bound")
)

// ChannelError reports a transport failure during a transaction. The
// transaction is abandoned and not retried.
type ChannelError struct {
	// Op is the failing step: "write", "flush" or "read".
	Op      string
	Command string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s command %q: %v", e.Op, e.Command, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// OpenError is returned by SerialDialer when the port cannot be opened.
type OpenError struct {
	Port string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Port == "" {
		return "modem: " + e.Err.Error()
	}
	return fmt.Sprintf("modem: open serial port %q: %v", e.Port, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// RejectedError is returned when the modem did not answer a command with OK.
// Response.NoReply tells a silent modem apart from an explicit error.
type RejectedError struct {
	Command  string
	Response at.Response
}

func (e *RejectedError) Error() string {
	if e.Response.NoReply() {
		return fmt.Sprintf("command %q: no reply from modem", e.Command)
	}
	if final := e.Response.Final(); final != "" {
		return fmt.Sprintf("command %q: %s", e.Command, final)
	}
	return fmt.Sprintf("command %q: unexpected response: %q", e.Command, e.Response.Body)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRemoteRejected
}
