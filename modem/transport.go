package modem

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=modem

import (
	"context"
	"io"
	"time"
)

// Transport represents an established, line-oriented byte stream to a modem.
//
// A Transport is assumed to be already connected and ready for use. It provides
// the low-level I/O primitives required to send AT commands and collect their
// replies. Typical implementations include serial ports or in-memory fakes used
// for testing.
//
// A Transport is not safe for concurrent transactions; Modem serializes access.
type Transport interface {
	io.Writer
	io.Closer

	// Flush blocks until everything written has been transmitted.
	Flush() error

	// ReadLines collects the complete lines that arrive within timeout. Blank
	// lines are dropped and trailing control characters trimmed, so a parsed
	// Response.Body never contains empty strings. It never blocks past
	// timeout and may return zero lines.
	ReadLines(timeout time.Duration) ([]string, error)
}

// Dialer opens a Transport to a modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port or a test double) and is intended to be used during modem
// construction only. Once a Transport is obtained, the Dialer is no longer
// needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}
