package modem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"i4.energy/across/nbiot/at"
)

// Modem represents a SIM7020-class cellular modem that communicates via AT
// commands over a single Transport.
//
// The modem does not tag replies with a request identifier, so a Modem allows
// at most one transaction in flight. Execute holds an exclusive slot for the
// whole write, flush and read sequence; concurrent callers queue behind it.
type Modem struct {
	// transport provides the physical connection to the modem
	transport Transport
	// slot holds a token while a transaction is in flight
	slot chan struct{}
	// closed indicates if the modem has been shut down
	closed atomic.Bool

	name      string
	dialer    Dialer
	atTimeout time.Duration
	logger    *slog.Logger
}

// PollConfig defines configuration for polling operations like waiting for
// an inbound connection on a listening socket.
type PollConfig struct {
	// Interval is the time between polling attempts
	Interval time.Duration
	// Timeout is the maximum time to wait for the condition
	Timeout time.Duration
	// MaxRetries is the maximum number of polling attempts
	MaxRetries int
}

// WithDefaults fills zero fields with a 500ms interval and a 30s timeout.
// MaxRetries defaults to as many polls as fit in Timeout, and at least one.
func (c PollConfig) WithDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = max(int(c.Timeout/c.Interval), 1)
	}
	return c
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection and checks that the modem answers
// with echo enabled, which response parsing relies on.
//
// Returns an error if the transport connection or modem initialization
// fails. The transport is closed before returning an initialization error.
func New(ctx context.Context, config Config) (*Modem, error) {
	if config.Dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		transport: transport,
		slot:      make(chan struct{}, 1),
		name:      config.Name,
		dialer:    config.Dialer,
		atTimeout: config.ATTimeout,
		logger:    config.Logger.With("modem", config.Name),
	}

	initCtx, cancel := context.WithTimeout(ctx, config.InitTimeout)
	defer cancel()

	if err := m.init(initCtx); err != nil {
		transport.Close()
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

// init performs the initial setup sequence for the modem hardware.
func (m *Modem) init(ctx context.Context) error {
	// 1. Wake-up / sanity check
	if err := m.expectOK(ctx, at.CmdAt); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	// 2. Make sure the first reply line is always the echo
	if err := m.expectOK(ctx, at.CmdEchoOn); err != nil {
		return fmt.Errorf("could not enable echo: %w", err)
	}

	return nil
}

// Execute sends one AT command and returns the parsed reply.
//
// The command is written once, terminated by CRLF, and the reply is read
// until the configured AT timeout. A modem that stays silent produces a
// Response with Success false and no lines rather than an error; transport
// failures are returned as *ChannelError.
//
// ctx only bounds the wait for the transaction slot. Once the command is
// written the transaction runs to completion.
func (m *Modem) Execute(ctx context.Context, cmd string) (at.Response, error) {
	if cmd == "" || strings.ContainsAny(cmd, "\r\n") {
		return at.Response{}, fmt.Errorf("%w: %q", ErrInvalidCommand, cmd)
	}
	if m.transport == nil {
		return at.Response{}, ErrNotInitialized
	}
	if m.closed.Load() {
		return at.Response{}, ErrAlreadyClosed
	}

	if err := ctx.Err(); err != nil {
		return at.Response{}, fmt.Errorf("command cancelled before sending: %w", err)
	}
	select {
	case m.slot <- struct{}{}:
	case <-ctx.Done():
		return at.Response{}, fmt.Errorf("command cancelled before sending: %w", ctx.Err())
	}
	defer func() { <-m.slot }()

	// Close may have won the race for the slot.
	if m.closed.Load() {
		return at.Response{}, ErrAlreadyClosed
	}

	wire := []byte(cmd + at.CRLF)
	n, err := m.transport.Write(wire)
	if err == nil && n < len(wire) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return at.Response{}, &ChannelError{Op: "write", Command: cmd, Err: err}
	}
	if err := m.transport.Flush(); err != nil {
		return at.Response{}, &ChannelError{Op: "flush", Command: cmd, Err: err}
	}

	lines, err := m.transport.ReadLines(m.atTimeout)
	if err != nil {
		return at.Response{}, &ChannelError{Op: "read", Command: cmd, Err: err}
	}

	resp := at.Parse(lines)
	if resp.NoReply() {
		m.logger.Warn("no reply to AT command", "command", cmd, "timeout", m.atTimeout)
	} else {
		m.logger.Debug("AT command",
			"command", cmd,
			"echo", resp.Echo,
			"lines", len(lines),
			"success", resp.Success,
		)
	}
	return resp, nil
}

// expectOK executes cmd and turns anything but an OK reply into a
// *RejectedError.
func (m *Modem) expectOK(ctx context.Context, cmd string) error {
	resp, err := m.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	if !resp.Success {
		return &RejectedError{Command: cmd, Response: resp}
	}
	return nil
}

// Close shuts down the modem and closes the transport. A transaction in
// flight is aborted by the transport closing underneath it. After calling
// Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if m.closed.Swap(true) {
		return ErrAlreadyClosed
	}
	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

func (m *Modem) String() string {
	if s, ok := m.dialer.(fmt.Stringer); ok {
		return fmt.Sprintf("%s: { %s }", m.name, s)
	}
	return m.name
}
