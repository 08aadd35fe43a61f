// Package tcp sequences a modem socket through creation, connect or listen,
// data transfer and close.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/nbiot/at"
	"i4.energy/across/nbiot/modem"
)

// Device is the part of *modem.Modem a Connection needs.
type Device interface {
	CreateSocket(ctx context.Context, ops modem.SockOps) (int, error)
	ConnectSocket(ctx context.Context, id int, host string, port int) (at.Response, error)
	BindSocket(ctx context.Context, id int, port int) (at.Response, error)
	StartListening(ctx context.Context, id int) (at.Response, error)
	SendSocket(ctx context.Context, id int, data []byte) (at.Response, error)
	SocketConnected(ctx context.Context, id int) (bool, at.Response, error)
	CloseSocket(ctx context.Context, id int) (at.Response, error)
}

var _ Device = (*modem.Modem)(nil)

// Connection is a TCP socket on the modem. The device is borrowed and must
// outlive the connection. Dropping a Connection without Close leaves the
// socket allocated on the modem.
type Connection struct {
	device Device
	socket *modem.Socket
	state  atomic.Int32
	// boundPort is the local port the modem accepted for Listen, 0 if none
	boundPort int
	// mu serializes operations on this connection
	mu sync.Mutex
}

// New creates the modem-side socket immediately. If the modem does not hand
// out a socket id no Connection is returned.
func New(ctx context.Context, device Device) (*Connection, error) {
	c := &Connection{
		device: device,
		socket: modem.NewSocket(modem.TCPOps),
	}
	c.setState(Created)

	id, err := device.CreateSocket(ctx, c.socket.Ops())
	if err != nil {
		return nil, fmt.Errorf("create socket: %w", err)
	}
	if err := c.socket.Bind(id); err != nil {
		return nil, fmt.Errorf("create socket: %w", err)
	}
	c.setState(Bound)

	return c, nil
}

// State returns the current state. It does not wait for an operation in
// progress, so a concurrent Connect is observed as Connecting.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// SocketID returns the id the modem assigned to this connection's socket.
func (c *Connection) SocketID() int {
	id, _ := c.socket.ID()
	return id
}

// Listen binds the socket to a local port and waits for inbound peers.
// Valid only from Bound. On rejection the connection stays Bound and the
// error is a *modem.RejectedError, so the caller may retry. A port the modem
// already accepted is not bound a second time on retry.
func (c *Connection) Listen(ctx context.Context, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect("listen", Bound); err != nil {
		return err
	}

	if c.boundPort == 0 || c.boundPort != port {
		resp, err := c.device.BindSocket(ctx, c.SocketID(), port)
		if err != nil {
			return err
		}
		if !resp.Success {
			return rejected("bind", resp)
		}
		c.boundPort = port
	}

	resp, err := c.device.StartListening(ctx, c.SocketID())
	if err != nil {
		return err
	}
	if !resp.Success {
		return rejected("listen", resp)
	}

	c.setState(Listening)
	return nil
}

// Connect opens the connection to host:port. Valid only from Bound. While
// the command runs the state is Connecting; on rejection it returns to Bound.
func (c *Connection) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect("connect", Bound); err != nil {
		return err
	}

	c.setState(Connecting)
	resp, err := c.device.ConnectSocket(ctx, c.SocketID(), host, port)
	if err != nil {
		c.setState(Bound)
		return err
	}
	if !resp.Success {
		c.setState(Bound)
		return rejected("connect", resp)
	}

	c.setState(Connected)
	return nil
}

// AwaitConnection polls the socket status once right away and then every
// cfg.Interval until a peer is connected, the
// polling budget in cfg runs out (ErrAwaitTimeout) or ctx is done. Valid
// only from Listening. The calling goroutine is blocked throughout.
func (c *Connection) AwaitConnection(ctx context.Context, cfg modem.PollConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect("await connection", Listening); err != nil {
		return err
	}

	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for polls := 1; ; polls++ {
		connected, _, err := c.device.SocketConnected(ctx, c.SocketID())
		if err != nil {
			// Fail fast on transport errors, keep polling on odd replies
			var chErr *modem.ChannelError
			if errors.As(err, &chErr) || errors.Is(err, modem.ErrAlreadyClosed) {
				return fmt.Errorf("poll socket status: %w", err)
			}
		} else if connected {
			c.setState(Connected)
			return nil
		}

		if polls >= cfg.MaxRetries {
			return fmt.Errorf("%w after %d polls", ErrAwaitTimeout, polls)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %v", ErrAwaitTimeout, cfg.Timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Send writes data to the peer. Valid only from Connected; the state does
// not change. A rejected send is reported as a *modem.RejectedError.
func (c *Connection) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.expect("send", Connected); err != nil {
		return err
	}

	resp, err := c.device.SendSocket(ctx, c.SocketID(), data)
	if err != nil {
		return err
	}
	if !resp.Success {
		return rejected("send", resp)
	}
	return nil
}

// Close releases the socket on the modem. Once AT+CSOCL has been answered
// the connection is Closed, even if the modem rejected the command, in which
// case the rejection is returned. Any other failure, such as ctx ending
// before the command was sent, leaves the state unchanged so Close can be
// retried.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == Closed {
		return &StateError{Op: "close", State: Closed}
	}

	resp, err := c.device.CloseSocket(ctx, c.SocketID())
	if err != nil {
		return err
	}
	c.setState(Closed)
	if !resp.Success {
		return rejected("close", resp)
	}
	return nil
}

func (c *Connection) String() string {
	return fmt.Sprintf("tcp socket %d (%s)", c.SocketID(), c.State())
}

func (c *Connection) expect(op string, want State) error {
	if s := c.State(); s != want {
		return &StateError{Op: op, State: s}
	}
	return nil
}

func (c *Connection) setState(s State) {
	c.state.Store(int32(s))
}

// rejected names the command by its echo, or by op when the modem was silent.
func rejected(op string, resp at.Response) error {
	cmd := resp.Echo
	if cmd == "" {
		cmd = op
	}
	return &modem.RejectedError{Command: cmd, Response: resp}
}
