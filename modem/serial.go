package modem

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"

	"i4.energy/across/nbiot/at"
)

const (
	// DefaultPort is the UART the SIM7020 HAT is wired to on a Raspberry Pi.
	DefaultPort = "/dev/serial0"
	// DefaultBaudRate is the factory baud rate of SIM7020 modules.
	DefaultBaudRate = 115200

	readBufSize = 256
	maxLineLen  = 4096
)

var (
	errNoPortName  = errors.New("serial port name is required")
	errInvalidBaud = errors.New("baud rate must be positive")
)

// serialPort is the subset of serial.Port used by SerialTransport.
type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

var _ serialPort = serial.Port(nil)

// SerialDialer opens a modem over a local serial port using go.bug.st/serial.
type SerialDialer struct {
	// PortName is the device path, for example "/dev/serial0" or "COM3".
	PortName string
	// BaudRate is used when Mode is nil. Zero selects DefaultBaudRate.
	BaudRate int
	// Mode overrides the full line settings. When nil the port is opened 8N1.
	Mode *serial.Mode
}

// Dial opens the serial port. Failures to open are reported as *OpenError.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.PortName == "" {
		return nil, &OpenError{Err: errNoPortName}
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		if baud < 0 {
			return nil, &OpenError{Port: d.PortName, Err: errInvalidBaud}
		}
		mode = &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, &OpenError{Port: d.PortName, Err: err}
	}

	return &SerialTransport{port: port, name: d.PortName}, nil
}

func (d SerialDialer) String() string {
	baud := d.BaudRate
	if d.Mode != nil {
		baud = d.Mode.BaudRate
	}
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return fmt.Sprintf("port: %s, baud: %d", d.PortName, baud)
}

// SerialTransport implements Transport on top of a serial port.
type SerialTransport struct {
	port serialPort
	name string
}

// Write discards any unread input before writing, so replies that arrived
// after the previous transaction timed out never reach the next one.
func (t *SerialTransport) Write(p []byte) (int, error) {
	if err := t.port.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("reset input buffer: %w", err)
	}
	return t.port.Write(p)
}

func (t *SerialTransport) Flush() error {
	return t.port.Drain()
}

// ReadLines reads until timeout elapses or a final result line (OK, ERROR,
// +CME ERROR, ...) completes the reply, whichever comes first.
func (t *SerialTransport) ReadLines(timeout time.Duration) ([]string, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, readBufSize)
	var data []byte

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return nil, fmt.Errorf("set read timeout: %w", err)
		}

		n, err := t.port.Read(chunk)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// read timed out
			break
		}
		data = append(data, chunk[:n]...)

		if !bytes.HasSuffix(data, []byte("\n")) {
			continue
		}
		lines, err := scanLines(data)
		if err != nil {
			return nil, err
		}
		if len(lines) > 0 && at.Classify(lines[len(lines)-1]) == at.TypeFinal {
			return lines, nil
		}
	}

	return scanLines(data)
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}

func (t *SerialTransport) String() string {
	return t.name
}

// scanLines splits raw modem output into trimmed, non-blank lines.
func scanLines(data []byte) ([]string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, readBufSize), maxLineLen)
	scanner.Split(at.Splitter)

	lines := []string{}
	for scanner.Scan() {
		line := at.TrimLine(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, ErrLineTooLong
		}
		return nil, err
	}
	return lines, nil
}
