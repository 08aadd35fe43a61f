package modem

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakePort replays canned chunks. An empty queue behaves like a read timeout.
type fakePort struct {
	chunks  []string
	calls   []string
	written []byte
	readErr error
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.calls = append(p.calls, "read")
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	if n < len(p.chunks[0]) {
		p.chunks[0] = p.chunks[0][n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.calls = append(p.calls, "write")
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Drain() error {
	p.calls = append(p.calls, "drain")
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.calls = append(p.calls, "reset")
	p.chunks = nil
	return nil
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) Close() error {
	p.calls = append(p.calls, "close")
	return nil
}

func TestSerialTransport_ReadLines(t *testing.T) {
	t.Run("Stops at the final result line", func(t *testing.T) {
		port := &fakePort{chunks: []string{
			"AT+CSOC=1,1,1\r\r\n",
			"\r\n+CSOC: 0\r\n",
			"\r\nOK\r\n",
			"+CSONMI: 0,2,AA\r\n",
		}}
		tr := &SerialTransport{port: port}

		lines, err := tr.ReadLines(time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"AT+CSOC=1,1,1", "+CSOC: 0", "OK"}
		if !slices.Equal(lines, want) {
			t.Errorf("expected %q, got %q", want, lines)
		}
		if len(port.chunks) != 1 {
			t.Errorf("expected the trailing URC to stay unread, %d chunks left", len(port.chunks))
		}
	})

	t.Run("Returns what arrived before the timeout", func(t *testing.T) {
		port := &fakePort{chunks: []string{"AT+CGMR\r\r\nRevision:1752B05", "SIM7020E"}}
		tr := &SerialTransport{port: port}

		lines, err := tr.ReadLines(time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"AT+CGMR", "Revision:1752B05SIM7020E"}
		if !slices.Equal(lines, want) {
			t.Errorf("expected %q, got %q", want, lines)
		}
	})

	t.Run("Silent modem yields no lines", func(t *testing.T) {
		tr := &SerialTransport{port: &fakePort{}}

		lines, err := tr.ReadLines(time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lines) != 0 {
			t.Errorf("expected no lines, got %q", lines)
		}
	})

	t.Run("Zero timeout does not read", func(t *testing.T) {
		port := &fakePort{chunks: []string{"OK\r\n"}}
		tr := &SerialTransport{port: port}

		lines, err := tr.ReadLines(0)
		if err != nil || len(lines) != 0 {
			t.Errorf("expected nothing, got %q, %v", lines, err)
		}
		if slices.Contains(port.calls, "read") {
			t.Error("expected no read with zero timeout")
		}
	})

	t.Run("Read error", func(t *testing.T) {
		readErr := errors.New("port closed")
		tr := &SerialTransport{port: &fakePort{readErr: readErr}}

		if _, err := tr.ReadLines(time.Second); !errors.Is(err, readErr) {
			t.Errorf("expected read error, got %v", err)
		}
	})

	t.Run("Line too long", func(t *testing.T) {
		tr := &SerialTransport{port: &fakePort{chunks: []string{strings.Repeat("A", maxLineLen+1) + "\r\n"}}}

		if _, err := tr.ReadLines(time.Second); !errors.Is(err, ErrLineTooLong) {
			t.Errorf("expected ErrLineTooLong, got %v", err)
		}
	})
}

func TestSerialTransport_WriteResetsInput(t *testing.T) {
	port := &fakePort{chunks: []string{"OK\r\n"}}
	tr := &SerialTransport{port: port}

	if _, err := tr.Write([]byte("AT+CSQ\r\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"reset", "write", "drain"}; !slices.Equal(port.calls, want) {
		t.Errorf("expected calls %q, got %q", want, port.calls)
	}
	if len(port.chunks) != 0 {
		t.Error("expected stale input to be discarded")
	}
	if string(port.written) != "AT+CSQ\r\n" {
		t.Errorf("unexpected bytes written: %q", port.written)
	}
}

func TestSerialDialer_Dial_EmptyPortName(t *testing.T) {
	dialer := SerialDialer{
		PortName: "",
	}

	transport, err := dialer.Dial(context.Background())

	if transport != nil {
		t.Error("expected nil transport for empty port name")
	}
	var openErr *OpenError
	if !errors.As(err, &openErr) || !errors.Is(err, errNoPortName) {
		t.Fatalf("expected *OpenError for empty port name, got %v", err)
	}
	if err.Error() != "modem: serial port name is required" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestSerialDialer_Dial_NilContext(t *testing.T) {
	dialer := SerialDialer{
		PortName: "/dev/ttyUSB0",
	}

	//lint:ignore SA1012 nil context is the case under test
	transport, err := dialer.Dial(nil)

	if err == nil {
		t.Error("expected error for nil context")
	}
	if transport != nil {
		t.Error("expected nil transport for nil context")
	}
}

func TestSerialDialer_Dial_ContextCanceled(t *testing.T) {
	dialer := SerialDialer{
		PortName: "/dev/nonexistent",
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport, err := dialer.Dial(ctx)

	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if transport != nil {
		t.Error("expected nil transport for canceled context")
	}
}

func TestSerialDialer_Dial_InvalidBaudRate(t *testing.T) {
	dialer := SerialDialer{
		PortName: "/dev/nonexistent",
		BaudRate: -9600,
	}

	_, err := dialer.Dial(context.Background())
	if !errors.Is(err, errInvalidBaud) {
		t.Errorf("expected errInvalidBaud, got %v", err)
	}
}

func TestSerialDialer_Dial_WithMode(t *testing.T) {
	dialer := SerialDialer{
		PortName: "/dev/nonexistent",
		Mode: &serial.Mode{
			BaudRate: 9600,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		},
	}

	transport, err := dialer.Dial(context.Background())

	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *OpenError for non-existent port, got %v", err)
	}
	if openErr.Port != "/dev/nonexistent" {
		t.Errorf("expected port in error, got %q", openErr.Port)
	}
	if transport != nil {
		t.Error("expected nil transport for non-existent port")
	}
}

func TestSerialDialer_String(t *testing.T) {
	tests := []struct {
		dialer SerialDialer
		want   string
	}{
		{dialer: SerialDialer{PortName: "/dev/serial0"}, want: "port: /dev/serial0, baud: 115200"},
		{dialer: SerialDialer{PortName: "/dev/ttyS0", BaudRate: 9600}, want: "port: /dev/ttyS0, baud: 9600"},
		{dialer: SerialDialer{PortName: "COM3", Mode: &serial.Mode{BaudRate: 57600}}, want: "port: COM3, baud: 57600"},
	}

	for _, tt := range tests {
		if got := tt.dialer.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestScanLines(t *testing.T) {
	lines, err := scanLines([]byte("\r\nAT+CSQ\r\r\n\r\n+CSQ: 20,0 \r\n\r\nOK\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"AT+CSQ", "+CSQ: 20,0", "OK"}
	if !slices.Equal(lines, want) {
		t.Errorf("expected %q, got %q", want, lines)
	}
}
