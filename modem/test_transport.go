package modem

import (
	"context"
	"strings"
	"sync"
	"time"

	"i4.energy/across/nbiot/at"
)

// TestTransport is an in-memory Transport with scripted replies, for tests.
// It doubles as its own Dialer.
//
// Each Write looks up the reply registered for the command and queues it for
// the following ReadLines. Commands without a reply behave like a silent
// modem. TestTransport counts writes and tracks how many transactions overlap
// between Write and the end of ReadLines.
type TestTransport struct {
	// Delay is slept inside ReadLines to widen the window in which
	// overlapping transactions would be observed.
	Delay time.Duration

	mu          sync.Mutex
	replies     map[string][]string
	pending     []string
	commands    []string
	inFlight    int
	maxInFlight int
	closed      bool
}

// NewTestTransport creates a new test transport that already answers the
// initialization sequence performed by New.
func NewTestTransport() *TestTransport {
	t := &TestTransport{replies: make(map[string][]string)}
	t.ReplyOK(at.CmdAt)
	t.ReplyOK(at.CmdEchoOn)
	return t
}

// Reply registers the raw reply for cmd, echo included. Reply lines are
// split the same way a serial port capture would be.
func (t *TestTransport) Reply(cmd string, raw string) {
	lines, _ := scanLines([]byte(raw))
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[cmd] = lines
}

// ReplyOK registers an echo, the given body lines and a final OK for cmd.
func (t *TestTransport) ReplyOK(cmd string, body ...string) {
	t.reply(cmd, body, at.OK)
}

// ReplyError registers an echo, the given body lines and a final ERROR for cmd.
func (t *TestTransport) ReplyError(cmd string, body ...string) {
	t.reply(cmd, body, at.ERROR)
}

func (t *TestTransport) reply(cmd string, body []string, final string) {
	var b strings.Builder
	b.WriteString(cmd + "\r" + at.CRLF)
	for _, line := range body {
		b.WriteString(at.CRLF + line + at.CRLF)
	}
	b.WriteString(at.CRLF + final + at.CRLF)
	t.Reply(cmd, b.String())
}

func (t *TestTransport) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TestTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrAlreadyClosed
	}

	t.inFlight++
	if t.inFlight > t.maxInFlight {
		t.maxInFlight = t.inFlight
	}

	cmd := strings.TrimSuffix(string(p), at.CRLF)
	t.commands = append(t.commands, cmd)
	t.pending = t.replies[cmd]
	return len(p), nil
}

func (t *TestTransport) Flush() error {
	return nil
}

func (t *TestTransport) ReadLines(timeout time.Duration) ([]string, error) {
	delay := t.Delay
	if delay > timeout {
		delay = timeout
	}
	time.Sleep(delay)

	t.mu.Lock()
	defer t.mu.Unlock()
	lines := append([]string{}, t.pending...)
	t.pending = nil
	if t.inFlight > 0 {
		t.inFlight--
	}
	return lines, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Commands returns every command written so far, without terminators.
func (t *TestTransport) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.commands...)
}

// Writes returns the number of commands written so far.
func (t *TestTransport) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.commands)
}

// MaxInFlight returns the highest number of overlapping transactions seen.
func (t *TestTransport) MaxInFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxInFlight
}
