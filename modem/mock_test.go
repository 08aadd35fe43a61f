package modem_test

import (
	"context"
	"slices"
	"testing"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/nbiot/at"
	"i4.energy/across/nbiot/modem"
)

type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Command expects cmd to be written once, flushed, and answered with lines.
func (b *MockSequenceBuilder) Command(cmd string, lines ...string) *MockSequenceBuilder {
	wire := []byte(cmd + at.CRLF)
	b.calls = append(b.calls,
		b.transport.EXPECT().Write(wire).Return(len(wire), nil),
		b.transport.EXPECT().Flush().Return(nil),
		b.transport.EXPECT().ReadLines(gomock.Any()).Return(lines, nil),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Command("AT", "AT", "OK")
}

func (b *MockSequenceBuilder) EchoOn() *MockSequenceBuilder {
	return b.Command("ATE1", "ATE1", "OK")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

func initMockCalls(transport *modem.MockTransport) []any {
	return NewMockSequence(transport).AT().EchoOn().Build()
}

// newMockModem returns an initialized modem on top of a mock transport.
// Expectations registered afterwards only see the caller's commands.
func newMockModem(t *testing.T, ctrl *gomock.Controller) (*modem.Modem, *modem.MockTransport) {
	t.Helper()

	mockTransport := modem.NewMockTransport(ctrl)
	mockDialer := modem.NewMockDialer(ctrl)

	gomock.InOrder(slices.Concat(
		[]any{
			mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil),
		},
		initMockCalls(mockTransport),
	)...)

	config, err := modem.NewConfigBuilder().
		WithDialer(mockDialer).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}

	mockTransport.EXPECT().Close().Return(nil).AnyTimes()
	t.Cleanup(func() { m.Close() })
	return m, mockTransport
}

// newTestModem returns an initialized modem on top of an in-memory transport.
func newTestModem(t *testing.T) (*modem.Modem, *modem.TestTransport) {
	t.Helper()

	transport := modem.NewTestTransport()
	config, err := modem.NewConfigBuilder().
		WithDialer(transport).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, transport
}
