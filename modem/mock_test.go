package modem_test

import (
	"io"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/idpgw/modem"
)

// MockSequenceBuilder scripts a MockTransport as a modem: each expected
// command write queues the reply that the next Read returns.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	replies   chan string
	closed    chan struct{}
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		replies:   make(chan string, 16),
		closed:    make(chan struct{}),
		calls:     []any{},
	}
}

func (b *MockSequenceBuilder) Expect(cmd, reply string) *MockSequenceBuilder {
	wire := cmd + "\r"
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire)).DoAndReturn(func(p []byte) (int, error) {
			if reply != "" {
				b.replies <- reply
			}
			return len(p), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) Restore() *MockSequenceBuilder {
	return b.Expect("ATZ", "ATZ\r\r\nOK\r\n")
}

func (b *MockSequenceBuilder) MobileID(id string) *MockSequenceBuilder {
	return b.Expect("AT+GSN", "AT+GSN\r\r\n+GSN: "+id+"\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Rejected(cmd string, code string) *MockSequenceBuilder {
	return b.Expect(cmd, cmd+"\r\r\nERROR\r\n").
		Expect("ATS80?", "ATS80?\r\r\n"+code+"\r\n\r\nOK\r\n")
}

// Build returns the ordered write expectations. Reads and Close are
// expected in any order.
func (b *MockSequenceBuilder) Build() []any {
	b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
		select {
		case reply := <-b.replies:
			return copy(p, reply), nil
		case <-b.closed:
			return 0, io.EOF
		}
	}).AnyTimes()
	b.transport.EXPECT().Close().DoAndReturn(func() error {
		close(b.closed)
		return nil
	})
	return b.calls
}
