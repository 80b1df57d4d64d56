package modem

import (
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that simulates a modem behind a blocking
// transport using channels. Reads block until data is queued, like a real
// serial port, and every written command line can be answered by a
// responder function.
type TestTransport struct {
	mu        sync.Mutex
	readChan  chan []byte
	closed    bool
	writes    []string
	responder func(cmd string) string
	rest      []byte // read side only
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 256),
	}
}

// Respond installs fn to answer each written command. fn receives the
// command line without the trailing <cr> and returns the raw bytes the
// modem sends back, or "" to stay silent.
func (t *TestTransport) Respond(fn func(cmd string) string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responder = fn
}

// Writes returns the command lines written so far.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	cmd := strings.TrimSuffix(string(p), "\r")
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	t.writes = append(t.writes, cmd)
	responder := t.responder
	t.mu.Unlock()

	if responder != nil {
		if resp := responder(cmd); resp != "" {
			t.SendData(resp)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.rest) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.rest = data
	}
	n = copy(p, t.rest)
	t.rest = t.rest[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}
