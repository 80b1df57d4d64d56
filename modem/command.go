package modem

import (
	"strings"
	"sync"
	"time"

	"i4.energy/across/idpgw/at"
)

// State is the lifecycle position of a Request.
type State int

const (
	StateQueued State = iota
	StateSent
	StateCompleted
	StateTimedOut
	StateRetrying
	StateDelivered
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateSent:
		return "sent"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed out"
	case StateRetrying:
		return "retrying"
	case StateDelivered:
		return "delivered"
	}
	return "unknown"
}

// Option customises a single submitted command.
type Option func(*Request)

// WithTimeout overrides the configured AT timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Request) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRetries sets how many times a timed out or corrupted command is
// resent before failing.
func WithRetries(n int) Option {
	return func(r *Request) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithPriority places the command at the head of the queue.
func WithPriority() Option {
	return func(r *Request) {
		r.priority = true
	}
}

// Result is delivered exactly once for every submitted Request.
type Result struct {
	Command string
	// Lines holds the intermediate response lines, without echo, result
	// code or checksum.
	Lines []string
	// Code is the final result as received, "OK" or "0" on success.
	Code     string
	Err      error
	Attempts int
	// Latency is the round trip of the final attempt.
	Latency time.Duration
}

// Line returns the first response line carrying prefix, with the prefix
// removed.
func (r Result) Line(prefix string) (string, bool) {
	for _, l := range r.Lines {
		if strings.HasPrefix(l, prefix) {
			return at.TrimPrefix(l, prefix), true
		}
	}
	return "", false
}

// Text joins the response lines.
func (r Result) Text() string {
	return strings.Join(r.Lines, "\n")
}

// Request is a command travelling through the dispatcher. Its fields are
// owned by the loop goroutine once submitted.
type Request struct {
	command  string
	timeout  time.Duration
	retries  int
	priority bool

	state     State
	submitted time.Time
	sent      time.Time
	attempts  int
	wire      string
	latency   time.Duration

	echo   bool
	lines  []string
	result string
	crc    string

	// origin is set on the diagnostic last-error query and points to the
	// request whose error result it explains.
	origin *Request

	done chan Result
	once sync.Once
}

func newRequest(cmd string, timeout time.Duration, retries int) *Request {
	return &Request{
		command:   cmd,
		timeout:   timeout,
		retries:   retries,
		submitted: time.Now(),
		done:      make(chan Result, 1),
	}
}

// Command returns the command line as submitted.
func (r *Request) Command() string {
	return r.command
}

// Done returns a channel that receives the Result once.
func (r *Request) Done() <-chan Result {
	return r.done
}

func (r *Request) reset() {
	r.echo = false
	r.lines = nil
	r.result = ""
	r.crc = ""
}

func (r *Request) deliver(res Result) {
	r.once.Do(func() {
		r.state = StateDelivered
		res.Command = r.command
		res.Attempts = r.attempts
		r.done <- res
	})
}

func (r *Request) resultWith(err error) Result {
	return Result{Lines: r.lines, Code: r.result, Err: err, Latency: r.latency}
}
