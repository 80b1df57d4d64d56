package modem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/idpgw/at"
)

// Modem drives an IDP satellite modem over a half-duplex AT command link.
//
// Commands are queued by any goroutine through Submit or Command and sent
// one at a time by Loop, which is the only goroutine that touches the
// parser and the transport writer. At most one command is ever awaiting a
// response, which is what lets responses be matched to commands on a link
// without message framing.
type Modem struct {
	// transport is the byte stream to the modem (serial port or fake)
	transport Transport
	// config holds the settings with defaults applied
	config Config
	logger *slog.Logger

	// queue holds commands waiting to be written
	queue queue
	// router fans unsolicited lines out to URC
	router *router
	// wake nudges Loop when a command is queued
	wake chan struct{}
	// disconnected signals the consecutive timeout threshold
	disconnected chan struct{}
	// stop is closed by Close
	stop chan struct{}

	// Owned by Loop.
	// parser classifies received bytes against the active command
	parser *at.Parser
	// active is the command awaiting its response, nil when idle
	active *Request
	// timeouts counts consecutive timed out commands
	timeouts int
	// lost is set while the modem is considered disconnected
	lost bool

	// mu guards session and override
	mu sync.RWMutex
	// session is the framing observed after the last completed command
	session at.Session
	// override is a session set by SetSession, applied by Loop
	override *at.Session

	// running indicates that Loop has been started
	running atomic.Bool
	// closed indicates that Close has been called
	closed atomic.Bool
	// loops tracks the Loop goroutine
	loops sync.WaitGroup
	// readers tracks the transport reader goroutine
	readers sync.WaitGroup
}

// New dials the modem described by config. The returned Modem does nothing
// until Loop is started.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial modem: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	logger := config.Logger.With("component", "modem")
	return &Modem{
		transport:    transport,
		config:       config,
		logger:       logger,
		router:       newRouter(config.URCBuffer, logger),
		wake:         make(chan struct{}, 1),
		disconnected: make(chan struct{}, 1),
		stop:         make(chan struct{}),
		parser:       at.NewParser(config.Session),
		session:      config.Session,
	}, nil
}

// Loop reads the transport, sends queued commands and completes them. It
// must be called exactly once and runs until the context is cancelled, the
// transport fails or Close is called. Requests still pending when Loop
// returns are failed with the same cause; the Modem cannot be reused.
func (m *Modem) Loop(ctx context.Context) error {
	if m.closed.Load() {
		return ErrAlreadyClosed
	}
	if !m.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	m.loops.Add(1)
	defer m.loops.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte, 16)
	readErrs := make(chan error, 1)
	m.readers.Add(1)
	go m.listen(ctx, chunks, readErrs)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	m.pump()
	for {
		select {
		case <-ctx.Done():
			m.abort(ctx.Err())
			return ctx.Err()

		case <-m.stop:
			m.abort(ErrClosed)
			return nil

		case chunk := <-chunks:
			m.consume(chunk, len(chunks) > 0)
			m.pump()

		case err := <-readErrs:
			for len(chunks) > 0 {
				m.consume(<-chunks, len(chunks) > 0)
			}
			if errors.Is(err, io.EOF) {
				m.abort(io.EOF)
				return io.EOF
			}
			err = fmt.Errorf("read error: %w", err)
			m.abort(err)
			return err

		case <-m.wake:
			m.pump()

		case now := <-ticker.C:
			m.checkTimeout(now)
			m.pump()
		}
	}
}

// listen forwards raw reads to the loop. It blocks only on the transport.
func (m *Modem) listen(ctx context.Context, chunks chan<- []byte, errs chan<- error) {
	defer m.readers.Done()
	buf := make([]byte, 1024)
	for {
		n, err := m.transport.Read(buf)
		if n > 0 {
			select {
			case chunks <- bytes.Clone(buf[:n]):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case errs <- err:
			case <-ctx.Done():
			}
			return
		}
	}
}

// Submit queues cmd and returns immediately. The Result is delivered on
// the request's Done channel.
func (m *Modem) Submit(cmd string, opts ...Option) (*Request, error) {
	cmd = at.StripCommand(cmd)
	if cmd == "" {
		return nil, ErrEmptyCommand
	}
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if strings.EqualFold(cmd, at.CmdQuietOn) {
		return nil, ErrQuietUnsupported
	}

	req := newRequest(cmd, m.config.ATTimeout, m.config.Retries)
	for _, opt := range opts {
		opt(req)
	}
	if err := m.queue.push(req); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	m.notify()
	return req, nil
}

// Command submits cmd and waits for its Result. With a busy timeout
// configured, it gives up with ErrBusy if the command is still queued when
// the timeout expires; a command waiting for a retry is not abandoned.
// Cancelling ctx before the command was written fails it with ErrCancelled
// wrapping ctx.Err(). Once written it stays with the dispatcher and only
// the wait stops.
func (m *Modem) Command(ctx context.Context, cmd string, opts ...Option) (Result, error) {
	req, err := m.Submit(cmd, opts...)
	if err != nil {
		return Result{}, err
	}

	var busy <-chan time.Time
	if m.config.BusyTimeout > 0 {
		timer := time.NewTimer(m.config.BusyTimeout)
		defer timer.Stop()
		busy = timer.C
	}

	for {
		select {
		case res := <-req.Done():
			return res, res.Err
		case <-busy:
			busy = nil
			if m.queue.removeUnsent(req) {
				err := fmt.Errorf("%s: %w", req.command, ErrBusy)
				req.deliver(Result{Err: err})
				return Result{}, err
			}
		case <-ctx.Done():
			if m.queue.removeUnsent(req) {
				err := fmt.Errorf("%s: %w: %w", req.command, ErrCancelled, ctx.Err())
				req.deliver(Result{Err: err})
				return Result{}, err
			}
			m.Cancel(req)
			return Result{}, ctx.Err()
		}
	}
}

// Cancel removes a request that has not been sent yet and delivers
// ErrCancelled to it. It reports false once the request is in flight or
// finished.
func (m *Modem) Cancel(req *Request) bool {
	if !m.queue.remove(req) {
		return false
	}
	req.deliver(Result{Err: fmt.Errorf("%s: %w", req.command, ErrCancelled)})
	return true
}

// Pending returns the number of queued requests, excluding the one in
// flight.
func (m *Modem) Pending() int {
	return m.queue.len()
}

// Session returns the framing inferred after the last completed command.
func (m *Modem) Session() at.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// SetSession overrides the inferred framing before the next command is
// sent. It is used to flip the CRC expectation while probing a modem whose
// stored configuration is unknown.
func (m *Modem) SetSession(s at.Session) {
	m.mu.Lock()
	m.override = &s
	m.session = s
	m.mu.Unlock()
	m.notify()
}

// URC returns a read-only channel that receives unsolicited lines exactly
// as the modem sent them. The channel is buffered; lines are dropped when
// it is full.
func (m *Modem) URC() <-chan string {
	return m.router.ch
}

// Disconnected signals each time the consecutive timeout threshold is
// crossed. It fires again only after the modem has answered in between.
func (m *Modem) Disconnected() <-chan struct{} {
	return m.disconnected
}

// Close stops the loop, fails outstanding requests, waits for buffered
// writes to drain and closes the transport.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	close(m.stop)
	m.loops.Wait()

	for _, req := range m.queue.close() {
		deliverErr(req, ErrClosed)
	}

	if d, ok := m.transport.(drainer); ok {
		if err := d.Drain(); err != nil {
			m.logger.Warn("drain transport", "error", err)
		}
	}
	err := m.transport.Close()

	done := make(chan struct{})
	go func() {
		m.readers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		m.logger.Warn("transport reader still blocked after close")
	}
	return err
}

func (m *Modem) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Modem) consume(chunk []byte, more bool) {
	for i, b := range chunk {
		if ev, ok := m.parser.Feed(b, more || i < len(chunk)-1); ok {
			m.handle(ev)
		}
	}
}

func (m *Modem) handle(ev at.Event) {
	switch ev.Type {
	case at.EventOverflow:
		m.logger.Warn("line discarded", "error", ErrLineTooLong, "head", ev.Text)
		return
	case at.EventUnsolicited:
		m.unsolicited(ev.Text)
		return
	}

	req := m.active
	if req == nil {
		return
	}
	switch ev.Type {
	case at.EventEcho:
		req.echo = true
	case at.EventLine:
		req.lines = append(req.lines, ev.Text)
	case at.EventResult:
		req.result = ev.Text
		if ev.Terminal {
			m.complete(time.Now())
		}
	case at.EventCRC:
		req.crc = ev.Text
		m.complete(time.Now())
	}
}

func (m *Modem) unsolicited(line string) {
	if at.Classify(strings.TrimSpace(line)) == at.TypeCRC {
		// A checksum trailing a response already completed: the modem has
		// CRC on while we assumed it off.
		m.logger.Warn("unexpected response CRC", "line", strings.TrimSpace(line))
		s := m.parser.Session()
		s.CRC = true
		m.parser.SetSession(s)
		m.publishSession(s)
		return
	}
	m.router.route(line)
}

// pump sends the next queued request when nothing is in flight.
func (m *Modem) pump() {
	if m.active != nil {
		return
	}
	m.mu.Lock()
	if m.override != nil {
		m.parser.SetSession(*m.override)
		m.override = nil
	}
	m.mu.Unlock()

	req := m.queue.pop()
	if req == nil {
		return
	}

	wire := req.command
	if m.parser.Session().CRC {
		wire = at.AppendCRC(wire)
	}
	req.wire = wire
	req.attempts++
	req.state = StateSent
	req.sent = time.Now()
	m.active = req
	m.parser.Expect(wire)

	m.logger.Debug("command sent", "command", wire, "attempt", req.attempts)
	if _, err := m.transport.Write([]byte(wire + at.CR)); err != nil {
		m.active = nil
		m.parser.Idle()
		m.finish(req, Result{Err: fmt.Errorf("write command %q: %w", req.command, err)})
	}
}

func (m *Modem) complete(now time.Time) {
	req := m.active
	m.active = nil
	text := m.parser.ResponseText()
	m.parser.Idle()
	m.responded()

	req.state = StateCompleted
	req.latency = now.Sub(req.sent)

	if req.crc != "" && !at.ValidateCRC(text, req.crc) {
		m.logger.Warn("response CRC mismatch", "command", req.wire, "crc", req.crc, "attempt", req.attempts)
		if m.retry(req) {
			return
		}
		m.finish(req, req.resultWith(fmt.Errorf("%s: %w", req.command, ErrCRCMismatch)))
		return
	}

	if req.origin != nil {
		m.explain(req)
		return
	}

	if at.IsErrorResult(req.result) {
		// Read the reason before delivering, ahead of anything queued.
		diag := newRequest(at.CmdLastError, m.config.ATTimeout, m.config.Retries)
		diag.origin = req
		m.queue.pushFront(diag)
		return
	}

	s := m.parser.Session()
	s.Apply(req.command)
	m.parser.SetSession(s)
	m.publishSession(s)
	m.finish(req, req.resultWith(nil))
}

// explain delivers the request that failed with the code read back from
// the last error register.
func (m *Modem) explain(diag *Request) {
	origin := diag.origin
	code := at.ResultError
	if !at.IsErrorResult(diag.result) && len(diag.lines) > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(diag.lines[0])); err == nil && n != at.ResultOK {
			code = n
		}
	}
	err := newModemError(origin.command, code)
	m.logger.Debug("command rejected", "command", origin.command, "code", code, "reason", err.Name)
	origin.deliver(origin.resultWith(err))
}

func (m *Modem) checkTimeout(now time.Time) {
	req := m.active
	if req == nil || now.Sub(req.sent) < req.timeout {
		return
	}
	crcMissing := req.result != "" && req.crc == "" && m.parser.CRCExpected()
	m.active = nil
	m.parser.Idle()
	req.state = StateTimedOut

	if crcMissing {
		m.responded()
		s := m.parser.Session()
		s.CRC = false
		m.parser.SetSession(s)
		m.publishSession(s)
		m.logger.Warn("response CRC missing", "command", req.wire)
		m.finish(req, req.resultWith(fmt.Errorf("%s: %w", req.command, ErrCRCUnexpected)))
		return
	}

	m.timeouts++
	m.logger.Warn("command timed out", "command", req.wire, "attempt", req.attempts, "consecutive", m.timeouts)
	if m.timeouts >= m.config.DisconnectThreshold && !m.lost {
		m.lost = true
		m.logger.Error("modem not responding", "error", ErrDisconnected, "timeouts", m.timeouts)
		select {
		case m.disconnected <- struct{}{}:
		default:
		}
	}

	if m.retry(req) {
		return
	}
	m.finish(req, Result{Err: fmt.Errorf("%s: %w", req.command, ErrTimeout)})
}

func (m *Modem) retry(req *Request) bool {
	if req.retries <= 0 {
		return false
	}
	req.retries--
	req.reset()
	req.state = StateRetrying
	m.queue.pushFront(req)
	return true
}

// responded resets the timeout accounting after any terminal response.
func (m *Modem) responded() {
	m.timeouts = 0
	m.lost = false
}

func (m *Modem) finish(req *Request, res Result) {
	if req.origin != nil {
		// The last error query itself failed; report the original
		// rejection without a detailed code.
		origin := req.origin
		origin.deliver(origin.resultWith(newModemError(origin.command, at.ResultError)))
		return
	}
	if res.Err != nil {
		m.logger.Debug("command failed", "command", req.command, "error", res.Err)
	}
	req.deliver(res)
}

func (m *Modem) abort(cause error) {
	if req := m.active; req != nil {
		m.active = nil
		m.parser.Idle()
		deliverErr(req, cause)
	}
	for _, req := range m.queue.close() {
		deliverErr(req, cause)
	}
}

func (m *Modem) publishSession(s at.Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
}

func deliverErr(req *Request, err error) {
	if req.origin != nil {
		req = req.origin
	}
	req.deliver(Result{Err: err})
}
