// Package twin keeps a stateful model of an IDP modem on top of the AT
// command dispatcher: identity, S-registers, satellite status and message
// queues. All state is owned by the goroutine running Run; caller
// operations and command results are handed to it as closures.
package twin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/idpgw/at"
	"i4.energy/across/idpgw/modem"
)

//go:generate go tool mockgen -destination=mocks_test.go -package=twin . Commander

// Commander issues AT commands. *modem.Modem satisfies it.
type Commander interface {
	Command(ctx context.Context, cmd string, opts ...modem.Option) (modem.Result, error)
	Session() at.Session
	SetSession(s at.Session)
	Disconnected() <-chan struct{}
	URC() <-chan string
}

// Phase is the connection lifecycle of the twin.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseInitializing
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Identity is read from the modem during initialization.
type Identity struct {
	MobileID  string `json:"mobileId"`
	Firmware  string `json:"firmware"`
	Hardware  string `json:"hardware"`
	ATVersion string `json:"atVersion"`
}

// State is a point in time copy of the twin.
type State struct {
	Phase         Phase          `json:"phase"`
	Identity      Identity       `json:"identity"`
	Session       string         `json:"session"`
	Satellite     SatStatus      `json:"satellite"`
	Statistics    Statistics     `json:"statistics"`
	Registers     map[string]int `json:"registers"`
	Notifications []string       `json:"notifications"`
	PendingMO     []string       `json:"pendingMO"`
	PendingMT     []MTStatus     `json:"pendingMT"`
	Tracking      time.Duration  `json:"tracking"`
}

type op struct {
	fn   func() error
	done chan error
}

// Twin is the digital twin of one modem.
type Twin struct {
	cmd    Commander
	config Config
	logger *slog.Logger
	events *broker
	calls  *callQueue

	cbMu        sync.RWMutex
	callbacks   map[EventKind][]func(Event)
	mtCallbacks map[uint8]func(MTMessage, error)

	ops     chan op
	results chan func()
	stopped chan struct{}
	running atomic.Bool
	workers sync.WaitGroup
	ctx     context.Context

	// owned by the run goroutine
	phase         Phase
	epoch         int
	identity      Identity
	session       at.Session
	registers     *Registers
	sat           *satTracker
	stats         Statistics
	notifications Notification
	mo            map[string]*pendingMO
	mt            map[string]*pendingMT
	inflight      map[string]bool
	locating      bool
	tracking      time.Duration
	timers        automation
}

// New creates a Twin. Call Run to connect and keep it up to date.
func New(config Config) (*Twin, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	t := &Twin{
		cmd:         config.Commander,
		config:      config,
		logger:      config.Logger.With("component", "twin"),
		events:      newBroker(),
		calls:       newCallQueue(),
		callbacks:   make(map[EventKind][]func(Event)),
		mtCallbacks: make(map[uint8]func(MTMessage, error)),
		ops:         make(chan op),
		results:     make(chan func()),
		stopped:     make(chan struct{}),
		registers:   NewRegisters(),
		mo:          make(map[string]*pendingMO),
		mt:          make(map[string]*pendingMT),
		inflight:    make(map[string]bool),
		tracking:    config.TrackingInterval,
	}
	t.sat = newSatTracker(&t.stats, config.LowSNRThreshold)
	return t, nil
}

// Run connects to the modem and services automation timers, caller
// operations and command results until ctx is cancelled. A Twin runs once.
func (t *Twin) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	t.ctx = ctx

	var callbacks sync.WaitGroup
	callbacks.Add(1)
	go func() {
		defer callbacks.Done()
		t.calls.run(t.stopped)
	}()
	defer func() {
		cancel()
		t.timers.stop()
		close(t.stopped)
		t.workers.Wait()
		callbacks.Wait()
		t.events.close()
	}()

	urc := t.cmd.URC()
	t.connect(0)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.cmd.Disconnected():
			t.lost()
		case line, ok := <-urc:
			if !ok {
				urc = nil
				continue
			}
			t.emit(EventUnsolicitedSerial, strings.TrimSpace(line))
		case o := <-t.ops:
			o.done <- o.fn()
		case apply := <-t.results:
			apply()
		case <-t.timers.status.C():
			t.pollStatus()
		case <-t.timers.mo.C():
			t.pollMO()
		case <-t.timers.mt.C():
			t.pollMT()
		case <-t.timers.events.C():
			t.pollEvents()
		case <-t.timers.tracking.C():
			t.track()
		}
	}
}

// do runs fn on the run goroutine and waits for it.
func (t *Twin) do(ctx context.Context, fn func() error) error {
	o := op{fn: fn, done: make(chan error, 1)}
	select {
	case t.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.stopped:
		return ErrStopped
	}
	select {
	case err := <-o.done:
		return err
	case <-t.stopped:
		return ErrStopped
	}
}

// post hands fn to the run goroutine without waiting for it to run. It
// must not be called from the run goroutine.
func (t *Twin) post(fn func()) {
	select {
	case t.results <- fn:
	case <-t.stopped:
	}
}

// spawn runs work off the run goroutine and applies the closure it
// returns on the run goroutine.
func (t *Twin) spawn(work func(ctx context.Context) func()) {
	t.workers.Add(1)
	go func() {
		defer t.workers.Done()
		if apply := work(t.ctx); apply != nil {
			t.post(apply)
		}
	}()
}

// command issues cmd in the background and calls handle with the result
// on the run goroutine. A command still outstanding is not issued twice.
func (t *Twin) command(cmd string, handle func(modem.Result, error), opts ...modem.Option) {
	if t.inflight[cmd] {
		t.logger.Debug("command still outstanding", "command", cmd)
		return
	}
	t.inflight[cmd] = true
	t.spawn(func(ctx context.Context) func() {
		res, err := t.cmd.Command(ctx, cmd, opts...)
		return func() {
			delete(t.inflight, cmd)
			t.observe(cmd, res, err)
			handle(res, err)
		}
	})
}

// exec issues cmd from a caller goroutine and accounts for it.
func (t *Twin) exec(ctx context.Context, cmd string, opts ...modem.Option) (modem.Result, error) {
	res, err := t.cmd.Command(ctx, cmd, opts...)
	if t.running.Load() {
		t.post(func() { t.observe(cmd, res, err) })
	}
	return res, err
}

func (t *Twin) observe(cmd string, res modem.Result, err error) {
	switch {
	case err == nil:
		t.stats.recordLatency(cmd, res.Latency)
	case isTimeout(err):
		t.stats.ATNonResponses++
	}
}

// emit publishes an event and queues the matching callbacks.
func (t *Twin) emit(kind EventKind, data any) {
	ev := Event{Kind: kind, Time: t.config.now(), Status: t.sat.status, Data: data}
	if kind != EventUnsolicitedSerial {
		t.logger.Info("event", "event", kind, "state", t.sat.status.State)
	}
	t.events.publish(ev)

	t.cbMu.RLock()
	fns := t.callbacks[kind]
	t.cbMu.RUnlock()
	for _, fn := range fns {
		fn := fn
		t.calls.push(func() { fn(ev) })
	}
}

// OnEvent registers fn for kind. Callbacks run in order on a dedicated
// goroutine and may call back into the twin.
func (t *Twin) OnEvent(kind EventKind, fn func(Event)) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	t.callbacks[kind] = append(t.callbacks[kind], fn)
	return nil
}

// Subscribe returns a channel receiving every event and a function that
// ends the subscription. Events are dropped when the channel is full.
func (t *Twin) Subscribe(buffer int) (<-chan Event, func()) {
	return t.events.subscribe(buffer)
}

// OnMTMessage registers fn for mobile terminated messages with the given
// SIN. Such messages are retrieved automatically as soon as the modem
// reports them complete.
func (t *Twin) OnMTMessage(sin int, fn func(MTMessage, error)) error {
	if sin < 0 || sin > 255 {
		return fmt.Errorf("%w: %d", ErrInvalidSIN, sin)
	}
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	t.mtCallbacks[uint8(sin)] = fn
	return nil
}

// RemoveMTCallback removes the callback for sin.
func (t *Twin) RemoveMTCallback(sin int) {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	delete(t.mtCallbacks, uint8(sin))
}

func (t *Twin) mtCallback(sin int) func(MTMessage, error) {
	t.cbMu.RLock()
	defer t.cbMu.RUnlock()
	return t.mtCallbacks[uint8(sin)]
}

// Snapshot returns a copy of the twin state.
func (t *Twin) Snapshot(ctx context.Context) (State, error) {
	var s State
	err := t.do(ctx, func() error {
		s = State{
			Phase:         t.phase,
			Identity:      t.identity,
			Session:       t.session.String(),
			Satellite:     t.sat.status,
			Statistics:    t.stats,
			Registers:     t.registers.Snapshot(),
			Notifications: t.notifications.Names(),
			Tracking:      t.tracking,
		}
		for name := range t.mo {
			s.PendingMO = append(s.PendingMO, name)
		}
		for _, p := range t.mt {
			s.PendingMT = append(s.PendingMT, p.status)
		}
		return nil
	})
	return s, err
}

func (t *Twin) setPhase(p Phase) {
	if t.phase == p {
		return
	}
	t.logger.Info("phase change", "from", t.phase, "to", p)
	t.phase = p
}

func (t *Twin) ready() error {
	if t.phase != PhaseReady {
		return fmt.Errorf("%w: %s", ErrNotReady, t.phase)
	}
	return nil
}
