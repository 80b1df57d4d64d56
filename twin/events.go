package twin

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind names a twin event.
type EventKind string

const (
	EventConnect               EventKind = "connect"
	EventDisconnect            EventKind = "disconnect"
	EventInitFailed            EventKind = "init_failed"
	EventRegistered            EventKind = "registered"
	EventBlocked               EventKind = "blocked"
	EventUnblocked             EventKind = "unblocked"
	EventBBWait                EventKind = "bb_wait"
	EventSatelliteStatusChange EventKind = "satellite_status_change"
	EventLowSNR                EventKind = "low_snr"
	EventSNRRecovered          EventKind = "snr_recovered"
	EventNewMTMessage          EventKind = "new_mt_message"
	EventMOMessageComplete     EventKind = "mo_message_complete"
	EventNewGNSSFix            EventKind = "new_gnss_fix"
	EventUnsolicitedSerial     EventKind = "unsolicited_serial"
	EventLocation              EventKind = "location"
	EventNotification          EventKind = "notification"
)

var eventKinds = []EventKind{
	EventConnect, EventDisconnect, EventInitFailed,
	EventRegistered, EventBlocked, EventUnblocked, EventBBWait,
	EventSatelliteStatusChange, EventLowSNR, EventSNRRecovered,
	EventNewMTMessage, EventMOMessageComplete, EventNewGNSSFix,
	EventUnsolicitedSerial, EventLocation, EventNotification,
}

// EventKinds lists every event the twin raises.
func EventKinds() []EventKind {
	return slices.Clone(eventKinds)
}

func (k EventKind) Valid() bool {
	return slices.Contains(eventKinds, k)
}

// Event is delivered to callbacks and subscribers. Data depends on Kind:
// MOResult, []MTStatus, []string (NMEA), Notification, string (raw line)
// or error.
type Event struct {
	Kind   EventKind `json:"event"`
	Time   time.Time `json:"time"`
	Status SatStatus `json:"status"`
	Data   any       `json:"data,omitempty"`
}

// broker fans events out to subscribers without blocking the publisher.
type broker struct {
	mu      sync.RWMutex
	pool    map[chan Event]struct{}
	dropped atomic.Uint64
}

func newBroker() *broker {
	return &broker{pool: make(map[chan Event]struct{})}
}

func (b *broker) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.pool {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *broker) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 100
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.pool[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.pool[ch]; ok {
			delete(b.pool, ch)
			close(ch)
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.pool {
		delete(b.pool, ch)
		close(ch)
	}
}

// callQueue runs callbacks in order on its own goroutine so a callback may
// call back into the twin. It never blocks the producer.
type callQueue struct {
	mu      sync.Mutex
	pending []func()
	signal  chan struct{}
}

func newCallQueue() *callQueue {
	return &callQueue{signal: make(chan struct{}, 1)}
}

func (q *callQueue) push(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// run executes callbacks until stop is closed and the queue is drained.
func (q *callQueue) run(stop <-chan struct{}) {
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-q.signal:
		case <-stop:
			q.mu.Lock()
			empty := len(q.pending) == 0
			q.mu.Unlock()
			if empty {
				return
			}
		}
	}
}
