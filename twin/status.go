package twin

import (
	"fmt"
	"time"
)

// ControlState is the satellite control state reported by trace class 3,
// subclass 1.
type ControlState int

const (
	StateStopped ControlState = iota
	StateWaitingGNSSFix
	StateStartingSearch
	StateBeamSearch
	StateBeamFound
	StateBeamAcquired
	StateBeamSwitch
	StateRegistering
	StateReceiveOnly
	StateBulletinBoard
	StateActive
	StateBlocked
	StateConfirmPreviousBeam
	StateConfirmRequestedBeam
	StateConnectConfirmedBeam
)

var controlStateNames = [...]string{
	"Stopped",
	"Waiting for GNSS fix",
	"Starting search",
	"Beam search",
	"Beam found",
	"Beam acquired",
	"Beam switch in progress",
	"Registration in progress",
	"Receive only",
	"Downloading Bulletin Board",
	"Active",
	"Blocked",
	"Confirm previously registered beam",
	"Confirm requested beam",
	"Connect to confirmed beam",
}

func (s ControlState) Valid() bool {
	return s >= 0 && int(s) < len(controlStateNames)
}

func (s ControlState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("ControlState(%d)", int(s))
	}
	return controlStateNames[s]
}

func (s ControlState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DefaultLowSNRThreshold is the C/N0 in dB-Hz at or below which the link is
// considered marginal.
const DefaultLowSNRThreshold = 38.0

// SatStatus is the mirrored satellite status. Registered and Blocked are
// never both true, and BBWait implies !Registered.
type SatStatus struct {
	State      ControlState `json:"state"`
	Registered bool         `json:"registered"`
	Blocked    bool         `json:"blocked"`
	BBWait     bool         `json:"bbWait"`
	LowSNR     bool         `json:"lowSnr"`
	CN0        float64      `json:"cn0"`
}

// satTracker applies polled control states to the status and statistics.
// Only the twin's run goroutine touches it.
type satTracker struct {
	status    SatStatus
	stats     *Statistics
	threshold float64

	gnssStart  time.Time
	regStart   time.Time
	bbStart    time.Time
	blockStart time.Time
}

func newSatTracker(stats *Statistics, threshold float64) *satTracker {
	// unknown signal quality starts out as low
	return &satTracker{
		status:    SatStatus{LowSNR: true},
		stats:     stats,
		threshold: threshold,
	}
}

// update folds one poll result in and returns the events it raises.
func (t *satTracker) update(next ControlState, cn0 float64, now time.Time) []EventKind {
	var events []EventKind
	prev := t.status.State
	if next != prev {
		events = t.transition(prev, next, now)
	}

	switch {
	case cn0 <= t.threshold && !t.status.LowSNR:
		t.status.LowSNR = true
		events = append(events, EventLowSNR)
	case cn0 > t.threshold && t.status.LowSNR:
		t.status.LowSNR = false
		events = append(events, EventSNRRecovered)
	}
	t.status.CN0 = cn0
	t.stats.AvgCN0 = foldFloat(t.stats.AvgCN0, cn0)
	return events
}

func (t *satTracker) transition(prev, next ControlState, now time.Time) []EventKind {
	var events []EventKind
	t.status.State = next
	s := &t.status

	switch next {
	case StateWaitingGNSSFix:
		t.gnssStart = now
		t.stats.GNSSFixes++
	case StateRegistering:
		s.Registered = false
		t.regStart = now
	case StateBulletinBoard:
		s.BBWait = true
		s.Registered = false
		t.bbStart = now
		t.stats.BBAcquisitions++
		events = append(events, EventBBWait)
	case StateActive:
		if s.Blocked {
			t.stats.AvgBlockageDuration = foldDuration(t.stats.AvgBlockageDuration, now.Sub(t.blockStart))
			events = append(events, EventUnblocked)
		}
		if !s.Registered {
			s.Registered = true
			if prev != StateStopped {
				var d time.Duration
				if !t.regStart.IsZero() {
					d = now.Sub(t.regStart)
				}
				t.stats.Registrations++
				t.stats.AvgRegistrationDuration = foldDuration(t.stats.AvgRegistrationDuration, d)
				events = append(events, EventRegistered)
			}
		}
		s.Blocked = false
		s.BBWait = false
	case StateBlocked:
		s.Blocked = true
		s.Registered = false
		t.blockStart = now
		t.stats.Blockages++
		events = append(events, EventBlocked)
	}

	completed := next != StateStopped && next != StateBlocked
	if prev == StateWaitingGNSSFix && completed && !t.gnssStart.IsZero() {
		t.stats.AvgGNSSFixDuration = foldDuration(t.stats.AvgGNSSFixDuration, now.Sub(t.gnssStart))
		events = append(events, EventNewGNSSFix)
	}
	if prev == StateBulletinBoard && completed && !t.bbStart.IsZero() {
		t.stats.AvgBBDuration = foldDuration(t.stats.AvgBBDuration, now.Sub(t.bbStart))
	}

	if len(events) == 0 {
		events = append(events, EventSatelliteStatusChange)
	}
	return events
}
