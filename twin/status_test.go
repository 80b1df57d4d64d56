package twin

import (
	"slices"
	"testing"
	"time"
)

func TestSatTrackerTransitions(t *testing.T) {
	t0 := time.Unix(1712345678, 0)
	at := func(s int) time.Time { return t0.Add(time.Duration(s) * time.Second) }

	tests := []struct {
		name  string
		steps []ControlState
		want  [][]EventKind
	}{
		{
			name:  "boot straight to active",
			steps: []ControlState{StateActive},
			want:  [][]EventKind{{EventSatelliteStatusChange}},
		},
		{
			name:  "gnss fix then registration",
			steps: []ControlState{StateWaitingGNSSFix, StateBeamSearch, StateRegistering, StateActive, StateActive},
			want: [][]EventKind{
				{EventSatelliteStatusChange},
				{EventNewGNSSFix},
				{EventSatelliteStatusChange},
				{EventRegistered},
				nil,
			},
		},
		{
			name:  "gnss fix straight to active",
			steps: []ControlState{StateWaitingGNSSFix, StateActive},
			want:  [][]EventKind{{EventSatelliteStatusChange}, {EventRegistered, EventNewGNSSFix}},
		},
		{
			name:  "blockage",
			steps: []ControlState{StateActive, StateBlocked, StateActive},
			want: [][]EventKind{
				{EventSatelliteStatusChange},
				{EventBlocked},
				{EventUnblocked, EventRegistered},
			},
		},
		{
			name:  "bulletin board",
			steps: []ControlState{StateActive, StateBulletinBoard, StateActive},
			want: [][]EventKind{
				{EventSatelliteStatusChange},
				{EventBBWait},
				{EventRegistered},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stats Statistics
			tr := newSatTracker(&stats, DefaultLowSNRThreshold)
			tr.status.LowSNR = false
			for i, state := range tt.steps {
				got := tr.update(state, 45, at(i*10))
				if !slices.Equal(got, tt.want[i]) {
					t.Fatalf("step %d (%s): events %v, want %v", i, state, got, tt.want[i])
				}
				s := tr.status
				if s.Registered && s.Blocked {
					t.Fatalf("step %d: registered and blocked", i)
				}
				if s.BBWait && s.Registered {
					t.Fatalf("step %d: registered while waiting for bulletin board", i)
				}
			}
		})
	}
}

func TestSatTrackerStatistics(t *testing.T) {
	var stats Statistics
	tr := newSatTracker(&stats, DefaultLowSNRThreshold)
	t0 := time.Unix(1712345678, 0)

	tr.update(StateWaitingGNSSFix, 40, t0)
	tr.update(StateRegistering, 40, t0.Add(20*time.Second))
	tr.update(StateActive, 40, t0.Add(30*time.Second))
	tr.update(StateBlocked, 40, t0.Add(60*time.Second))
	tr.update(StateActive, 40, t0.Add(64*time.Second))

	if stats.GNSSFixes != 1 || stats.AvgGNSSFixDuration != 20*time.Second {
		t.Errorf("gnss %d %s", stats.GNSSFixes, stats.AvgGNSSFixDuration)
	}
	// the second registration is measured from the last registering state
	if stats.Registrations != 2 || stats.AvgRegistrationDuration != 27*time.Second {
		t.Errorf("registrations %d %s", stats.Registrations, stats.AvgRegistrationDuration)
	}
	if stats.Blockages != 1 || stats.AvgBlockageDuration != 4*time.Second {
		t.Errorf("blockages %d %s", stats.Blockages, stats.AvgBlockageDuration)
	}
	if stats.AvgCN0 != 40 {
		t.Errorf("avg cn0 %v", stats.AvgCN0)
	}
}

func TestSatTrackerLowSNR(t *testing.T) {
	var stats Statistics
	tr := newSatTracker(&stats, DefaultLowSNRThreshold)
	now := time.Unix(1712345678, 0)

	steps := []struct {
		cn0  float64
		want []EventKind
	}{
		{45, []EventKind{EventSNRRecovered}},
		{44, nil},
		{38, []EventKind{EventLowSNR}},
		{30, nil},
		{38.01, []EventKind{EventSNRRecovered}},
	}
	for i, s := range steps {
		got := tr.update(StateStopped, s.cn0, now)
		if !slices.Equal(got, s.want) {
			t.Fatalf("step %d: events %v, want %v", i, got, s.want)
		}
		if tr.status.CN0 != s.cn0 {
			t.Fatalf("step %d: cn0 %v", i, tr.status.CN0)
		}
	}
}

func TestControlStateString(t *testing.T) {
	if StateBulletinBoard.String() != "Downloading Bulletin Board" {
		t.Fatalf("got %q", StateBulletinBoard.String())
	}
	if ControlState(15).Valid() || ControlState(15).String() != "ControlState(15)" {
		t.Fatal("state 15 should be invalid")
	}
}
