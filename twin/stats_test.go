package twin

import (
	"testing"
	"time"
)

func TestStatisticsFolding(t *testing.T) {
	var s Statistics

	s.recordLatency("AT+GSN", 100*time.Millisecond)
	s.recordLatency("ATS80?", 300*time.Millisecond)
	s.recordLatency(`AT%GPS=30,45,"RMC"`, 40*time.Second)
	if s.ATResponses != 2 || s.AvgATLatency != 200*time.Millisecond {
		t.Errorf("AT %d %s", s.ATResponses, s.AvgATLatency)
	}
	if s.GNSSResponses != 1 || s.AvgGNSSATLatency != 40*time.Second {
		t.Errorf("GNSS %d %s", s.GNSSResponses, s.AvgGNSSATLatency)
	}

	s.recordMO(10, 20*time.Second, false)
	s.recordMO(30, 40*time.Second, true)
	if s.MOMessages != 2 || s.MOFailed != 1 || s.AvgMOSize != 20 || s.AvgMOLatency != 30*time.Second {
		t.Errorf("MO %+v", s)
	}

	s.recordMT(7)
	if s.MTMessages != 1 || s.AvgMTSize != 7 {
		t.Errorf("MT %d %d", s.MTMessages, s.AvgMTSize)
	}

	s.recordLocation(0, true)
	s.recordLocation(12*time.Second, false)
	if s.Locations != 1 || s.LocationTimeouts != 1 || s.AvgLocationDuration != 12*time.Second {
		t.Errorf("locations %d %d %s", s.Locations, s.LocationTimeouts, s.AvgLocationDuration)
	}
}

func TestFoldTakesFirstSample(t *testing.T) {
	if got := foldInt(0, 9); got != 9 {
		t.Fatalf("foldInt = %d", got)
	}
	if got := foldFloat(40, 42); got != 41 {
		t.Fatalf("foldFloat = %v", got)
	}
	if got := foldDuration(time.Second, 3*time.Second); got != 2*time.Second {
		t.Fatalf("foldDuration = %s", got)
	}
}
