package twin

import (
	"strings"
	"time"
)

// Statistics accumulates counters and two-sample moving averages. An
// average takes the first sample as is and then (avg+new)/2.
type Statistics struct {
	GNSSFixes          int           `json:"nGNSS"`
	AvgGNSSFixDuration time.Duration `json:"avgGNSSFixDuration"`

	Registrations           int           `json:"nRegistration"`
	AvgRegistrationDuration time.Duration `json:"avgRegistrationDuration"`

	BBAcquisitions int           `json:"nBBAcquisition"`
	AvgBBDuration  time.Duration `json:"avgBBReacquireDuration"`

	Blockages           int           `json:"nBlockage"`
	AvgBlockageDuration time.Duration `json:"avgBlockageDuration"`

	Locations           int           `json:"nAppGNSS"`
	AvgLocationDuration time.Duration `json:"avgAppGNSSFixDuration"`
	LocationTimeouts    int           `json:"appGNSSTimeouts"`

	ATResponses      int           `json:"nATResponses"`
	AvgATLatency     time.Duration `json:"avgATResponseTime"`
	GNSSResponses    int           `json:"nGNSSATResponses"`
	AvgGNSSATLatency time.Duration `json:"avgGNSSATResponseTime"`
	ATNonResponses   int           `json:"totalATNonResponses"`

	MOMessages   int           `json:"nMOMessages"`
	MOFailed     int           `json:"nMOFailed"`
	AvgMOSize    int           `json:"avgMOMsgSize"`
	AvgMOLatency time.Duration `json:"avgMOMsgLatency"`

	MTMessages int `json:"nMTMessages"`
	AvgMTSize  int `json:"avgMTMsgSize"`

	AvgCN0 float64 `json:"avgCN0"`
}

func foldDuration(avg, sample time.Duration) time.Duration {
	if avg == 0 {
		return sample
	}
	return (avg + sample) / 2
}

func foldInt(avg, sample int) int {
	if avg == 0 {
		return sample
	}
	return (avg + sample) / 2
}

func foldFloat(avg, sample float64) float64 {
	if avg == 0 {
		return sample
	}
	return (avg + sample) / 2
}

// isGNSSCommand reports whether a command waits on a position fix, whose
// latency would skew the plain AT average.
func isGNSSCommand(cmd string) bool {
	return strings.Contains(strings.ToUpper(cmd), "%GPS")
}

// recordLatency folds in the round trip of a completed command.
func (s *Statistics) recordLatency(cmd string, latency time.Duration) {
	if isGNSSCommand(cmd) {
		s.GNSSResponses++
		s.AvgGNSSATLatency = foldDuration(s.AvgGNSSATLatency, latency)
		return
	}
	s.ATResponses++
	s.AvgATLatency = foldDuration(s.AvgATLatency, latency)
}

func (s *Statistics) recordMO(size int, latency time.Duration, failed bool) {
	s.MOMessages++
	if failed {
		s.MOFailed++
	}
	s.AvgMOSize = foldInt(s.AvgMOSize, size)
	s.AvgMOLatency = foldDuration(s.AvgMOLatency, latency)
}

func (s *Statistics) recordMT(size int) {
	s.MTMessages++
	s.AvgMTSize = foldInt(s.AvgMTSize, size)
}

func (s *Statistics) recordLocation(d time.Duration, timedOut bool) {
	if timedOut {
		s.LocationTimeouts++
		return
	}
	s.Locations++
	s.AvgLocationDuration = foldDuration(s.AvgLocationDuration, d)
}
