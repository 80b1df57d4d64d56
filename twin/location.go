package twin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"i4.energy/across/idpgw/at"
	"i4.energy/across/idpgw/modem"
)

const (
	maxFixAge  = 600
	maxFixWait = 600
	minFixWait = 45
	// fixMargin is added to the modem's own wait for the command timeout
	fixMargin = 5 * time.Second
)

// fix is the outcome of one AT%GPS request.
type fix struct {
	command   string
	result    modem.Result
	sentences []string
	took      time.Duration
	err       error
}

// locationCommand builds the NMEA request for a fix no older than fixAge.
// A GNSS continuous refresh shorter than fixAge bounds the age instead.
func locationCommand(fixAge time.Duration, refresh int) (string, time.Duration) {
	stale := int(fixAge / time.Second)
	if refresh > 0 && refresh < stale {
		stale = refresh
	}
	stale = min(maxFixAge, max(1, stale))
	wait := min(maxFixWait, max(1, max(minFixWait, stale-1)))
	cmd := fmt.Sprintf(`AT%%GPS=%d,%d,"RMC","GGA","GSA","GSV"`, stale, wait)
	return cmd, time.Duration(wait)*time.Second + fixMargin
}

func (t *Twin) locate(ctx context.Context, fixAge time.Duration, refresh int) fix {
	cmd, timeout := locationCommand(fixAge, refresh)
	start := t.config.now()
	res, err := t.cmd.Command(ctx, cmd, modem.WithTimeout(timeout))
	f := fix{command: cmd, result: res, took: t.config.now().Sub(start)}
	if err != nil {
		if fixTimedOut(err) {
			err = fmt.Errorf("%w: %w", ErrLocationTimeout, err)
		}
		f.err = err
		return f
	}
	f.sentences = nmeaSentences(res.Lines)
	if len(f.sentences) == 0 {
		f.err = fmt.Errorf("%w: no NMEA sentences", ErrMalformedResponse)
	}
	return f
}

func fixTimedOut(err error) bool {
	var me *modem.ModemError
	if errors.As(err, &me) && me.Code == at.ResultTimeoutOccurred {
		return true
	}
	return isTimeout(err)
}

// nmeaSentences keeps the GNSS sentences of an AT%GPS response.
func nmeaSentences(lines []string) []string {
	var out []string
	for _, line := range lines {
		line = at.TrimPrefix(line, at.PrefixGNSS)
		if strings.HasPrefix(line, "$G") {
			out = append(out, line)
		}
	}
	return out
}

// located accounts for a finished location request on the run goroutine.
func (t *Twin) located(f fix) {
	t.observe(f.command, f.result, f.err)
	switch {
	case f.err == nil:
		t.stats.recordLocation(f.took, false)
		t.emit(EventLocation, f.sentences)
	case errors.Is(f.err, ErrLocationTimeout):
		t.stats.recordLocation(0, true)
		t.logger.Warn("location request timed out", "command", f.command)
	default:
		t.logger.Warn("location request failed", "error", f.err)
	}
}

// Location requests a GNSS fix no older than fixAge and returns the raw
// NMEA sentences. The call blocks until the modem reports a fix or gives
// up, which can take minutes.
func (t *Twin) Location(ctx context.Context, fixAge time.Duration) ([]string, error) {
	var refresh int
	err := t.do(ctx, func() error {
		refresh, _ = t.registers.Get(RegGNSSContinuous)
		return t.ready()
	})
	if err != nil {
		return nil, err
	}
	f := t.locate(ctx, fixAge, refresh)
	t.post(func() { t.located(f) })
	return f.sentences, f.err
}

// SetTracking changes the tracking interval. Zero stops tracking.
func (t *Twin) SetTracking(ctx context.Context, interval time.Duration) error {
	if interval < 0 || interval > 7*24*time.Hour {
		return fmt.Errorf("tracking interval %s out of range", interval)
	}
	return t.do(ctx, func() error {
		if err := t.ready(); err != nil {
			return err
		}
		t.configureTracking(interval)
		return nil
	})
}
