package twin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/idpgw/at"
	"i4.energy/across/idpgw/modem"
)

type ticker struct {
	t *time.Ticker
}

func (k *ticker) start(d time.Duration) {
	k.stop()
	if d > 0 {
		k.t = time.NewTicker(d)
	}
}

func (k *ticker) stop() {
	if k.t != nil {
		k.t.Stop()
		k.t = nil
	}
}

// C is nil while stopped, which disables its select case.
func (k *ticker) C() <-chan time.Time {
	if k.t == nil {
		return nil
	}
	return k.t.C
}

// automation holds the periodic jobs that run while the modem is ready.
type automation struct {
	status   ticker
	mo       ticker
	mt       ticker
	events   ticker
	tracking ticker
}

func (a *automation) stop() {
	a.status.stop()
	a.mo.stop()
	a.mt.stop()
	a.events.stop()
	a.tracking.stop()
}

func (t *Twin) startAutomation() {
	t.timers.status.start(t.config.StatusInterval)
	t.timers.mo.start(t.config.MOInterval)
	t.timers.mt.start(t.config.MTInterval)
	t.timers.events.start(t.config.EventsInterval)
	t.pollStatus()
	if t.tracking > 0 {
		t.configureTracking(t.tracking)
	}
}

func (t *Twin) pollStatus() {
	t.command(at.CmdSatStatus, func(res modem.Result, err error) {
		if err != nil {
			t.logger.Warn("satellite status poll failed", "error", err)
			return
		}
		if t.phase != PhaseReady {
			return
		}
		state, cn0, err := parseSatStatus(res.Lines)
		if err != nil {
			t.logger.Warn("satellite status poll failed", "error", err)
			return
		}
		prev := t.sat.status.State
		events := t.sat.update(state, cn0, t.config.now())
		if state != prev {
			t.logger.Info("satellite control state change", "old", prev, "new", state)
		}
		t.logger.Debug("satellite status", "state", state, "cn0", cn0)
		for _, kind := range events {
			t.emit(kind, nil)
		}
	})
}

// parseSatStatus reads the control state index and the C/N0 x100 returned
// by the trace query.
func parseSatStatus(lines []string) (ControlState, float64, error) {
	if len(lines) < 2 {
		return 0, 0, fmt.Errorf("%w: satellite status %q", ErrMalformedResponse, lines)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || !ControlState(idx).Valid() {
		return 0, 0, fmt.Errorf("%w: control state %q", ErrMalformedResponse, lines[0])
	}
	cn0, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: C/N0 %q", ErrMalformedResponse, lines[1])
	}
	return ControlState(idx), float64(cn0) / 100, nil
}

func (t *Twin) pollMO() {
	if len(t.mo) == 0 {
		return
	}
	t.command(at.CmdMOState, func(res modem.Result, err error) {
		if err != nil {
			t.logger.Warn("MO status poll failed", "error", err)
			return
		}
		t.applyMO(parseMOStatuses(res.Lines, t.logger.Warn))
	})
}

func parseMOStatuses(lines []string, warn func(string, ...any)) []MOStatus {
	var out []MOStatus
	for _, line := range lines {
		if strings.TrimSpace(line) == at.PrefixMOState {
			continue
		}
		s, err := parseMOStatus(line)
		if err != nil {
			warn("skipping MO status", "error", err)
			continue
		}
		out = append(out, s)
	}
	return out
}

// moListTimeout bounds how long a submitted message may stay absent from
// the modem's MO listing before it is dropped.
const moListTimeout = time.Minute

// applyMO advances pending MO messages. A message reaching a terminal state
// is removed and its callback runs once. Messages the modem stopped listing,
// or never listed within moListTimeout, are removed as UNAVAILABLE.
func (t *Twin) applyMO(statuses []MOStatus) {
	now := t.config.now()
	listed := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		listed[s.Name] = true
		p, ok := t.mo[s.Name]
		if !ok {
			continue
		}
		p.listed = true
		if p.state == s.State {
			continue
		}
		t.logger.Debug("MO state change", "name", s.Name, "old", p.state, "new", s.State)
		p.state = s.State
		if !s.State.Terminal() {
			continue
		}
		delete(t.mo, s.Name)

		failed := s.State == MOFailed
		result := MOResult{
			Name:      p.msg.Name,
			QueueName: p.queueName,
			SIN:       p.msg.SIN,
			MIN:       p.msg.MIN,
			State:     s.State,
			Size:      s.Size,
			Latency:   now.Sub(p.submitted),
		}
		t.stats.recordMO(s.Size, result.Latency, failed)
		if failed {
			t.logger.Warn("MO message failed", "name", s.Name)
		}
		if p.done != nil {
			done := p.done
			t.calls.push(func() { done(result) })
		}
		t.emit(EventMOMessageComplete, result)
		if failed {
			// link diagnostics
			t.pollStatus()
		}
	}

	for name, p := range t.mo {
		if listed[name] || (!p.listed && now.Sub(p.submitted) < moListTimeout) {
			continue
		}
		delete(t.mo, name)
		t.logger.Warn("MO message no longer listed by the modem", "name", name, "state", p.state)
		if p.done != nil {
			done := p.done
			result := MOResult{
				Name:      p.msg.Name,
				QueueName: p.queueName,
				SIN:       p.msg.SIN,
				MIN:       p.msg.MIN,
				State:     MOUnavailable,
				Size:      p.msg.Size(),
				Latency:   now.Sub(p.submitted),
			}
			t.calls.push(func() { done(result) })
		}
	}
}

func (t *Twin) pollMT() {
	t.command(at.CmdMTList, func(res modem.Result, err error) {
		if err != nil {
			t.logger.Warn("MT queue poll failed", "error", err)
			return
		}
		t.applyMT(parseMTStatuses(res.Lines, t.logger.Warn))
	})
}

func parseMTStatuses(lines []string, warn func(string, ...any)) []MTStatus {
	var out []MTStatus
	for _, line := range lines {
		if !strings.HasPrefix(at.TrimPrefix(line, at.PrefixMTList), `"FM`) {
			continue
		}
		s, err := parseMTStatus(line)
		if err != nil {
			warn("skipping MT status", "error", err)
			continue
		}
		out = append(out, s)
	}
	return out
}

// applyMT tracks newly completed MT messages once and starts retrieval for
// those with a SIN callback. Entries the modem no longer lists are dropped.
func (t *Twin) applyMT(statuses []MTStatus) {
	listed := make(map[string]bool, len(statuses))
	var fresh []MTStatus
	for _, s := range statuses {
		listed[s.Name] = true
		if s.State != MTComplete {
			t.logger.Debug("MT message incomplete", "name", s.Name, "received", s.Received, "length", s.Length)
			continue
		}
		if _, ok := t.mt[s.Name]; ok {
			continue
		}
		t.mt[s.Name] = &pendingMT{status: s, received: t.config.now()}
		t.stats.recordMT(s.Length)
		fresh = append(fresh, s)
	}
	for name, p := range t.mt {
		if !listed[name] && !p.retrieving {
			delete(t.mt, name)
		}
	}
	if len(fresh) == 0 {
		return
	}
	t.emit(EventNewMTMessage, fresh)
	for _, s := range fresh {
		if fn := t.mtCallback(s.SIN); fn != nil {
			t.retrieve(s.Name, FormatBase64, fn)
		}
	}
}

// retrieve fetches a pending MT message in the background.
func (t *Twin) retrieve(name string, f Format, done func(MTMessage, error)) {
	p, ok := t.mt[name]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownMessage, name)
		t.calls.push(func() { done(MTMessage{}, err) })
		return
	}
	p.done = append(p.done, done)
	if p.retrieving {
		return
	}
	p.retrieving = true
	t.command(mtGetCommand(name, f), func(res modem.Result, err error) {
		var msg MTMessage
		if err == nil {
			msg, err = mtFromResult(res)
		}
		t.retrieved(name, msg, err)
	})
}

func mtGetCommand(name string, f Format) string {
	return fmt.Sprintf(`AT%%MGFG="%s",%d`, name, f)
}

func mtFromResult(res modem.Result) (MTMessage, error) {
	for _, line := range res.Lines {
		if strings.HasPrefix(strings.TrimSpace(line), at.PrefixMTGet) {
			return parseMTMessage(line)
		}
	}
	return MTMessage{}, fmt.Errorf("%w: no %s line", ErrMalformedResponse, at.PrefixMTGet)
}

// retrieved completes a retrieval: the pending entry is removed on success
// and every waiting callback runs once.
func (t *Twin) retrieved(name string, msg MTMessage, err error) {
	p, ok := t.mt[name]
	if !ok {
		return
	}
	p.retrieving = false
	waiting := p.done
	p.done = nil
	if err == nil {
		msg.Received = p.received
		delete(t.mt, name)
		t.logger.Info("MT message retrieved", "name", name, "sin", msg.SIN, "min", msg.MIN, "size", msg.Size())
	} else {
		t.logger.Warn("MT message retrieval failed", "name", name, "error", err)
	}
	for _, fn := range waiting {
		fn := fn
		t.calls.push(func() { fn(msg, err) })
	}
}

func (t *Twin) pollEvents() {
	t.command(at.CmdNotifyStatus, func(res modem.Result, err error) {
		if err != nil {
			t.logger.Warn("event status poll failed", "error", err)
			return
		}
		v, err := firstInt(res.Lines)
		if err != nil {
			t.logger.Warn("event status poll failed", "error", err)
			return
		}
		t.asserted(v)
	})
}

// asserted handles an S89 value, which the modem clears on read.
func (t *Twin) asserted(v int) {
	t.registers.Store(RegNotifyStatus, v)
	if n := UnpackNotifications(v); n != 0 {
		t.emit(EventNotification, n)
	}
}

// track requests a location for the tracking timer. A request still
// waiting for a fix is not repeated.
func (t *Twin) track() {
	if t.locating {
		return
	}
	t.locating = true
	refresh, _ := t.registers.Get(RegGNSSContinuous)
	fixAge := t.tracking
	t.spawn(func(ctx context.Context) func() {
		f := t.locate(ctx, fixAge, refresh)
		return func() {
			t.locating = false
			t.located(f)
		}
	})
}

// trackingRefresh is the GNSS continuous refresh for a tracking interval:
// half the interval up to 30 seconds, otherwise off.
func trackingRefresh(interval time.Duration) int {
	if interval > 30*time.Second {
		return 0
	}
	return int(interval/time.Second) / 2
}

// configureTracking sets GNSS continuous mode for interval and arms the
// tracking timer.
func (t *Twin) configureTracking(interval time.Duration) {
	t.tracking = interval
	t.timers.tracking.start(interval)
	refresh := trackingRefresh(interval)
	if v, _ := t.registers.Get(RegGNSSContinuous); v == refresh {
		return
	}
	t.command(trackCommand(refresh), func(_ modem.Result, err error) {
		if err != nil {
			t.logger.Warn("set GNSS continuous mode", "refresh", refresh, "error", err)
			return
		}
		t.registers.Store(RegGNSSContinuous, refresh)
	})
}

func trackCommand(refresh int) string {
	return "AT%TRK=" + strconv.Itoa(refresh)
}
