package twin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/idpgw/at"
	"i4.energy/across/idpgw/modem"
)

// volatileQuery reads registers that may change without a command from us.
const volatileQuery = "ATS39? S41? S51? S55? S56? S57?"

var volatileRegisters = []int{
	RegGNSSMode, RegGNSSFixTimeout, RegWakeupInterval,
	RegGNSSContinuous, RegJammingStatus, RegJammingIndicator,
}

// bootState is collected off the run goroutine during initialization.
type bootState struct {
	session       at.Session
	identity      Identity
	registers     *Registers
	notifications Notification
}

func isTimeout(err error) bool {
	return errors.Is(err, modem.ErrTimeout)
}

// connect starts probing the modem after delay.
func (t *Twin) connect(delay time.Duration) {
	t.epoch++
	epoch := t.epoch
	t.setPhase(PhaseConnecting)
	t.spawn(func(ctx context.Context) func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
		}
		boot, err := t.bootstrap(ctx, epoch)
		if ctx.Err() != nil {
			return nil
		}
		return func() { t.booted(epoch, boot, err) }
	})
}

// bootstrap waits for the modem to answer ATZ and then reads its
// configuration.
func (t *Twin) bootstrap(ctx context.Context, epoch int) (*bootState, error) {
	crc := t.cmd.Session().CRC
	for {
		_, err := t.cmd.Command(ctx, at.CmdRestoreNVM)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if modem.IsCRCError(err) {
			crc = !crc
			s := t.cmd.Session()
			s.CRC = crc
			t.cmd.SetSession(s)
			t.logger.Info("CRC expectation toggled", "crc", crc, "error", err)
		} else {
			t.logger.Debug("modem not answering", "error", err)
		}
		select {
		case <-time.After(t.config.ConnectInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.post(func() {
		if epoch == t.epoch {
			t.setPhase(PhaseInitializing)
		}
	})
	return t.initialize(ctx)
}

func (t *Twin) initialize(ctx context.Context) (*bootState, error) {
	b := &bootState{registers: NewRegisters()}

	if t.config.PreferCRC != t.cmd.Session().CRC {
		cmd := at.CmdCRCOff
		if t.config.PreferCRC {
			cmd = at.CmdCRCOn
		}
		if _, err := t.cmd.Command(ctx, cmd); err != nil {
			return nil, fmt.Errorf("set CRC: %w", err)
		}
	}

	res, err := t.cmd.Command(ctx, at.CmdQuietQuery)
	if err != nil {
		return nil, fmt.Errorf("read quiet mode: %w", err)
	}
	if quiet, _ := firstInt(res.Lines); quiet != 0 {
		if _, err := t.cmd.Command(ctx, at.CmdQuietOff); err != nil {
			return nil, fmt.Errorf("disable quiet mode: %w", err)
		}
	}
	if _, err := t.cmd.Command(ctx, at.CmdVerboseOn); err != nil {
		return nil, fmt.Errorf("enable verbose: %w", err)
	}

	res, err = t.cmd.Command(ctx, at.CmdConfigReport)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	if err := parseConfigReport(res.Lines, b); err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	if b.session.CRC != t.config.PreferCRC {
		t.logger.Warn("CRC setting does not match preference", "crc", b.session.CRC, "preferred", t.config.PreferCRC)
	}

	res, err = t.cmd.Command(ctx, at.CmdMobileID)
	if err != nil {
		return nil, fmt.Errorf("read mobile ID: %w", err)
	}
	id, ok := res.Line(at.PrefixMobileID)
	if !ok || id == "" {
		return nil, fmt.Errorf("read mobile ID: %w: %q", ErrMalformedResponse, res.Text())
	}
	b.identity.MobileID = id

	res, err = t.cmd.Command(ctx, at.CmdVersion)
	if err != nil {
		return nil, fmt.Errorf("read versions: %w", err)
	}
	versions, _ := res.Line(at.PrefixVersion)
	parts := strings.Split(versions, ",")
	if len(parts) < 3 {
		return nil, fmt.Errorf("read versions: %w: %q", ErrMalformedResponse, versions)
	}
	b.identity.Firmware = strings.TrimSpace(parts[0])
	b.identity.Hardware = strings.TrimSpace(parts[1])
	b.identity.ATVersion = strings.TrimSpace(parts[2])

	res, err = t.cmd.Command(ctx, volatileQuery)
	if err != nil {
		return nil, fmt.Errorf("read registers: %w", err)
	}
	if err := storeRegisters(b.registers, volatileRegisters, res.Lines); err != nil {
		return nil, fmt.Errorf("read registers: %w", err)
	}
	for _, n := range volatileRegisters {
		d, _ := LookupRegister(n)
		if v, _ := b.registers.Get(n); v != d.Default && !d.ReadOnly {
			t.logger.Warn("register differs from default", "register", d.Name(), "description", d.Description, "value", v, "default", d.Default)
		}
	}

	if want := t.config.Notifications; want != 0 {
		cmd := fmt.Sprintf("ATS%d=%d", RegNotifyControl, PackNotifications(want))
		if _, err := t.cmd.Command(ctx, cmd); err != nil {
			return nil, fmt.Errorf("set notifications: %w", err)
		}
	}
	res, err = t.cmd.Command(ctx, at.CmdNotifyControl)
	if err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}
	v, err := firstInt(res.Lines)
	if err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}
	b.registers.Store(RegNotifyControl, v)
	b.notifications = UnpackNotifications(v)

	if _, err := t.cmd.Command(ctx, at.CmdSaveNVM); err != nil {
		return nil, fmt.Errorf("save configuration: %w", err)
	}
	b.session = t.cmd.Session()
	return b, nil
}

// booted applies the outcome of a bootstrap on the run goroutine.
func (t *Twin) booted(epoch int, b *bootState, err error) {
	if epoch != t.epoch {
		return
	}
	if err != nil {
		t.logger.Error("initialization failed", "error", err)
		t.emit(EventInitFailed, err)
		t.connect(t.config.ConnectInterval)
		return
	}

	t.session = b.session
	t.identity = b.identity
	t.registers = b.registers
	t.notifications = b.notifications
	t.setPhase(PhaseReady)
	t.logger.Info("modem initialized", "mobileId", b.identity.MobileID, "firmware", b.identity.Firmware, "session", b.session)
	t.emit(EventConnect, b.identity)
	t.startAutomation()
}

// lost handles the dispatcher's disconnected signal.
func (t *Twin) lost() {
	if t.phase != PhaseReady {
		// still probing; the bootstrap keeps retrying by itself
		return
	}
	t.timers.stop()
	t.setPhase(PhaseDisconnected)
	t.emit(EventDisconnect, modem.ErrDisconnected)
	t.connect(0)
}

// parseConfigReport reads the active configuration of an AT&V response:
// one "E1 Q0 V1 CRC=0" line and one "S0:000 S3:013 ..." line. A stored
// profile may follow and is ignored.
func parseConfigReport(lines []string, b *bootState) error {
	var haveSession, haveRegisters bool
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case !haveSession:
			if s, err := at.ParseConfigReport(line); err == nil {
				b.session = s
				haveSession = true
			}
		case !haveRegisters && strings.HasPrefix(line, "S") && strings.Contains(line, ":"):
			if err := b.registers.ParseReport(line); err != nil {
				return err
			}
			haveRegisters = true
		}
	}
	if !haveSession {
		return fmt.Errorf("%w: no configuration line", ErrMalformedResponse)
	}
	return nil
}

// storeRegisters assigns one integer response line per register queried.
func storeRegisters(r *Registers, regs []int, lines []string) error {
	if len(lines) < len(regs) {
		return fmt.Errorf("%w: %d values for %d registers", ErrMalformedResponse, len(lines), len(regs))
	}
	for i, n := range regs {
		v, err := strconv.Atoi(strings.TrimSpace(lines[i]))
		if err != nil {
			return fmt.Errorf("%w: S%d %q", ErrMalformedResponse, n, lines[i])
		}
		r.Store(n, v)
	}
	return nil
}

func firstInt(lines []string) (int, error) {
	if len(lines) == 0 {
		return 0, fmt.Errorf("%w: no value", ErrMalformedResponse)
	}
	v, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedResponse, lines[0])
	}
	return v, nil
}
