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

// Command passes a raw command through to the dispatcher.
func (t *Twin) Command(ctx context.Context, cmd string, opts ...modem.Option) (modem.Result, error) {
	return t.exec(ctx, cmd, opts...)
}

// SendMessage submits an MO message and returns the queue name the modem
// knows it by. done, if not nil, runs once when the message completes,
// fails or disappears from the modem's queue. Priority defaults to low and
// Format to base64. If ctx ends while the submission is in flight the name
// is returned with the error and the message stays tracked.
func (t *Twin) SendMessage(ctx context.Context, msg Message, done func(MOResult)) (string, error) {
	if msg.Priority == 0 {
		msg.Priority = PriorityLow
	}
	if msg.Format == 0 {
		msg.Format = FormatBase64
	}
	if err := msg.validateMO(); err != nil {
		return "", err
	}

	var name string
	err := t.do(ctx, func() error {
		if err := t.ready(); err != nil {
			return err
		}
		name = queueName(t.config.now(), func(n string) bool {
			_, ok := t.mo[n]
			return ok
		})
		t.mo[name] = &pendingMO{
			msg:       msg,
			queueName: name,
			submitted: t.config.now(),
			done:      done,
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	cmd, err := moCommand(name, msg)
	if err == nil {
		_, err = t.exec(ctx, cmd)
	}
	if err != nil && (ctx.Err() == nil || errors.Is(err, modem.ErrCancelled)) {
		// never queued by the modem
		_ = t.do(context.WithoutCancel(ctx), func() error {
			delete(t.mo, name)
			return nil
		})
		return "", err
	}
	if err != nil {
		return name, err
	}
	t.logger.Info("MO message submitted", "name", name, "sin", msg.SIN, "min", msg.MIN, "size", msg.Size())
	return name, nil
}

// CancelMessage cancels an MO message the modem has not started sending.
// Its callback does not run.
func (t *Twin) CancelMessage(ctx context.Context, name string) error {
	if _, err := t.exec(ctx, fmt.Sprintf(`AT%%MGRC="%s"`, name)); err != nil {
		return err
	}
	return t.do(context.WithoutCancel(ctx), func() error {
		delete(t.mo, name)
		return nil
	})
}

// MOStatus reads the modem's MO queue and advances pending messages.
func (t *Twin) MOStatus(ctx context.Context) ([]MOStatus, error) {
	res, err := t.exec(ctx, at.CmdMOState)
	if err != nil {
		return nil, err
	}
	statuses := parseMOStatuses(res.Lines, t.logger.Warn)
	err = t.do(context.WithoutCancel(ctx), func() error {
		t.applyMO(statuses)
		return nil
	})
	return statuses, err
}

// MTStatus reads the modem's MT queue and tracks newly completed messages.
func (t *Twin) MTStatus(ctx context.Context) ([]MTStatus, error) {
	res, err := t.exec(ctx, at.CmdMTList)
	if err != nil {
		return nil, err
	}
	statuses := parseMTStatuses(res.Lines, t.logger.Warn)
	err = t.do(context.WithoutCancel(ctx), func() error {
		t.applyMT(statuses)
		return nil
	})
	return statuses, err
}

// Retrieve reads an MT message from the modem. Callbacks waiting on the
// same message receive it as well.
func (t *Twin) Retrieve(ctx context.Context, name string, f Format) (MTMessage, error) {
	if !f.Valid() {
		return MTMessage{}, fmt.Errorf("%w: format %d", ErrInvalidMessage, f)
	}
	res, err := t.exec(ctx, mtGetCommand(name, f))
	var msg MTMessage
	if err == nil {
		msg, err = mtFromResult(res)
	}
	if ctx.Err() != nil {
		return msg, err
	}
	_ = t.do(context.WithoutCancel(ctx), func() error {
		if p, ok := t.mt[name]; ok && err == nil {
			msg.Received = p.received
		}
		t.retrieved(name, msg, err)
		return nil
	})
	return msg, err
}

// DeleteMT removes an MT message from the modem.
func (t *Twin) DeleteMT(ctx context.Context, name string) error {
	if _, err := t.exec(ctx, fmt.Sprintf(`AT%%MGFM="%s"`, name)); err != nil {
		return err
	}
	return t.do(context.WithoutCancel(ctx), func() error {
		delete(t.mt, name)
		return nil
	})
}

// FlushMT deletes every MT message the modem holds and returns how many
// were removed.
func (t *Twin) FlushMT(ctx context.Context) (int, error) {
	statuses, err := t.MTStatus(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	for _, s := range statuses {
		if err := t.DeleteMT(ctx, s.Name); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ReadRegister queries S-register n and updates the mirror.
func (t *Twin) ReadRegister(ctx context.Context, n int) (int, error) {
	if _, ok := LookupRegister(n); !ok {
		return 0, fmt.Errorf("%w: S%d", ErrUnknownRegister, n)
	}
	res, err := t.exec(ctx, fmt.Sprintf("ATS%d?", n))
	if err != nil {
		return 0, err
	}
	v, err := firstInt(res.Lines)
	if err != nil {
		return 0, err
	}
	err = t.do(context.WithoutCancel(ctx), func() error {
		t.storeRegister(n, v)
		return nil
	})
	return v, err
}

// WriteRegister sets S-register n, optionally saving the configuration to
// non-volatile memory.
func (t *Twin) WriteRegister(ctx context.Context, n, value int, save bool) error {
	if err := ValidateWrite(n, value); err != nil {
		return err
	}
	if _, err := t.exec(ctx, fmt.Sprintf("ATS%d=%d", n, value)); err != nil {
		return err
	}
	if err := t.do(context.WithoutCancel(ctx), func() error {
		t.storeRegister(n, value)
		return nil
	}); err != nil {
		return err
	}
	if save {
		if _, err := t.exec(ctx, at.CmdSaveNVM); err != nil {
			return fmt.Errorf("save configuration: %w", err)
		}
	}
	return nil
}

func (t *Twin) storeRegister(n, v int) {
	t.registers.Store(n, v)
	if n == RegNotifyControl {
		t.notifications = UnpackNotifications(v)
	}
}

// Register returns the mirrored value of S-register n without querying
// the modem.
func (t *Twin) Register(ctx context.Context, n int) (int, error) {
	var v int
	err := t.do(ctx, func() error {
		var ok bool
		if v, ok = t.registers.Get(n); !ok {
			return fmt.Errorf("%w: S%d", ErrUnknownRegister, n)
		}
		return nil
	})
	return v, err
}

// SetWakeupInterval writes S51.
func (t *Twin) SetWakeupInterval(ctx context.Context, interval int, save bool) error {
	return t.WriteRegister(ctx, RegWakeupInterval, interval, save)
}

// SetPowerMode writes S50.
func (t *Twin) SetPowerMode(ctx context.Context, mode int, save bool) error {
	return t.WriteRegister(ctx, RegPowerMode, mode, save)
}

// Notifications reads the event notification control register S88.
func (t *Twin) Notifications(ctx context.Context) (Notification, error) {
	v, err := t.ReadRegister(ctx, RegNotifyControl)
	if err != nil {
		return 0, err
	}
	return UnpackNotifications(v), nil
}

// SetNotification enables or disables the given flags in S88. On failure
// the mirror is refreshed from the modem.
func (t *Twin) SetNotification(ctx context.Context, flags Notification, enabled bool) error {
	var current Notification
	if err := t.do(ctx, func() error {
		current = t.notifications
		return nil
	}); err != nil {
		return err
	}
	next := current &^ flags
	if enabled {
		next = current | flags
	}
	if next == current {
		return nil
	}
	err := t.WriteRegister(ctx, RegNotifyControl, PackNotifications(next), false)
	if err != nil {
		var me *modem.ModemError
		if errors.As(err, &me) {
			if _, rerr := t.Notifications(ctx); rerr != nil {
				t.logger.Warn("refresh notifications", "error", rerr)
			}
		}
		return err
	}
	t.logger.Info("event notifications updated", "enabled", next.Names())
	return nil
}

// CheckEvents reads and clears the asserted notifications in S89.
func (t *Twin) CheckEvents(ctx context.Context) (Notification, error) {
	res, err := t.exec(ctx, at.CmdNotifyStatus)
	if err != nil {
		return 0, err
	}
	v, err := firstInt(res.Lines)
	if err != nil {
		return 0, err
	}
	err = t.do(context.WithoutCancel(ctx), func() error {
		t.asserted(v)
		return nil
	})
	return UnpackNotifications(v), err
}

// UTC returns the modem's system time.
func (t *Twin) UTC(ctx context.Context) (time.Time, error) {
	res, err := t.exec(ctx, at.CmdUTC)
	if err != nil {
		return time.Time{}, err
	}
	line, ok := res.Line(at.PrefixUTC)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedResponse, res.Text())
	}
	ts, err := time.Parse("2006-01-02 15:04:05", strings.TrimSpace(line))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return ts.UTC(), nil
}
