package modem

import (
	"errors"
	"fmt"

	"i4.energy/across/idpgw/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when the Dialer produced no Transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrClosed is delivered to every request still queued or in flight when
	// the modem shuts down, and returned by Submit afterwards.
	ErrClosed = errors.New("modem closed")

	// ErrLoopRunning is returned when Loop is started twice.
	ErrLoopRunning = errors.New("loop already running")

	// ErrEmptyCommand is returned by Submit for a blank command line.
	ErrEmptyCommand = errors.New("empty command")

	// ErrTimeout is delivered when no terminal response arrived within the
	// command timeout and all retries were used.
	ErrTimeout = errors.New("command timed out")

	// ErrCRCMismatch is delivered when the response checksum does not match
	// the response text and all retries were used.
	ErrCRCMismatch = errors.New("response CRC mismatch")

	// ErrCRCUnexpected is delivered when a checksum was expected but the
	// modem did not send one.
	//
	// The local CRC expectation is turned off when this happens, so callers
	// that test the modem framing may simply retry.
	ErrCRCUnexpected = errors.New("response CRC unexpected")

	// ErrBusy is returned by Command when the request could not be sent
	// within the configured busy timeout.
	ErrBusy = errors.New("modem busy")

	// ErrDisconnected is the cause reported when the consecutive timeout
	// threshold is crossed. It is never delivered to individual commands.
	ErrDisconnected = errors.New("modem disconnected")

	// ErrDuplicateCommand is returned by Submit when an identical command
	// line is already waiting in the queue.
	ErrDuplicateCommand = errors.New("duplicate command queued")

	// ErrCancelled is delivered to a queued request removed by Cancel.
	ErrCancelled = errors.New("command cancelled")

	// ErrQuietUnsupported is returned when submitting ATQ1. Quiet mode
	// suppresses result codes and would make every command time out.
	ErrQuietUnsupported = errors.New("quiet mode unsupported")

	// ErrLineTooLong is logged when a modem response line exceeds the
	// maximum allowed length and is dropped.
	ErrLineTooLong = errors.New("response line too long")
)

// ModemError is a failure result reported by the modem itself, enriched with
// the code read back from the last error register.
type ModemError struct {
	Command string
	Code    int
	Name    string
}

func newModemError(cmd string, code int) *ModemError {
	return &ModemError{Command: cmd, Code: code, Name: at.ResultName(code)}
}

func (e *ModemError) Error() string {
	return fmt.Sprintf("%s: modem error %d (%s)", e.Command, e.Code, e.Name)
}

// IsCRCError reports whether err signals that the local CRC expectation
// disagrees with the modem.
func IsCRCError(err error) bool {
	if errors.Is(err, ErrCRCMismatch) || errors.Is(err, ErrCRCUnexpected) {
		return true
	}
	var me *ModemError
	return errors.As(err, &me) && me.Code == at.ResultInvalidCRCSequence
}
