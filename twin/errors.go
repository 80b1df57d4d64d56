package twin

import "errors"

var (
	// ErrNoCommander is returned when no Commander is configured
	ErrNoCommander = errors.New("no commander configured")

	// ErrNotReady is returned by operations that need an initialized modem
	ErrNotReady = errors.New("modem not ready")

	// ErrStopped is returned once Run has exited
	ErrStopped = errors.New("twin stopped")

	// ErrRunning is returned when Run is called twice
	ErrRunning = errors.New("twin already running")

	ErrUnknownRegister  = errors.New("unknown S-register")
	ErrReadOnlyRegister = errors.New("read-only S-register")
	ErrRegisterRange    = errors.New("S-register value out of range")

	// ErrInvalidMessage is returned for messages that cannot be framed
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidSIN is returned for a SIN outside 0..255
	ErrInvalidSIN = errors.New("SIN must be in 0..255")

	// ErrUnknownMessage is returned for a queue name the twin does not track
	ErrUnknownMessage = errors.New("unknown message")

	// ErrMalformedResponse is returned when a response cannot be parsed
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnknownEvent is returned when subscribing to an undefined event
	ErrUnknownEvent = errors.New("unknown event")

	// ErrLocationTimeout is returned when no NMEA sentences arrive in time
	ErrLocationTimeout = errors.New("location request timed out")
)
