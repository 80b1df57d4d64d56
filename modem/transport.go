package modem

//go:generate go tool mockgen -destination=mocks_test.go -package=modem . Transport,Dialer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a
// satellite modem.
//
// A Transport is assumed to be already connected and ready for use. Typical
// implementations include serial ports, TCP connections to a simulator, or
// in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a modem.
type Dialer interface {
	// Dial creates and returns a connected Transport. It may block and
	// should respect cancellation and deadlines provided by the context.
	Dial(ctx context.Context) (Transport, error)
}

// drainer is implemented by transports that can wait for buffered writes to
// reach the wire, such as serial ports.
type drainer interface {
	Drain() error
}

// DefaultSerialMode is the IDP modem factory setting: 9600 baud 8N1.
var DefaultSerialMode = serial.Mode{
	BaudRate: 9600,
	Parity:   serial.NoParity,
	DataBits: 8,
	StopBits: serial.OneStopBit,
}

// SerialDialer opens a modem over a local serial port.
type SerialDialer struct {
	PortName string
	// Mode defaults to DefaultSerialMode when nil.
	Mode *serial.Mode
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("idp: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("idp: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		m := DefaultSerialMode
		mode = &m
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("idp: open %s: %w", d.PortName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("idp: flush %s: %w", d.PortName, err)
	}
	return port, nil
}

// ListPorts returns the serial ports present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("idp: list serial ports: %w", err)
	}
	return ports, nil
}
