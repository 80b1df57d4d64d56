package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"i4.energy/across/idpgw/journal"
	"i4.energy/across/idpgw/modem"
	"i4.energy/across/idpgw/twin"
)

//go:generate go tool mockgen -destination=mocks_test.go -package=main . Device

// Device is the part of *twin.Twin the gateway exposes.
type Device interface {
	Snapshot(ctx context.Context) (twin.State, error)
	Subscribe(buffer int) (<-chan twin.Event, func())
	SendMessage(ctx context.Context, msg twin.Message, done func(twin.MOResult)) (string, error)
	CancelMessage(ctx context.Context, name string) error
	Retrieve(ctx context.Context, name string, f twin.Format) (twin.MTMessage, error)
	Location(ctx context.Context, fixAge time.Duration) ([]string, error)
	SetTracking(ctx context.Context, interval time.Duration) error
	ReadRegister(ctx context.Context, n int) (int, error)
	WriteRegister(ctx context.Context, n, value int, save bool) error
	Command(ctx context.Context, cmd string, opts ...modem.Option) (modem.Result, error)
	UTC(ctx context.Context) (time.Time, error)
}

// Sink receives what the gateway forwards, e.g. the MQTT bridge.
type Sink interface {
	Event(ev twin.Event)
	Received(msg twin.MTMessage)
}

// SendRequest is an MO message submitted over HTTP or MQTT. Text, when
// set, is used as the payload instead of Payload.
type SendRequest struct {
	Name     string        `json:"name,omitempty"`
	SIN      int           `json:"sin"`
	MIN      int           `json:"min"`
	Priority twin.Priority `json:"priority,omitempty"`
	Payload  []byte        `json:"payload,omitempty"`
	Text     string        `json:"text,omitempty"`
}

var errBadRequest = errors.New("bad request")

func (r SendRequest) message() (twin.Message, error) {
	if r.SIN < 0 || r.SIN > 255 || r.MIN < 0 || r.MIN > 255 {
		return twin.Message{}, errBadRequest
	}
	msg := twin.Message{
		Name:     r.Name,
		SIN:      uint8(r.SIN),
		MIN:      uint8(r.MIN),
		Priority: r.Priority,
		Payload:  r.Payload,
	}
	if r.Text != "" {
		msg.Payload = []byte(r.Text)
	}
	return msg, nil
}

// Gateway moves messages between the device and the outside: submitted
// requests go to the modem, completed and received messages go to the
// journal and the sinks.
type Gateway struct {
	device  Device
	journal *journal.Journal
	sinks   []Sink
	logger  *slog.Logger
}

func NewGateway(device Device, j *journal.Journal, logger *slog.Logger, sinks ...Sink) *Gateway {
	return &Gateway{device: device, journal: j, sinks: sinks, logger: logger}
}

// AddSink registers s before Run is started.
func (g *Gateway) AddSink(s Sink) {
	g.sinks = append(g.sinks, s)
}

// Send submits an MO message and returns its queue name.
func (g *Gateway) Send(ctx context.Context, req SendRequest) (string, error) {
	msg, err := req.message()
	if err != nil {
		return "", err
	}
	name, err := g.device.SendMessage(ctx, msg, g.completed)
	if err != nil {
		return "", err
	}
	if g.journal != nil {
		if _, err := g.journal.Submitted(context.WithoutCancel(ctx), name, msg); err != nil {
			g.logger.Error("Failed to journal MO message", "error", err, "name", name)
		}
	}
	return name, nil
}

func (g *Gateway) completed(res twin.MOResult) {
	if g.journal == nil {
		return
	}
	if err := g.journal.Completed(context.Background(), res); err != nil {
		g.logger.Error("Failed to journal MO result", "error", err, "name", res.QueueName)
	}
}

// Run forwards device events until ctx is cancelled. New MT messages are
// retrieved as they arrive.
func (g *Gateway) Run(ctx context.Context) {
	events, unsubscribe := g.device.Subscribe(256)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, s := range g.sinks {
				s.Event(ev)
			}
			if ev.Kind == twin.EventNewMTMessage {
				statuses, _ := ev.Data.([]twin.MTStatus)
				for _, st := range statuses {
					g.retrieve(ctx, st.Name)
				}
			}
		}
	}
}

func (g *Gateway) retrieve(ctx context.Context, name string) {
	msg, err := g.device.Retrieve(ctx, name, twin.FormatBase64)
	if err != nil {
		g.logger.Error("Failed to retrieve MT message", "error", err, "name", name)
		return
	}
	g.logger.Info("MT message received", "name", name, "sin", msg.SIN, "size", msg.Size())
	if g.journal != nil {
		if _, err := g.journal.Received(context.WithoutCancel(ctx), msg); err != nil {
			g.logger.Error("Failed to journal MT message", "error", err, "name", name)
		}
	}
	for _, s := range g.sinks {
		s.Received(msg)
	}
}
