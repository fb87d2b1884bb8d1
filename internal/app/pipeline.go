package app

import (
	"context"
	"log/slog"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/internal/session"
)

// Publisher sends a measurement somewhere outside the process.
type Publisher interface {
	PublishMeasurement(device string, m bleframe.Measurement) error
}

// Recorder persists a measurement.
type Recorder interface {
	Insert(ctx context.Context, device string, m bleframe.Measurement) error
}

// MeasurementObserver is told about every decoded measurement.
type MeasurementObserver interface {
	ObserveMeasurement(device string, m bleframe.Measurement)
}

// Pipeline fans decoded measurements out to the session and the optional sinks.
// Nil sinks are skipped.
type Pipeline struct {
	Device    string
	Session   *session.Session
	Recorder  Recorder
	Publisher Publisher
	Observer  MeasurementObserver
}

// Handle records one measurement. Sink failures are logged, never returned.
func (p *Pipeline) Handle(ctx context.Context, m bleframe.Measurement) {
	if p.Session != nil {
		p.Session.Record(m)
	}
	if p.Observer != nil {
		p.Observer.ObserveMeasurement(p.Device, m)
	}
	if p.Recorder != nil {
		if err := p.Recorder.Insert(ctx, p.Device, m); err != nil {
			slog.Error("store measurement", "device", p.Device, "seq", m.SeqNb, "error", err)
		}
	}
	if p.Publisher != nil {
		if err := p.Publisher.PublishMeasurement(p.Device, m); err != nil {
			slog.Warn("publish measurement", "device", p.Device, "seq", m.SeqNb, "error", err)
		}
	}

	slog.Debug("measurement",
		"device", p.Device,
		"seq", m.SeqNb,
		"type", m.Type,
		"value", m.Value,
	)
}

// Consume reads updates until the channel is closed or ctx is done. It returns
// the number of measurements handled and the last error the device reported.
func (p *Pipeline) Consume(ctx context.Context, updates <-chan bleframe.Update) (int, error) {
	var (
		n       int
		lastErr error
	)
	for {
		select {
		case <-ctx.Done():
			return n, lastErr
		case u, ok := <-updates:
			if !ok {
				return n, lastErr
			}
			if u.Error != nil {
				slog.Error("device error", "device", p.Device, "error", u.Error)
				lastErr = u.Error
				continue
			}
			p.Handle(ctx, u.Measurement)
			n++
		}
	}
}
