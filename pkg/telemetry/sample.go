// Package telemetry records flight data: OpenTelemetry counters, a gorm-backed
// flight recorder and an InfluxDB exporter guarded by a circuit breaker.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/opd-ai/go-gimbal/pkg/control"
	"github.com/opd-ai/go-gimbal/pkg/physics"
)

// Sample is the record produced by one simulation tick.
type Sample struct {
	Tick       uint64
	Time       time.Time
	State      physics.Snapshot
	Report     physics.ClampReport
	Held       control.Held
	Stabilized bool
	Target     float64 // stabilizer target gimbal angle, when Stabilized
}

// Sink consumes tick samples. Record is called from the simulation loop and
// should not block for long; Flush pushes out anything buffered.
type Sink interface {
	Record(ctx context.Context, s Sample) error
	Flush(ctx context.Context) error
	Close() error
}

// Multi fans a sample out to several sinks.
type Multi []Sink

// Record forwards the sample to every sink and joins their errors.
func (m Multi) Record(ctx context.Context, s Sample) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every sink.
func (m Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sampled reports whether tick falls on a recording interval of every ticks.
func sampled(tick uint64, every int) bool {
	return every <= 1 || tick%uint64(every) == 0
}
