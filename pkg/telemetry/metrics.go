// pkg/telemetry/metrics.go
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/opd-ai/go-gimbal/pkg/telemetry"

// Metrics publishes tick counters and a thrust histogram through OpenTelemetry.
// Without a configured meter provider the global no-op provider is used.
type Metrics struct {
	ticks      metric.Int64Counter
	wraps      metric.Int64Counter
	saturation metric.Int64Counter
	stabilizer metric.Int64Counter
	thrust     metric.Float64Histogram
}

// NewMetrics creates the instruments on meter, or on the global meter when nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	m := &Metrics{}
	var err error

	m.ticks, err = meter.Int64Counter(
		"gimbal.ticks",
		metric.WithDescription("Total simulation ticks stepped"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticks counter: %w", err)
	}

	m.wraps, err = meter.Int64Counter(
		"gimbal.wraps",
		metric.WithDescription("Boundary wraps applied to position and angle"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wraps counter: %w", err)
	}

	m.saturation, err = meter.Int64Counter(
		"gimbal.saturations",
		metric.WithDescription("Ticks on which an actuator limit engaged"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create saturation counter: %w", err)
	}

	m.stabilizer, err = meter.Int64Counter(
		"gimbal.stabilizer.engagements",
		metric.WithDescription("Frames on which the stabilizer adjusted the gimbal rate"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stabilizer counter: %w", err)
	}

	m.thrust, err = meter.Float64Histogram(
		"gimbal.thrust",
		metric.WithDescription("Thrust after each tick"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create thrust histogram: %w", err)
	}

	return m, nil
}

// Record counts one tick.
func (m *Metrics) Record(ctx context.Context, s Sample) error {
	m.ticks.Add(ctx, 1)
	m.thrust.Record(ctx, s.State.Thrust)

	r := s.Report
	if r.WrappedX {
		m.wraps.Add(ctx, 1, metric.WithAttributes(attribute.String("axis", "x")))
	}
	if r.WrappedY {
		m.wraps.Add(ctx, 1, metric.WithAttributes(attribute.String("axis", "y")))
	}
	if r.AngleWrapped {
		m.wraps.Add(ctx, 1, metric.WithAttributes(attribute.String("axis", "angle")))
	}
	if r.GimbalSaturated {
		m.saturation.Add(ctx, 1, metric.WithAttributes(attribute.String("actuator", "gimbal")))
	}
	if r.ThrustSaturated {
		m.saturation.Add(ctx, 1, metric.WithAttributes(attribute.String("actuator", "thrust")))
	}
	if s.Stabilized {
		m.stabilizer.Add(ctx, 1)
	}
	return nil
}

// Flush is a no-op; export is driven by the meter provider.
func (m *Metrics) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *Metrics) Close() error { return nil }
