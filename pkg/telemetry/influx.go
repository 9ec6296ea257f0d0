// pkg/telemetry/influx.go
package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/logging"
)

// Measurement is the InfluxDB measurement name for craft samples.
const Measurement = "craft_state"

// InfluxExporter writes every Nth sample to an InfluxDB bucket.
type InfluxExporter struct {
	client  influxdb2.Client
	writer  influxdb2_api.WriteAPIBlocking
	breaker *Breaker
	runID   string
	every   int
}

// NewInfluxExporter connects a blocking write API for the configured bucket.
// Writes go through breaker; a nil breaker is built from default settings.
func NewInfluxExporter(cfg config.InfluxConfig, breaker *Breaker, runID string) *InfluxExporter {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(5),
	)
	if breaker == nil {
		breaker = NewBreaker("influx", config.DefaultConfig().Telemetry.Breaker, nil)
	}
	return &InfluxExporter{
		client:  client,
		writer:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		breaker: breaker,
		runID:   runID,
		every:   cfg.Every,
	}
}

// Ping checks that the InfluxDB server is reachable.
func (e *InfluxExporter) Ping(ctx context.Context) error {
	ok, err := e.client.Ping(ctx)
	if err != nil {
		return logging.WrapError(err, "influx ping")
	}
	if !ok {
		return logging.WrapError(errInfluxUnavailable, "influx ping")
	}
	return nil
}

// Record writes the sample when it falls on the export interval.
func (e *InfluxExporter) Record(ctx context.Context, s Sample) error {
	if !sampled(s.Tick, e.every) {
		return nil
	}
	point := NewPoint(e.runID, s)
	return e.breaker.Execute(ctx, func() error {
		return e.writer.WritePoint(ctx, point)
	})
}

// Flush sends any points held by the write API.
func (e *InfluxExporter) Flush(ctx context.Context) error {
	return e.writer.Flush(ctx)
}

// Close releases the HTTP client.
func (e *InfluxExporter) Close() error {
	e.client.Close()
	return nil
}

// Breaker returns the circuit breaker guarding writes.
func (e *InfluxExporter) Breaker() *Breaker {
	return e.breaker
}

// NewPoint converts a sample into an InfluxDB point tagged with the run ID.
func NewPoint(runID string, s Sample) *influxdb2_write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	st := s.State
	return influxdb2.NewPointWithMeasurement(Measurement).
		AddTag("run_id", runID).
		AddTag("held", s.Held.String()).
		AddField("tick", int64(s.Tick)).
		AddField("x", st.Position.X).
		AddField("y", st.Position.Y).
		AddField("vx", st.Velocity.X).
		AddField("vy", st.Velocity.Y).
		AddField("angle", st.Angle).
		AddField("angular_velocity", st.AngularVelocity).
		AddField("thrust", st.Thrust).
		AddField("gimbal_angle", st.GimbalAngle).
		AddField("gimbal_rate", st.GimbalRate).
		AddField("stabilized", s.Stabilized).
		SetTime(ts)
}
