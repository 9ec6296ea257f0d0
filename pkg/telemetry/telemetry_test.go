// pkg/telemetry/telemetry_test.go
package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/logging"
	"github.com/opd-ai/go-gimbal/pkg/physics"
)

func quietLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.New(logging.Options{Level: "ERROR", Output: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	return logger
}

type countingSink struct {
	records, flushes, closes int
	err                      error
}

func (c *countingSink) Record(ctx context.Context, s Sample) error { c.records++; return c.err }
func (c *countingSink) Flush(ctx context.Context) error            { c.flushes++; return c.err }
func (c *countingSink) Close() error                               { c.closes++; return c.err }

func TestMulti(t *testing.T) {
	ok := &countingSink{}
	failing := &countingSink{err: errors.New("down")}
	sinks := Multi{ok, failing}
	ctx := context.Background()

	if err := sinks.Record(ctx, Sample{}); err == nil || !strings.Contains(err.Error(), "down") {
		t.Errorf("Record() error = %v, expected joined failure", err)
	}
	_ = sinks.Flush(ctx)
	_ = sinks.Close()

	for i, s := range []*countingSink{ok, failing} {
		if s.records != 1 || s.flushes != 1 || s.closes != 1 {
			t.Errorf("sink %d calls = %+v, expected one of each", i, *s)
		}
	}
}

func TestSampled(t *testing.T) {
	tests := []struct {
		tick  uint64
		every int
		want  bool
	}{
		{1, 1, true},
		{1, 0, true},
		{5, 6, false},
		{6, 6, true},
		{12, 6, true},
	}
	for _, tt := range tests {
		if got := sampled(tt.tick, tt.every); got != tt.want {
			t.Errorf("sampled(%d, %d) = %v, want %v", tt.tick, tt.every, got, tt.want)
		}
	}
}

func TestMetrics_Record(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	s := Sample{
		Tick:       1,
		Report:     physics.ClampReport{WrappedX: true, GimbalSaturated: true, ThrustSaturated: true},
		Stabilized: true,
	}
	if err := m.Record(context.Background(), s); err != nil {
		t.Errorf("Record() failed: %v", err)
	}

	global, err := NewMetrics(nil)
	if err != nil || global == nil {
		t.Fatalf("NewMetrics(nil) = %v, %v", global, err)
	}
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := config.BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		MaxConsecutiveFails: 3,
	}
	b := NewBreaker("test", cfg, quietLogger(t))
	ctx := context.Background()
	boom := errors.New("boom")

	if err := b.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("successful operation returned %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d error = %v, expected boom", i, err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, expected open", b.State())
	}

	called := false
	err := b.Execute(ctx, func() error { called = true; return nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("open breaker error = %v, expected ErrOpenState", err)
	}
	if called {
		t.Error("operation should not run while the circuit is open")
	}
}

func TestNewPoint(t *testing.T) {
	s := sampleAt(6)
	s.Stabilized = true
	p := NewPoint("run-x", s)

	if p.Name() != Measurement {
		t.Errorf("Name() = %q, expected %q", p.Name(), Measurement)
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["run_id"] != "run-x" || tags["held"] != "throttle-up" {
		t.Errorf("tags = %v", tags)
	}
	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["x"] != 6.0 || fields["thrust"] != 60.0 || fields["stabilized"] != true {
		t.Errorf("fields = %v", fields)
	}
	if !p.Time().Equal(s.Time) {
		t.Errorf("Time() = %v, expected %v", p.Time(), s.Time)
	}
}

type influxStub struct {
	mu     sync.Mutex
	status int
	bodies []string
}

func (s *influxStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v2/write" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var body bytes.Buffer
	_, _ = body.ReadFrom(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, body.String())
	status := s.status
	s.mu.Unlock()
	w.WriteHeader(status)
}

func TestInfluxExporter_Writes(t *testing.T) {
	stub := &influxStub{status: http.StatusNoContent}
	server := httptest.NewServer(stub)
	defer server.Close()

	exporter := NewInfluxExporter(config.InfluxConfig{
		Enabled: true,
		URL:     server.URL,
		Org:     "gimbal",
		Bucket:  "flight",
		Every:   2,
	}, NewBreaker("influx-test", config.DefaultConfig().Telemetry.Breaker, quietLogger(t)), "run-y")
	defer exporter.Close()

	ctx := context.Background()
	for tick := uint64(1); tick <= 4; tick++ {
		if err := exporter.Record(ctx, sampleAt(tick)); err != nil {
			t.Fatalf("Record(%d) failed: %v", tick, err)
		}
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.bodies) != 2 {
		t.Fatalf("expected 2 writes (ticks 2 and 4), got %d", len(stub.bodies))
	}
	if !strings.HasPrefix(stub.bodies[0], Measurement+",") || !strings.Contains(stub.bodies[0], "run_id=run-y") {
		t.Errorf("unexpected line protocol %q", stub.bodies[0])
	}
}

func TestInfluxExporter_BreakerOpensOnFailures(t *testing.T) {
	stub := &influxStub{status: http.StatusBadRequest}
	server := httptest.NewServer(stub)
	defer server.Close()

	breakerConfig := config.BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		MaxConsecutiveFails: 2,
	}
	exporter := NewInfluxExporter(config.InfluxConfig{
		Enabled: true,
		URL:     server.URL,
		Org:     "gimbal",
		Bucket:  "flight",
		Every:   1,
	}, NewBreaker("influx-test", breakerConfig, quietLogger(t)), "run-z")
	defer exporter.Close()

	ctx := context.Background()
	for tick := uint64(1); tick <= 5; tick++ {
		if err := exporter.Record(ctx, sampleAt(tick)); err == nil {
			t.Errorf("Record(%d) should fail against a rejecting server", tick)
		}
	}

	if exporter.Breaker().State() != gobreaker.StateOpen {
		t.Errorf("breaker state = %v, expected open", exporter.Breaker().State())
	}
	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.bodies) != 2 {
		t.Errorf("expected writes to stop after 2 failures, server saw %d", len(stub.bodies))
	}
}
