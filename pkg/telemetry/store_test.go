// pkg/telemetry/store_test.go
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/control"
	"github.com/opd-ai/go-gimbal/pkg/physics"
)

func openTestStore(t *testing.T, batch, every int) *Store {
	t.Helper()
	store, err := OpenStore(config.RecorderConfig{
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "flight.db"),
		BatchSize: batch,
		Every:     every,
	})
	if err != nil {
		t.Fatalf("OpenStore() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleAt(tick uint64) Sample {
	return Sample{
		Tick: tick,
		Time: time.Unix(0, int64(tick)*int64(time.Second/60)),
		State: physics.Snapshot{
			Mass:     0.1,
			Position: physics.Vector2D{X: float64(tick), Y: -float64(tick)},
			Thrust:   10 * float64(tick),
		},
		Held: control.Held(0).Press(control.ThrottleUp),
	}
}

func TestOpenStore_Drivers(t *testing.T) {
	if _, err := OpenStore(config.RecorderConfig{}); !errors.Is(err, ErrRecorderDisabled) {
		t.Errorf("empty driver error = %v, expected ErrRecorderDisabled", err)
	}
	if _, err := OpenStore(config.RecorderConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestStore_RecordsRun(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 4, 1)

	settings := config.DefaultConfig()
	if err := store.BeginRun(ctx, "run-a", settings); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	for tick := uint64(1); tick <= 10; tick++ {
		if err := store.Record(ctx, sampleAt(tick)); err != nil {
			t.Fatalf("Record(%d) failed: %v", tick, err)
		}
	}

	// two full batches are on disk, two samples still buffered
	samples, err := store.Samples(ctx, "run-a")
	if err != nil {
		t.Fatalf("Samples() failed: %v", err)
	}
	if len(samples) != 8 {
		t.Errorf("expected 8 flushed samples before FinishRun, got %d", len(samples))
	}

	if err := store.FinishRun(ctx, 10, nil); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	samples, err = store.Samples(ctx, "run-a")
	if err != nil {
		t.Fatalf("Samples() failed: %v", err)
	}
	if len(samples) != 10 {
		t.Fatalf("expected 10 samples, got %d", len(samples))
	}
	last := samples[9]
	if last.Tick != 10 || last.PositionX != 10 || last.PositionY != -10 || last.Thrust != 100 {
		t.Errorf("unexpected last sample %+v", last)
	}
	if last.Held != "throttle-up" {
		t.Errorf("Held = %q, expected throttle-up", last.Held)
	}

	run, err := store.Run(ctx, "run-a")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if run.Status != RunStatusFinished || run.Ticks != 10 || run.EndedAt == nil {
		t.Errorf("unexpected run %+v", run)
	}

	var stored config.SimConfig
	if err := json.Unmarshal(run.Config, &stored); err != nil {
		t.Fatalf("config snapshot is not JSON: %v", err)
	}
	if stored.Craft.Mass != settings.Craft.Mass {
		t.Errorf("config snapshot mass = %g, expected %g", stored.Craft.Mass, settings.Craft.Mass)
	}
}

func TestStore_RecordEvery(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 100, 3)

	if err := store.BeginRun(ctx, "run-b", nil); err != nil {
		t.Fatal(err)
	}
	for tick := uint64(1); tick <= 9; tick++ {
		if err := store.Record(ctx, sampleAt(tick)); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.FinishRun(ctx, 9, nil); err != nil {
		t.Fatal(err)
	}

	samples, err := store.Samples(ctx, "run-b")
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{3, 6, 9}
	if len(samples) != len(want) {
		t.Fatalf("expected ticks %v, got %d samples", want, len(samples))
	}
	for i, tick := range want {
		if samples[i].Tick != tick {
			t.Errorf("sample %d tick = %d, expected %d", i, samples[i].Tick, tick)
		}
	}
}

func TestStore_FailedRun(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 10, 1)

	if err := store.BeginRun(ctx, "run-c", nil); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, 3, physics.ErrNonFiniteState); err != nil {
		t.Fatal(err)
	}

	run, err := store.Run(ctx, "run-c")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusFailed || run.Error != physics.ErrNonFiniteState.Error() {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestStore_NoActiveRun(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 10, 1)

	if err := store.Record(ctx, sampleAt(1)); !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("Record() error = %v, expected ErrNoActiveRun", err)
	}
	if err := store.FinishRun(ctx, 0, nil); !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("FinishRun() error = %v, expected ErrNoActiveRun", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

func TestStore_OutageKeepsBufferBounded(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 10, 1)

	if err := store.BeginRun(ctx, "run-outage", nil); err != nil {
		t.Fatal(err)
	}
	sqlDB, err := store.db.DB()
	if err != nil {
		t.Fatal(err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatal(err)
	}

	failures := 0
	for tick := uint64(1); tick <= 1000; tick++ {
		if err := store.Record(ctx, sampleAt(tick)); err != nil {
			failures++
		}
	}

	if failures != 991 {
		t.Errorf("expected a failed write on every tick from 10 on, got %d failures", failures)
	}
	store.mu.Lock()
	buffered := len(store.buffer)
	oldest, newest := store.buffer[0].Tick, store.buffer[buffered-1].Tick
	store.mu.Unlock()
	if buffered != 10 {
		t.Errorf("buffer holds %d samples, expected at most one batch of 10", buffered)
	}
	if oldest != 991 || newest != 1000 {
		t.Errorf("buffer spans ticks %d..%d, expected the newest 991..1000", oldest, newest)
	}
	if store.Dropped() != 990 {
		t.Errorf("Dropped() = %d, expected 990", store.Dropped())
	}
}

func TestStore_RetryAfterFailedBatchWritesNoDuplicates(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 4, 1)

	if err := store.BeginRun(ctx, "run-retry", nil); err != nil {
		t.Fatal(err)
	}
	// a row with the key the batch would take makes the transaction fail part way
	if err := store.db.Create(&TickSample{ID: 3, RunID: "other", Tick: 99}).Error; err != nil {
		t.Fatal(err)
	}
	for tick := uint64(1); tick <= 3; tick++ {
		if err := store.Record(ctx, sampleAt(tick)); err != nil {
			t.Fatal(err)
		}
	}
	store.mu.Lock()
	for i := range store.buffer {
		store.buffer[i].ID = uint(i + 1)
	}
	store.mu.Unlock()

	if err := store.Flush(ctx); err == nil {
		t.Fatal("expected the conflicting batch to fail")
	}
	samples, err := store.Samples(ctx, "run-retry")
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 0 {
		t.Fatalf("failed batch left %d rows behind", len(samples))
	}

	if err := store.FinishRun(ctx, 3, nil); err != nil {
		t.Fatalf("FinishRun() after retry failed: %v", err)
	}
	samples, err = store.Samples(ctx, "run-retry")
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 {
		t.Errorf("expected each tick stored once, got %d rows", len(samples))
	}
}

func TestStore_Summarize(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, 8, 1)

	if err := store.BeginRun(ctx, "run-sum", nil); err != nil {
		t.Fatal(err)
	}
	for tick := uint64(1); tick <= 5; tick++ {
		s := sampleAt(tick)
		s.Stabilized = tick%2 == 0
		s.Report.ThrustSaturated = tick == 5
		s.Report.WrappedX = tick == 3
		if err := store.Record(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.FinishRun(ctx, 5, nil); err != nil {
		t.Fatal(err)
	}

	summary, err := store.Summarize(ctx, "run-sum")
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}
	if summary.Samples != 5 || summary.FirstTick != 1 || summary.LastTick != 5 {
		t.Errorf("unexpected tick range %+v", summary)
	}
	if summary.MaxThrust != 50 {
		t.Errorf("MaxThrust = %g, expected 50", summary.MaxThrust)
	}
	if summary.Stabilized != 2 || summary.Wrapped != 1 || summary.ThrustSaturated != 1 || summary.GimbalSaturated != 0 {
		t.Errorf("unexpected counts %+v", summary)
	}
	if summary.Run.Status != RunStatusFinished {
		t.Errorf("Run.Status = %q", summary.Run.Status)
	}

	if _, err := store.Summarize(ctx, "missing"); err == nil {
		t.Error("expected an error for an unknown run")
	}
}
