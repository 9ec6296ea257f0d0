// pkg/telemetry/store.go
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/logging"
)

var (
	// ErrRecorderDisabled is returned by OpenStore when no driver is configured.
	ErrRecorderDisabled = errors.New("telemetry: flight recorder disabled")

	// ErrNoActiveRun is returned when samples are recorded before BeginRun.
	ErrNoActiveRun = errors.New("telemetry: no active flight run")

	errInfluxUnavailable = errors.New("influx server not ready")
)

// Run status values stored on FlightRun.
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// FlightRun is one simulation run.
type FlightRun struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   *time.Time     `json:"endedAt"`
	Ticks     uint64         `json:"ticks"`
	Status    string         `json:"status" gorm:"size:16"`
	Error     string         `json:"error"`
	Config    datatypes.JSON `json:"config"`
}

// TickSample is one recorded tick of a run.
type TickSample struct {
	ID              uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	RunID           string    `json:"runId" gorm:"size:36;index:idx_run_tick"`
	Tick            uint64    `json:"tick" gorm:"index:idx_run_tick"`
	Time            time.Time `json:"time"`
	PositionX       float64   `json:"positionX"`
	PositionY       float64   `json:"positionY"`
	VelocityX       float64   `json:"velocityX"`
	VelocityY       float64   `json:"velocityY"`
	Angle           float64   `json:"angle"`
	AngularVelocity float64   `json:"angularVelocity"`
	Thrust          float64   `json:"thrust"`
	ThrottleRate    float64   `json:"throttleRate"`
	GimbalAngle     float64   `json:"gimbalAngle"`
	GimbalRate      float64   `json:"gimbalRate"`
	Held            string    `json:"held" gorm:"size:64"`
	Stabilized      bool      `json:"stabilized"`
	Wrapped         bool      `json:"wrapped"`
	GimbalSaturated bool      `json:"gimbalSaturated"`
	ThrustSaturated bool      `json:"thrustSaturated"`
}

func newTickSample(runID string, s Sample) TickSample {
	st := s.State
	return TickSample{
		RunID:           runID,
		Tick:            s.Tick,
		Time:            s.Time,
		PositionX:       st.Position.X,
		PositionY:       st.Position.Y,
		VelocityX:       st.Velocity.X,
		VelocityY:       st.Velocity.Y,
		Angle:           st.Angle,
		AngularVelocity: st.AngularVelocity,
		Thrust:          st.Thrust,
		ThrottleRate:    st.ThrottleRate,
		GimbalAngle:     st.GimbalAngle,
		GimbalRate:      st.GimbalRate,
		Held:            s.Held.String(),
		Stabilized:      s.Stabilized,
		Wrapped:         s.Report.Wrapped(),
		GimbalSaturated: s.Report.GimbalSaturated,
		ThrustSaturated: s.Report.ThrustSaturated,
	}
}

// Store is the flight recorder. Samples are buffered and written in batches,
// each batch in one transaction. While the database is unreachable the buffer
// holds at most one batch; older samples are dropped and counted.
type Store struct {
	db        *gorm.DB
	batchSize int
	every     int

	mu      sync.Mutex
	runID   string
	buffer  []TickSample
	dropped uint64
}

// OpenStore connects to the configured recorder database and migrates the
// schema. Driver "sqlite" takes a file path (or "file::memory:?cache=shared")
// as DSN; driver "postgres" takes a libpq connection string.
func OpenStore(cfg config.RecorderConfig) (*Store, error) {
	gormConfig := &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        cfg.BatchSize,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "":
		return nil, ErrRecorderDisabled
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		})
	default:
		return nil, fmt.Errorf("telemetry: unknown recorder driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, logging.WrapError(err, "failed to open %s recorder", cfg.Driver)
	}
	if err := db.AutoMigrate(&FlightRun{}, &TickSample{}); err != nil {
		return nil, logging.WrapError(err, "failed to migrate recorder schema")
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 1
	}
	return &Store{
		db:        db,
		batchSize: batch,
		every:     cfg.Every,
		buffer:    make([]TickSample, 0, batch),
	}, nil
}

// BeginRun creates the FlightRun row; settings is stored as a JSON snapshot.
func (s *Store) BeginRun(ctx context.Context, runID string, settings any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return logging.WrapError(err, "failed to encode run settings")
	}

	run := FlightRun{
		ID:        runID,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
		Config:    datatypes.JSON(raw),
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return logging.WrapError(err, "failed to create flight run %s", runID)
	}

	s.mu.Lock()
	s.runID = runID
	s.buffer = s.buffer[:0]
	s.dropped = 0
	s.mu.Unlock()
	return nil
}

// Record buffers the sample when it falls on the recording interval and
// writes the buffer once it reaches the batch size.
func (s *Store) Record(ctx context.Context, sample Sample) error {
	if !sampled(sample.Tick, s.every) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runID == "" {
		return ErrNoActiveRun
	}
	s.buffer = append(s.buffer, newTickSample(s.runID, sample))
	if over := len(s.buffer) - s.batchSize; over > 0 {
		s.buffer = append(s.buffer[:0], s.buffer[over:]...)
		s.dropped += uint64(over)
	}
	if len(s.buffer) >= s.batchSize {
		return s.flushLocked(ctx)
	}
	return nil
}

// Flush writes all buffered samples.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	if len(s.buffer) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(s.buffer, s.batchSize).Error
	})
	if err != nil {
		// rolled back; let the retry assign fresh keys
		for i := range s.buffer {
			s.buffer[i].ID = 0
		}
		return logging.WrapError(err, "failed to write %d samples", len(s.buffer))
	}
	s.buffer = s.buffer[:0]
	return nil
}

// Dropped returns how many samples were discarded because the database could
// not keep up.
func (s *Store) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// FinishRun flushes the buffer and closes out the active run.
func (s *Store) FinishRun(ctx context.Context, ticks uint64, runErr error) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	runID := s.runID
	s.runID = ""
	s.mu.Unlock()
	if runID == "" {
		return ErrNoActiveRun
	}

	status, message := RunStatusFinished, ""
	if runErr != nil {
		status, message = RunStatusFailed, runErr.Error()
	}
	err := s.db.WithContext(ctx).Model(&FlightRun{ID: runID}).Updates(map[string]any{
		"ended_at": time.Now(),
		"ticks":    ticks,
		"status":   status,
		"error":    message,
	}).Error
	return logging.WrapError(err, "failed to finish flight run %s", runID)
}

// Run loads a flight run by ID.
func (s *Store) Run(ctx context.Context, runID string) (*FlightRun, error) {
	var run FlightRun
	if err := s.db.WithContext(ctx).First(&run, "id = ?", runID).Error; err != nil {
		return nil, logging.WrapError(err, "failed to load flight run %s", runID)
	}
	return &run, nil
}

// Samples returns the recorded samples of a run in tick order.
func (s *Store) Samples(ctx context.Context, runID string) ([]TickSample, error) {
	var samples []TickSample
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("tick").
		Find(&samples).Error
	if err != nil {
		return nil, logging.WrapError(err, "failed to load samples for run %s", runID)
	}
	return samples, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return logging.WrapError(err, "failed to access sql interface")
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection without flushing.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return logging.WrapError(err, "failed to access sql interface")
	}
	return sqlDB.Close()
}

// RunSummary condenses a recorded run.
type RunSummary struct {
	Run             FlightRun
	Samples         int
	FirstTick       uint64
	LastTick        uint64
	MaxThrust       float64
	Stabilized      int // samples on which the stabilizer ran
	Wrapped         int
	GimbalSaturated int
	ThrustSaturated int
}

// Summarize loads a run and aggregates its samples.
func (s *Store) Summarize(ctx context.Context, runID string) (*RunSummary, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	samples, err := s.Samples(ctx, runID)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{Run: *run, Samples: len(samples)}
	for i, sample := range samples {
		if i == 0 {
			summary.FirstTick = sample.Tick
			summary.MaxThrust = sample.Thrust
		}
		summary.LastTick = sample.Tick
		summary.MaxThrust = max(summary.MaxThrust, sample.Thrust)
		if sample.Stabilized {
			summary.Stabilized++
		}
		if sample.Wrapped {
			summary.Wrapped++
		}
		if sample.GimbalSaturated {
			summary.GimbalSaturated++
		}
		if sample.ThrustSaturated {
			summary.ThrustSaturated++
		}
	}
	return summary, nil
}
