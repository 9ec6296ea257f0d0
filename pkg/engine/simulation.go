// pkg/engine/simulation.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/control"
	"github.com/opd-ai/go-gimbal/pkg/event"
	"github.com/opd-ai/go-gimbal/pkg/logging"
	"github.com/opd-ai/go-gimbal/pkg/physics"
	"github.com/opd-ai/go-gimbal/pkg/telemetry"
)

// ErrNotRunning is returned by Tick and Start after the simulation has
// stopped on an error. The failure is permanent for this Simulation.
var ErrNotRunning = errors.New("engine: simulation stopped")

// Options holds the optional collaborators of a Simulation.
type Options struct {
	Bus    *event.Bus      // created when nil
	Sink   telemetry.Sink  // optional
	Logger *logging.Logger // logging.NewLogger() when nil
	RunID  string          // generated when empty
}

// Simulation owns the craft and drives it one fixed step per tick. It is the
// single mutator of the craft; other goroutines read through Snapshot.
type Simulation struct {
	mu       sync.RWMutex
	craft    *physics.Craft
	model    physics.Model
	pilot    *control.Pilot
	held     control.Held
	timeStep float64
	tickRate int
	tick     uint64
	running  bool
	err      error

	runID       string
	bus         *event.Bus
	sink        telemetry.Sink
	sinkFailing bool
	logger      *logging.Logger
	now         func() time.Time
}

// NewSimulation creates a simulation with a craft at rest at the origin.
func NewSimulation(cfg *config.SimConfig, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	craft, err := physics.NewCraft(cfg.Craft.Mass, cfg.Craft.LeverLength)
	if err != nil {
		return nil, err
	}
	model, err := cfg.Model()
	if err != nil {
		return nil, err
	}
	stabilizer, err := cfg.Stabilizer()
	if err != nil {
		return nil, err
	}

	if opts.Bus == nil {
		opts.Bus = event.NewEventBus()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger()
	}
	if opts.RunID == "" {
		opts.RunID = logging.NewRunID()
	}

	return &Simulation{
		craft:    craft,
		model:    model,
		pilot:    control.NewPilot(stabilizer),
		timeStep: cfg.TimeStep(),
		tickRate: cfg.Loop.TickRate,
		runID:    opts.RunID,
		bus:      opts.Bus,
		sink:     opts.Sink,
		logger:   opts.Logger,
		now:      time.Now,
	}, nil
}

// RunID returns the identifier of this run
func (s *Simulation) RunID() string {
	return s.runID
}

// EventBus returns the bus the simulation publishes on
func (s *Simulation) EventBus() *event.Bus {
	return s.bus
}

// TimeStep returns the fixed step in seconds
func (s *Simulation) TimeStep() float64 {
	return s.timeStep
}

// Context returns ctx tagged with the run ID for logging.
func (s *Simulation) Context(ctx context.Context) context.Context {
	return logging.WithRunID(ctx, s.runID)
}

// Press adds a control to the held set.
func (s *Simulation) Press(c control.Control) {
	s.mu.Lock()
	held := s.held.Press(c)
	s.mu.Unlock()
	s.SetHeld(held)
}

// Release removes a control from the held set.
func (s *Simulation) Release(c control.Control) {
	s.mu.Lock()
	held := s.held.Release(c)
	s.mu.Unlock()
	s.SetHeld(held)
}

// SetHeld replaces the held set. A ControlsChanged event is published when it differs.
func (s *Simulation) SetHeld(held control.Held) {
	s.mu.Lock()
	previous := s.held
	s.held = held
	s.mu.Unlock()

	if previous != held {
		s.bus.Publish(event.NewControlsEvent(s, previous.String(), held.String()))
	}
}

// Held returns the current held set
func (s *Simulation) Held() control.Held {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.held
}

// Snapshot returns a copy of the craft state.
func (s *Simulation) Snapshot() physics.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.craft.Snapshot()
}

// Ticks returns the number of completed ticks
func (s *Simulation) Ticks() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Running reports whether the simulation has been started and not stopped.
func (s *Simulation) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Err returns the error that stopped the simulation, if any.
func (s *Simulation) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Start marks the simulation running and publishes SimulationStarted.
// A simulation that failed a step stays failed: Start returns ErrNotRunning
// wrapping the step error and leaves it stopped.
func (s *Simulation) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.err; err != nil {
		s.mu.Unlock()
		s.logger.Warn(s.Context(ctx), "refusing to restart a failed simulation", "error", err)
		return fmt.Errorf("%w: %w", ErrNotRunning, err)
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info(s.Context(ctx), "simulation started",
		"time_step", s.timeStep,
		"tick_rate", s.tickRate,
	)
	s.bus.Publish(event.NewLifecycleEvent(event.SimulationStarted, s, s.runID, 0, nil))
	return nil
}

// Stop marks the simulation stopped, flushes telemetry and publishes
// SimulationStopped with the error that ended the run, if any.
func (s *Simulation) Stop(ctx context.Context) {
	s.mu.Lock()
	s.running = false
	ticks, runErr := s.tick, s.err
	s.mu.Unlock()

	ctx = s.Context(ctx)
	if s.sink != nil {
		if err := s.sink.Flush(ctx); err != nil {
			s.logger.Error(ctx, "failed to flush telemetry", err)
		}
	}

	if runErr != nil {
		s.logger.Error(ctx, "simulation stopped", runErr, "ticks", ticks)
	} else {
		s.logger.Info(ctx, "simulation stopped", "ticks", ticks)
	}
	s.bus.Publish(event.NewLifecycleEvent(event.SimulationStopped, s, s.runID, ticks, runErr))
}

// Tick advances the craft by one fixed step: the pilot sets the actuator
// rates from the held set (engaging the stabilizer on idle frames), then the
// integrator steps the craft.
func (s *Simulation) Tick(ctx context.Context) (physics.ClampReport, error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return physics.ClampReport{}, ErrNotRunning
	}

	angularVelocity := s.craft.AngularVelocity
	stabilized, target := s.pilot.Drive(s.craft, s.held)
	gimbalRate := s.craft.GimbalRate

	report, err := s.model.Step(s.craft, s.timeStep)
	s.tick++
	tick := s.tick
	held := s.held
	snapshot := s.craft.Snapshot()
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()

	ctx = s.Context(ctx)
	if err != nil {
		s.logger.Error(ctx, "craft step failed", err, "tick", tick)
		return report, logging.WrapError(err, "tick %d", tick)
	}

	if stabilized {
		s.bus.Publish(event.NewStabilizerEvent(s, tick, angularVelocity, target, gimbalRate))
	}
	s.publishReport(tick, snapshot, report)

	if s.sink != nil {
		s.record(ctx, telemetry.Sample{
			Tick:       tick,
			Time:       s.now(),
			State:      snapshot,
			Report:     report,
			Held:       held,
			Stabilized: stabilized,
			Target:     target,
		})
	}

	return report, nil
}

func (s *Simulation) publishReport(tick uint64, snapshot physics.Snapshot, report physics.ClampReport) {
	if report.WrappedX || report.WrappedY {
		s.bus.Publish(event.NewTickEvent(event.PositionWrapped, s, tick, snapshot, report))
	}
	if report.GimbalSaturated {
		s.bus.Publish(event.NewTickEvent(event.GimbalSaturated, s, tick, snapshot, report))
	}
	if report.ThrustSaturated {
		s.bus.Publish(event.NewTickEvent(event.ThrustSaturated, s, tick, snapshot, report))
	}
	s.bus.Publish(event.NewTickEvent(event.TickCompleted, s, tick, snapshot, report))
}

// record forwards a sample to the sink. Failures are logged once per outage
// so a dead exporter does not flood the log at the tick rate.
func (s *Simulation) record(ctx context.Context, sample telemetry.Sample) {
	err := s.sink.Record(ctx, sample)
	switch {
	case err != nil && !s.sinkFailing:
		s.sinkFailing = true
		s.logger.Warn(ctx, "telemetry write failed", "error", err.Error(), "tick", sample.Tick)
	case err == nil && s.sinkFailing:
		s.sinkFailing = false
		s.logger.Info(ctx, "telemetry write recovered", "tick", sample.Tick)
	}
}

// Interval returns the wall-clock duration of one tick.
func (s *Simulation) Interval() time.Duration {
	return time.Second / time.Duration(s.tickRate)
}

// Run ticks the simulation at the configured tick rate until ctx is cancelled
// or a step fails.
func (s *Simulation) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop(context.WithoutCancel(ctx))

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				return err
			}
		}
	}
}

// RunTicks steps the simulation n times as fast as possible, applying the
// script's held set before each tick. A nil script leaves the held set alone.
func (s *Simulation) RunTicks(ctx context.Context, n uint64, script Script) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop(context.WithoutCancel(ctx))

	for i := uint64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if script != nil {
			s.SetHeld(script.HeldAt(s.Ticks()))
		}
		if _, err := s.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}
