// cmd/headless/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/engine"
	"github.com/opd-ai/go-gimbal/pkg/event"
	"github.com/opd-ai/go-gimbal/pkg/health"
	"github.com/opd-ai/go-gimbal/pkg/logging"
	"github.com/opd-ai/go-gimbal/pkg/render"
	"github.com/opd-ai/go-gimbal/pkg/telemetry"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "config.json", "Path to configuration file")
	createDefault := flag.Bool("default", false, "Create default configuration file")
	ticks := flag.Uint64("ticks", 0, "Number of ticks to run as fast as possible (0 runs in real time until interrupted)")
	scriptFlag := flag.String("script", "", "Control schedule, e.g. \"0=throttle-up;120=gimbal-left+throttle-up;300=none\" (real-time runs hold the tick 0 cue)")
	replay := flag.String("replay", "", "Print the summary of a recorded run ID and exit")
	flag.Parse()

	// Create default configuration file if requested
	if *createDefault {
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err,
				"config_path", *configPath,
			)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file",
			"config_path", *configPath,
		)
		return
	}

	simConfig, err := loadConfig(ctx, logger, *configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err,
			"config_path", *configPath,
		)
		os.Exit(1)
	}

	if *replay != "" {
		if err := printRunSummary(ctx, logger, simConfig.Telemetry.Recorder, *replay); err != nil {
			logger.Error(ctx, "Failed to summarize run", err, "run_id", *replay)
			os.Exit(1)
		}
		return
	}

	script, err := engine.ParseScript(*scriptFlag)
	if err != nil {
		logger.Error(ctx, "Invalid control script", err, "script", *scriptFlag)
		os.Exit(1)
	}

	// Switch to the configured logger
	logger, err = logging.New(logging.Options{
		Level:       simConfig.Logging.Level,
		GelfAddress: simConfig.Logging.GelfAddress,
	})
	if err != nil {
		logging.NewLogger().Error(ctx, "Failed to create logger", err)
		os.Exit(1)
	}
	defer logger.Close()

	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)

	// Metric dumps go to stderr so they stay apart from the stdout logs
	pipeline, err := telemetry.OpenPipeline(simConfig.Telemetry, runID, logger,
		telemetry.WithMetricsWriter(os.Stderr),
	)
	if err != nil {
		logger.Error(ctx, "Failed to open telemetry", err)
		os.Exit(1)
	}
	defer pipeline.Close()
	if pipeline.MeterProvider != nil {
		otel.SetMeterProvider(pipeline.MeterProvider.Provider())
	}

	sim, err := engine.NewSimulation(simConfig, engine.Options{
		Sink:   pipeline.Sink(),
		Logger: logger,
		RunID:  runID,
	})
	if err != nil {
		logger.Error(ctx, "Failed to create simulation", err)
		os.Exit(1)
	}

	if err := pipeline.Begin(ctx, simConfig); err != nil {
		logger.Error(ctx, "Failed to begin flight recording", err)
		os.Exit(1)
	}

	healthServer := startHealthServer(ctx, logger, sim, pipeline)

	// Frames are only logged at DEBUG level
	frames := render.NewNullRenderer(logger)
	viewport := render.NewViewport(simConfig.Display)
	sim.EventBus().Subscribe(event.TickCompleted, func(e event.Event) {
		if tick, ok := e.(*event.TickEvent); ok {
			frames.Clear()
			frames.Draw(render.ScreenFrame(tick.State, viewport))
			frames.Present()
		}
	})

	// Handle graceful shutdown
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting simulation",
		"ticks", *ticks,
		"script", script.String(),
	)
	var runErr error
	if *ticks > 0 {
		runErr = sim.RunTicks(runCtx, *ticks, script)
	} else {
		if script != nil {
			sim.SetHeld(script.HeldAt(0))
		}
		runErr = sim.Run(runCtx)
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := pipeline.Finish(shutdownCtx, sim.Ticks(), runErr); err != nil {
		logger.Error(ctx, "Failed to finish flight recording", err)
	}

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Health check server shutdown failed", err)
	}

	logTelemetry(shutdownCtx, logger, pipeline, runID)

	final := sim.Snapshot()
	logger.Info(ctx, "Final craft state",
		"ticks", sim.Ticks(),
		"frames", frames.Frames(),
		"x", final.Position.X,
		"y", final.Position.Y,
		"vx", final.Velocity.X,
		"vy", final.Velocity.Y,
		"angle", final.Angle,
		"angular_velocity", final.AngularVelocity,
		"thrust", final.Thrust,
		"gimbal_angle", final.GimbalAngle,
	)

	if runErr != nil {
		logger.Error(ctx, "Simulation failed", runErr)
		os.Exit(1)
	}
}

// logTelemetry reports what the recorder and exporter did during the run.
func logTelemetry(ctx context.Context, logger *logging.Logger, pipeline *telemetry.Pipeline, runID string) {
	if pipeline.Store != nil {
		summary, err := pipeline.Store.Summarize(ctx, runID)
		if err != nil {
			logger.Error(ctx, "Failed to summarize flight recording", err)
		} else {
			logRunSummary(ctx, logger, summary)
		}
		if dropped := pipeline.Store.Dropped(); dropped > 0 {
			logger.Warn(ctx, "Flight recorder dropped samples while the database was unavailable",
				"dropped", dropped,
			)
		}
	}

	if pipeline.Exporter != nil {
		breaker := pipeline.Exporter.Breaker()
		counts := breaker.Counts()
		logger.Info(ctx, "InfluxDB export",
			"breaker_state", breaker.State().String(),
			"requests", counts.Requests,
			"failures", counts.TotalFailures,
			"consecutive_failures", counts.ConsecutiveFailures,
		)
	}
}

// printRunSummary logs the summary of a run already in the flight recorder.
func printRunSummary(ctx context.Context, logger *logging.Logger, cfg config.RecorderConfig, runID string) error {
	store, err := telemetry.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Summarize(ctx, runID)
	if err != nil {
		return err
	}
	logRunSummary(ctx, logger, summary)
	return nil
}

func logRunSummary(ctx context.Context, logger *logging.Logger, summary *telemetry.RunSummary) {
	logger.Info(ctx, "Flight recording",
		"run_id", summary.Run.ID,
		"status", summary.Run.Status,
		"ticks", summary.Run.Ticks,
		"error", summary.Run.Error,
		"samples", summary.Samples,
		"first_tick", summary.FirstTick,
		"last_tick", summary.LastTick,
		"max_thrust", summary.MaxThrust,
		"stabilized", summary.Stabilized,
		"wrapped", summary.Wrapped,
		"gimbal_saturated", summary.GimbalSaturated,
		"thrust_saturated", summary.ThrustSaturated,
	)
}

// loadConfig reads the configuration file, falling back to defaults with
// environment overrides when the file does not exist.
func loadConfig(ctx context.Context, logger *logging.Logger, path string) (*config.SimConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info(ctx, "Configuration file not found, using default configuration",
			"config_path", path,
		)
		return config.LoadConfigFromEnv()
	}
	return config.LoadConfig(path)
}

// startHealthServer serves /health and /ready on GIMBAL_HEALTH_PORT.
func startHealthServer(ctx context.Context, logger *logging.Logger, sim *engine.Simulation, pipeline *telemetry.Pipeline) *http.Server {
	healthChecker := health.NewHealthChecker()
	healthChecker.AddCheck(health.NewSimulationHealthCheck(sim.Running, sim.Err))
	healthChecker.AddCheck(health.NewCraftStateHealthCheck(sim.Snapshot))
	healthChecker.AddCheck(health.NewMemoryHealthCheck(500, health.CurrentMemoryMB))
	if pipeline.Store != nil {
		healthChecker.AddCheck(health.NewPingHealthCheck("recorder", pipeline.Store.Ping))
	}
	if pipeline.Exporter != nil {
		healthChecker.AddCheck(health.NewPingHealthCheck("influx", pipeline.Exporter.Ping))
	}

	healthPort := "8080" // Default health check port
	if envPort := os.Getenv("GIMBAL_HEALTH_PORT"); envPort != "" {
		if _, err := strconv.Atoi(envPort); err == nil {
			healthPort = envPort
		}
	}

	healthServer := &http.Server{
		Addr:         ":" + healthPort,
		Handler:      healthChecker.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Starting health check server",
			"port", healthPort,
		)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Health check server failed", err)
		}
	}()
	return healthServer
}
