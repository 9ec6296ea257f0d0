// cmd/gimbal/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/EngoEngine/engo"
	"github.com/gdamore/tcell/v2"
	"go.opentelemetry.io/otel"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/engine"
	"github.com/opd-ai/go-gimbal/pkg/logging"
	"github.com/opd-ai/go-gimbal/pkg/render"
	engorender "github.com/opd-ai/go-gimbal/pkg/render/engo"
	"github.com/opd-ai/go-gimbal/pkg/telemetry"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "config.json", "Path to configuration file")
	createDefault := flag.Bool("default", false, "Create default configuration file")
	renderer := flag.String("renderer", "engo", "Renderer type: 'engo' or 'terminal'")
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

	// Load configuration
	var simConfig *config.SimConfig
	var err error
	if _, statErr := os.Stat(*configPath); os.IsNotExist(statErr) {
		logger.Info(ctx, "Configuration file not found, using default configuration",
			"config_path", *configPath,
		)
		simConfig, err = config.LoadConfigFromEnv()
	} else {
		simConfig, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		logger.Error(ctx, "Failed to load configuration", err,
			"config_path", *configPath,
		)
		os.Exit(1)
	}

	// The terminal owns stdout, so logs go to stderr there
	output := os.Stdout
	if *renderer == "terminal" {
		output = os.Stderr
	}
	logger, err = logging.New(logging.Options{
		Level:       simConfig.Logging.Level,
		GelfAddress: simConfig.Logging.GelfAddress,
		Output:      output,
	})
	if err != nil {
		logging.NewLogger().Error(ctx, "Failed to create logger", err)
		os.Exit(1)
	}
	defer logger.Close()

	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)

	pipeline, err := telemetry.OpenPipeline(simConfig.Telemetry, runID, logger,
		telemetry.WithMetricsWriter(output),
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

	viewport := render.NewViewport(simConfig.Display)

	// Choose renderer based on command line flag
	var runErr error
	switch *renderer {
	case "terminal":
		runErr = startTerminalRenderer(ctx, sim, viewport, logger)
	case "engo":
		startEngoRenderer(sim, viewport, simConfig.Display, logger)
		runErr = sim.Err()
	default:
		logger.Error(ctx, "Unknown renderer", nil, "renderer", *renderer)
		os.Exit(1)
	}

	if err := pipeline.Finish(context.WithoutCancel(ctx), sim.Ticks(), runErr); err != nil {
		logger.Error(ctx, "Failed to finish flight recording", err)
	}
	if runErr != nil {
		logger.Error(ctx, "Flight ended with an error", runErr)
		os.Exit(1)
	}
}

// startEngoRenderer runs the flight window until it is closed
func startEngoRenderer(sim *engine.Simulation, viewport render.Viewport, display config.DisplayConfig, logger *logging.Logger) {
	scene := engorender.NewFlightScene(sim, viewport, logger)

	opts := engo.RunOptions{
		Title:    display.Title,
		Width:    display.Width,
		Height:   display.Height,
		FPSLimit: 60,
		VSync:    true,
	}

	engo.Run(opts, scene)
}

// startTerminalRenderer runs the flight in the terminal until the user quits
// or the process is interrupted
func startTerminalRenderer(ctx context.Context, sim *engine.Simulation, viewport render.Viewport, logger *logging.Logger) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return logging.WrapError(err, "failed to create terminal screen")
	}
	if err := screen.Init(); err != nil {
		return logging.WrapError(err, "failed to initialize terminal screen")
	}
	defer screen.Fini()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	host := render.NewTerminalHost(sim, screen, viewport, logger)
	return host.Run(ctx)
}
