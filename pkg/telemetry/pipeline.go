// pkg/telemetry/pipeline.go
package telemetry

import (
	"context"
	"errors"
	"io"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/logging"
)

// Pipeline is the set of sinks enabled by a telemetry configuration for one run.
type Pipeline struct {
	Metrics       *Metrics        // nil unless metrics are enabled
	MeterProvider *MeterProvider  // owns Metrics' instruments
	Store         *Store          // nil unless a recorder driver is set
	Exporter      *InfluxExporter // nil unless the InfluxDB exporter is enabled

	sinks      Multi
	runID      string
	logger     *logging.Logger
	metricsOut io.Writer
}

// PipelineOption adjusts how OpenPipeline builds the sinks.
type PipelineOption func(*Pipeline)

// WithMetricsWriter sends the periodic metric exports to w instead of stderr.
func WithMetricsWriter(w io.Writer) PipelineOption {
	return func(p *Pipeline) {
		p.metricsOut = w
	}
}

// OpenPipeline opens every sink the configuration enables. Sinks opened
// before a failure are closed again.
func OpenPipeline(cfg config.TelemetryConfig, runID string, logger *logging.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewLogger()
	}
	p := &Pipeline{runID: runID, logger: logger}
	for _, opt := range opts {
		opt(p)
	}

	if cfg.Metrics {
		provider, err := NewMeterProvider(context.Background(), ProviderConfig{
			Writer:   p.metricsOut,
			Interval: cfg.MetricsInterval,
		})
		if err != nil {
			return nil, err
		}
		p.MeterProvider = provider
		metrics, err := NewMetrics(provider.Meter(instrumentationName))
		if err != nil {
			p.Close()
			return nil, err
		}
		p.Metrics = metrics
		p.sinks = append(p.sinks, metrics)
	}

	store, err := OpenStore(cfg.Recorder)
	switch {
	case errors.Is(err, ErrRecorderDisabled):
	case err != nil:
		p.Close()
		return nil, err
	default:
		p.Store = store
		p.sinks = append(p.sinks, store)
	}

	if cfg.Influx.Enabled {
		breaker := NewBreaker("influx", cfg.Breaker, logger)
		p.Exporter = NewInfluxExporter(cfg.Influx, breaker, runID)
		p.sinks = append(p.sinks, p.Exporter)
	}

	return p, nil
}

// Sink returns the combined sink, or nil when nothing is enabled.
func (p *Pipeline) Sink() Sink {
	if len(p.sinks) == 0 {
		return nil
	}
	return p.sinks
}

// Begin opens the run in the flight recorder.
func (p *Pipeline) Begin(ctx context.Context, settings any) error {
	if p.Store == nil {
		return nil
	}
	return p.Store.BeginRun(ctx, p.runID, settings)
}

// Finish closes out the run in the flight recorder.
func (p *Pipeline) Finish(ctx context.Context, ticks uint64, runErr error) error {
	if p.Store == nil {
		return nil
	}
	return p.Store.FinishRun(ctx, ticks, runErr)
}

// Close closes every sink, then exports the final metric values.
func (p *Pipeline) Close() error {
	err := p.sinks.Close()
	if p.MeterProvider != nil {
		err = errors.Join(err, p.MeterProvider.Shutdown(context.Background()))
	}
	return err
}
