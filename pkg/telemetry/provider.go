// pkg/telemetry/provider.go
package telemetry

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/opd-ai/go-gimbal/pkg/logging"
)

// ServiceName identifies the simulator in exported metrics.
const ServiceName = "go-gimbal"

// ProviderConfig holds meter provider settings
type ProviderConfig struct {
	ServiceName string
	Writer      io.Writer     // destination of the periodic metric dumps, stderr when nil
	Interval    time.Duration // export interval

	// Reader replaces the periodic stdout exporter. Used by tests to collect on demand.
	Reader sdkmetric.Reader
}

// MeterProvider owns the SDK meter provider the simulator's instruments record to.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
}

// NewMeterProvider creates an SDK meter provider that periodically writes
// every instrument as JSON to cfg.Writer.
func NewMeterProvider(ctx context.Context, cfg ProviderConfig) (*MeterProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = ServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, logging.WrapError(err, "failed to create metrics resource")
	}

	reader := cfg.Reader
	if reader == nil {
		if cfg.Interval <= 0 {
			return nil, errors.New("metrics export interval must be positive")
		}
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, logging.WrapError(err, "failed to create metrics exporter")
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))
	}

	return &MeterProvider{
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		),
	}, nil
}

// Provider exposes the provider for otel.SetMeterProvider.
func (p *MeterProvider) Provider() metric.MeterProvider {
	return p.provider
}

// Meter returns a meter with the given instrumentation name.
func (p *MeterProvider) Meter(name string) metric.Meter {
	return p.provider.Meter(name)
}

// Flush exports everything recorded so far.
func (p *MeterProvider) Flush(ctx context.Context) error {
	return p.provider.ForceFlush(ctx)
}

// Shutdown exports pending data and stops the reader. Instruments become no-ops.
func (p *MeterProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
