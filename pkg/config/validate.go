// pkg/config/validate.go
package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/opd-ai/go-gimbal/pkg/control"
	"github.com/opd-ai/go-gimbal/pkg/physics"
)

// ValidationError names the configuration field that failed validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration for values the simulation cannot run with
func (c *SimConfig) Validate() error {
	if !(c.Craft.Mass > 0) || math.IsInf(c.Craft.Mass, 0) {
		return invalid("Craft.Mass", "must be positive, got %g", c.Craft.Mass)
	}
	if !(c.Craft.LeverLength >= 0) || math.IsInf(c.Craft.LeverLength, 0) {
		return invalid("Craft.LeverLength", "must be non-negative, got %g", c.Craft.LeverLength)
	}

	if !(c.Physics.WorldHalfExtent > 0) {
		return invalid("Physics.WorldHalfExtent", "must be positive, got %g", c.Physics.WorldHalfExtent)
	}
	if !(c.Physics.MaxThrust > 0) {
		return invalid("Physics.MaxThrust", "must be positive, got %g", c.Physics.MaxThrust)
	}
	if !(c.Physics.GimbalLimit > 0) || c.Physics.GimbalLimit > math.Pi {
		return invalid("Physics.GimbalLimit", "must be in (0, π], got %g", c.Physics.GimbalLimit)
	}
	if _, err := physics.ParseAngleWrapMode(c.Physics.AngleWrap); err != nil {
		return invalid("Physics.AngleWrap", "%v", err)
	}

	if _, err := control.ParseStabilizerMode(c.Control.StabilizerMode); err != nil {
		return invalid("Control.StabilizerMode", "%v", err)
	}
	if !(c.Control.DeadBand >= 0) {
		return invalid("Control.DeadBand", "must be non-negative, got %g", c.Control.DeadBand)
	}

	if c.Loop.TickRate <= 0 || c.Loop.TickRate > 1000 {
		return invalid("Loop.TickRate", "must be between 1 and 1000, got %d", c.Loop.TickRate)
	}

	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return invalid("Display", "width and height must be positive, got %dx%d", c.Display.Width, c.Display.Height)
	}
	if !(c.Display.BodyLength > 0) {
		return invalid("Display.BodyLength", "must be positive, got %g", c.Display.BodyLength)
	}

	if err := c.Telemetry.validate(); err != nil {
		return err
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "":
	default:
		return invalid("Logging.Level", "unknown level %q", c.Logging.Level)
	}

	return nil
}

func (t *TelemetryConfig) validate() error {
	if t.Metrics && t.MetricsInterval <= 0 {
		return invalid("Telemetry.MetricsInterval", "must be positive when metrics are enabled, got %v", t.MetricsInterval)
	}
	switch t.Recorder.Driver {
	case "", "sqlite", "postgres":
	default:
		return invalid("Telemetry.Recorder.Driver", "must be sqlite or postgres, got %q", t.Recorder.Driver)
	}
	if t.Recorder.Driver != "" && t.Recorder.DSN == "" {
		return invalid("Telemetry.Recorder.DSN", "is required when a recorder driver is set")
	}
	if t.Recorder.BatchSize <= 0 {
		return invalid("Telemetry.Recorder.BatchSize", "must be positive, got %d", t.Recorder.BatchSize)
	}
	if t.Recorder.Every <= 0 {
		return invalid("Telemetry.Recorder.Every", "must be positive, got %d", t.Recorder.Every)
	}

	if t.Influx.Enabled {
		if t.Influx.URL == "" || t.Influx.Org == "" || t.Influx.Bucket == "" {
			return invalid("Telemetry.Influx", "url, org and bucket are required when enabled")
		}
		if t.Influx.Every <= 0 {
			return invalid("Telemetry.Influx.Every", "must be positive, got %d", t.Influx.Every)
		}
	}

	if t.Breaker.MaxRequests <= 0 {
		return invalid("Telemetry.Breaker.MaxRequests", "must be positive, got %d", t.Breaker.MaxRequests)
	}
	if t.Breaker.MaxConsecutiveFails <= 0 {
		return invalid("Telemetry.Breaker.MaxConsecutiveFails", "must be positive, got %d", t.Breaker.MaxConsecutiveFails)
	}
	if t.Breaker.Timeout <= 0 {
		return invalid("Telemetry.Breaker.Timeout", "must be positive, got %v", t.Breaker.Timeout)
	}
	return nil
}
