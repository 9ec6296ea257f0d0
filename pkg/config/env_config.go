// pkg/config/env_config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g.
// GIMBAL_CRAFT_MASS or GIMBAL_TELEMETRY_INFLUX_TOKEN.
const EnvPrefix = "GIMBAL"

// Circuit breaker defaults for the telemetry exporter
const (
	DefaultBreakerInterval = 60 * time.Second
	DefaultBreakerTimeout  = 30 * time.Second
)

// DefaultMetricsInterval is how often metrics are exported
const DefaultMetricsInterval = 10 * time.Second

// BreakerConfig contains the circuit breaker settings guarding telemetry export
type BreakerConfig struct {
	MaxRequests         int           `json:"maxRequests" mapstructure:"maxRequests"`
	Interval            time.Duration `json:"interval" mapstructure:"interval"`
	Timeout             time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxConsecutiveFails int           `json:"maxConsecutiveFails" mapstructure:"maxConsecutiveFails"`
}

// LoadConfigFromEnv returns the default configuration with GIMBAL_*
// environment overrides applied and no config file.
func LoadConfigFromEnv() (*SimConfig, error) {
	return load("")
}

func load(path string) (*SimConfig, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	var cfg SimConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newViper creates a viper instance seeded with DefaultConfig, so that every
// key is known to AutomaticEnv.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()

	v.SetDefault("craft.mass", d.Craft.Mass)
	v.SetDefault("craft.leverLength", d.Craft.LeverLength)

	v.SetDefault("physics.gravity", d.Physics.Gravity)
	v.SetDefault("physics.gain", d.Physics.Gain)
	v.SetDefault("physics.worldHalfExtent", d.Physics.WorldHalfExtent)
	v.SetDefault("physics.maxThrust", d.Physics.MaxThrust)
	v.SetDefault("physics.gimbalLimit", d.Physics.GimbalLimit)
	v.SetDefault("physics.angleWrap", d.Physics.AngleWrap)

	v.SetDefault("control.stabilizer", d.Control.Stabilizer)
	v.SetDefault("control.stabilizerMode", d.Control.StabilizerMode)
	v.SetDefault("control.deadBand", d.Control.DeadBand)

	v.SetDefault("loop.tickRate", d.Loop.TickRate)

	v.SetDefault("display.title", d.Display.Title)
	v.SetDefault("display.width", d.Display.Width)
	v.SetDefault("display.height", d.Display.Height)
	v.SetDefault("display.bodyLength", d.Display.BodyLength)
	v.SetDefault("display.lineWidth", d.Display.LineWidth)

	v.SetDefault("telemetry.metrics", d.Telemetry.Metrics)
	v.SetDefault("telemetry.metricsInterval", d.Telemetry.MetricsInterval)
	v.SetDefault("telemetry.recorder.driver", d.Telemetry.Recorder.Driver)
	v.SetDefault("telemetry.recorder.dsn", d.Telemetry.Recorder.DSN)
	v.SetDefault("telemetry.recorder.batchSize", d.Telemetry.Recorder.BatchSize)
	v.SetDefault("telemetry.recorder.every", d.Telemetry.Recorder.Every)
	v.SetDefault("telemetry.influx.enabled", d.Telemetry.Influx.Enabled)
	v.SetDefault("telemetry.influx.url", d.Telemetry.Influx.URL)
	v.SetDefault("telemetry.influx.token", d.Telemetry.Influx.Token)
	v.SetDefault("telemetry.influx.org", d.Telemetry.Influx.Org)
	v.SetDefault("telemetry.influx.bucket", d.Telemetry.Influx.Bucket)
	v.SetDefault("telemetry.influx.every", d.Telemetry.Influx.Every)
	v.SetDefault("telemetry.breaker.maxRequests", d.Telemetry.Breaker.MaxRequests)
	v.SetDefault("telemetry.breaker.interval", d.Telemetry.Breaker.Interval)
	v.SetDefault("telemetry.breaker.timeout", d.Telemetry.Breaker.Timeout)
	v.SetDefault("telemetry.breaker.maxConsecutiveFails", d.Telemetry.Breaker.MaxConsecutiveFails)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.gelfAddress", d.Logging.GelfAddress)

	return v
}
