// pkg/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/opd-ai/go-gimbal/pkg/control"
	"github.com/opd-ai/go-gimbal/pkg/physics"
)

// SimConfig contains configuration for a flight simulation run
type SimConfig struct {
	Craft     CraftConfig     `json:"craft" mapstructure:"craft"`
	Physics   PhysicsConfig   `json:"physics" mapstructure:"physics"`
	Control   ControlConfig   `json:"control" mapstructure:"control"`
	Loop      LoopConfig      `json:"loop" mapstructure:"loop"`
	Display   DisplayConfig   `json:"display" mapstructure:"display"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// CraftConfig contains the fixed physical constants of the craft
type CraftConfig struct {
	Mass        float64 `json:"mass" mapstructure:"mass"`
	LeverLength float64 `json:"leverLength" mapstructure:"leverLength"`
}

// PhysicsConfig contains force-model and boundary settings
type PhysicsConfig struct {
	Gravity         float64 `json:"gravity" mapstructure:"gravity"`
	Gain            float64 `json:"gain" mapstructure:"gain"`
	WorldHalfExtent float64 `json:"worldHalfExtent" mapstructure:"worldHalfExtent"`
	MaxThrust       float64 `json:"maxThrust" mapstructure:"maxThrust"`
	GimbalLimit     float64 `json:"gimbalLimit" mapstructure:"gimbalLimit"`
	AngleWrap       string  `json:"angleWrap" mapstructure:"angleWrap"`
}

// ControlConfig contains stabilizer settings
type ControlConfig struct {
	Stabilizer     bool    `json:"stabilizer" mapstructure:"stabilizer"`
	StabilizerMode string  `json:"stabilizerMode" mapstructure:"stabilizerMode"`
	DeadBand       float64 `json:"deadBand" mapstructure:"deadBand"`
}

// LoopConfig contains tick-loop settings
type LoopConfig struct {
	TickRate int `json:"tickRate" mapstructure:"tickRate"`
}

// DisplayConfig contains viewport settings shared by the renderers
type DisplayConfig struct {
	Title      string  `json:"title" mapstructure:"title"`
	Width      int     `json:"width" mapstructure:"width"`
	Height     int     `json:"height" mapstructure:"height"`
	BodyLength float64 `json:"bodyLength" mapstructure:"bodyLength"`
	LineWidth  float64 `json:"lineWidth" mapstructure:"lineWidth"`
}

// TelemetryConfig contains recorder, exporter and metrics settings.
// Metrics are pushed to the OpenTelemetry meter provider installed by the
// command, which exports them every MetricsInterval.
type TelemetryConfig struct {
	Metrics         bool           `json:"metrics" mapstructure:"metrics"`
	MetricsInterval time.Duration  `json:"metricsInterval" mapstructure:"metricsInterval"`
	Recorder        RecorderConfig `json:"recorder" mapstructure:"recorder"`
	Influx          InfluxConfig   `json:"influx" mapstructure:"influx"`
	Breaker         BreakerConfig  `json:"breaker" mapstructure:"breaker"`
}

// RecorderConfig selects the flight recorder database
type RecorderConfig struct {
	Driver    string `json:"driver" mapstructure:"driver"` // "", "sqlite" or "postgres"
	DSN       string `json:"dsn" mapstructure:"dsn"`
	BatchSize int    `json:"batchSize" mapstructure:"batchSize"`
	Every     int    `json:"every" mapstructure:"every"` // record every Nth tick
}

// InfluxConfig contains the InfluxDB exporter settings
type InfluxConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Token   string `json:"token" mapstructure:"token"`
	Org     string `json:"org" mapstructure:"org"`
	Bucket  string `json:"bucket" mapstructure:"bucket"`
	Every   int    `json:"every" mapstructure:"every"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level       string `json:"level" mapstructure:"level"`
	GelfAddress string `json:"gelfAddress" mapstructure:"gelfAddress"`
}

// LoadConfig loads a configuration from a JSON file and applies GIMBAL_*
// environment overrides on top of it.
func LoadConfig(path string) (*SimConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return load(path)
}

// SaveConfig saves a configuration to a file
func SaveConfig(config *SimConfig, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns the stock flight tuning, with the physics section
// taken from physics.DefaultModel.
func DefaultConfig() *SimConfig {
	model := physics.DefaultModel()
	return &SimConfig{
		Craft: CraftConfig{
			Mass:        0.1,
			LeverLength: 0.1,
		},
		Physics: PhysicsConfig{
			Gravity:         model.Gravity.Y,
			Gain:            model.Gain,
			WorldHalfExtent: model.HalfExtent,
			MaxThrust:       model.MaxThrust,
			GimbalLimit:     model.GimbalLimit,
			AngleWrap:       string(model.AngleWrap),
		},
		Control: ControlConfig{
			Stabilizer:     true,
			StabilizerMode: string(control.Accumulate),
			DeadBand:       control.DefaultDeadBand,
		},
		Loop: LoopConfig{
			TickRate: 60,
		},
		Display: DisplayConfig{
			Title:      "2D flight controller",
			Width:      1000,
			Height:     1000,
			BodyLength: 50,
			LineWidth:  6,
		},
		Telemetry: TelemetryConfig{
			Metrics:         true,
			MetricsInterval: DefaultMetricsInterval,
			Recorder: RecorderConfig{
				Driver:    "",
				DSN:       "flight.db",
				BatchSize: 120,
				Every:     1,
			},
			Influx: InfluxConfig{
				Enabled: false,
				URL:     "http://localhost:8086",
				Org:     "gimbal",
				Bucket:  "flight",
				Every:   6,
			},
			Breaker: BreakerConfig{
				MaxRequests:         1,
				Interval:            DefaultBreakerInterval,
				Timeout:             DefaultBreakerTimeout,
				MaxConsecutiveFails: 5,
			},
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Model builds the physics model described by the configuration.
func (c *SimConfig) Model() (physics.Model, error) {
	mode, err := physics.ParseAngleWrapMode(c.Physics.AngleWrap)
	if err != nil {
		return physics.Model{}, err
	}
	return physics.Model{
		Gravity:     physics.Vector2D{X: 0, Y: c.Physics.Gravity},
		Gain:        c.Physics.Gain,
		HalfExtent:  c.Physics.WorldHalfExtent,
		MaxThrust:   c.Physics.MaxThrust,
		GimbalLimit: c.Physics.GimbalLimit,
		AngleWrap:   mode,
	}, nil
}

// Stabilizer builds the configured stabilizer, or nil when attitude hold is off.
func (c *SimConfig) Stabilizer() (*control.Stabilizer, error) {
	if !c.Control.Stabilizer {
		return nil, nil
	}
	mode, err := control.ParseStabilizerMode(c.Control.StabilizerMode)
	if err != nil {
		return nil, err
	}
	s := control.NewStabilizer(mode)
	s.DeadBand = c.Control.DeadBand
	return s, nil
}

// TimeStep returns the fixed integration step in seconds.
func (c *SimConfig) TimeStep() float64 {
	return 1.0 / float64(c.Loop.TickRate)
}
