// pkg/control/stabilizer.go
package control

import (
	"fmt"
	"math"

	"github.com/opd-ai/go-gimbal/pkg/physics"
)

// StabilizerMode selects how the stabilizer correction reaches the gimbal rate.
type StabilizerMode string

const (
	// Accumulate adds each correction to the gimbal rate. Under sustained
	// rotation the rate keeps growing.
	Accumulate StabilizerMode = "accumulate"

	// Assign replaces the gimbal rate with the correction, giving a bounded
	// proportional law that drives the gimbal toward its target.
	Assign StabilizerMode = "assign"
)

// DefaultDeadBand is the angular velocity below which the stabilizer centers
// the gimbal instead of deflecting it.
const DefaultDeadBand = 0.01

// ParseStabilizerMode converts a configuration string into a StabilizerMode.
func ParseStabilizerMode(s string) (StabilizerMode, error) {
	switch mode := StabilizerMode(s); mode {
	case Accumulate, Assign:
		return mode, nil
	case "":
		return Accumulate, nil
	default:
		return "", fmt.Errorf("unknown stabilizer mode %q", s)
	}
}

// Stabilizer damps angular velocity by steering the gimbal against the spin.
type Stabilizer struct {
	Mode     StabilizerMode
	DeadBand float64

	// bias is the part of the gimbal rate contributed by the stabilizer so
	// far. It survives frames with manual input in Accumulate mode.
	bias float64
}

// NewStabilizer creates a stabilizer with the default dead band.
func NewStabilizer(mode StabilizerMode) *Stabilizer {
	return &Stabilizer{
		Mode:     mode,
		DeadBand: DefaultDeadBand,
	}
}

// Target returns the gimbal angle the stabilizer steers toward for the given
// angular velocity.
func (s *Stabilizer) Target(angularVelocity float64) float64 {
	switch {
	case angularVelocity > s.DeadBand:
		return -math.Pi / 2
	case angularVelocity < -s.DeadBand:
		return math.Pi / 2
	}
	return 0
}

// Engage runs one stabilizer update against the craft and returns the target
// gimbal angle it used.
func (s *Stabilizer) Engage(c *physics.Craft) float64 {
	target := s.Target(c.AngularVelocity)
	correction := target - c.GimbalAngle

	switch s.Mode {
	case Assign:
		s.bias = correction
		c.GimbalRate = correction
	default:
		s.bias += correction
		c.GimbalRate += correction
	}
	return target
}

// Carry returns the stabilizer contribution that persists into frames with
// manual input.
func (s *Stabilizer) Carry() float64 {
	if s.Mode == Assign {
		return 0
	}
	return s.bias
}

// Bias returns the accumulated stabilizer contribution to the gimbal rate.
func (s *Stabilizer) Bias() float64 {
	return s.bias
}
