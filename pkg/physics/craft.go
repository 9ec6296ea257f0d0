// pkg/physics/craft.go
package physics

import (
	"fmt"
)

// Craft holds the physical state of the single thrust-vectored vehicle.
// Mass and lever length are fixed at construction; everything else is
// mutated by Step, by the stabilizer and by control translation.
type Craft struct {
	mass        float64
	leverLength float64

	Position        Vector2D
	Velocity        Vector2D
	Angle           float64 // radians, body attitude
	AngularVelocity float64 // rad/s

	Thrust       float64 // thrust force magnitude
	ThrottleRate float64 // thrust change per second
	GimbalAngle  float64 // radians, nozzle deflection from the body axis
	GimbalRate   float64 // rad/s
}

// NewCraft creates a craft at rest at the origin.
func NewCraft(mass, leverLength float64) (*Craft, error) {
	if !isFinite(mass) || mass <= 0 {
		return nil, fmt.Errorf("%w: mass must be positive, got %g", ErrInvalidConfiguration, mass)
	}
	if !isFinite(leverLength) || leverLength < 0 {
		return nil, fmt.Errorf("%w: lever length must be non-negative, got %g", ErrInvalidConfiguration, leverLength)
	}
	return &Craft{
		mass:        mass,
		leverLength: leverLength,
	}, nil
}

// Mass returns the fixed craft mass
func (c *Craft) Mass() float64 {
	return c.mass
}

// LeverLength returns the fixed lever arm used for torque
func (c *Craft) LeverLength() float64 {
	return c.leverLength
}

// Snapshot is a value copy of the craft state for renderers and telemetry.
type Snapshot struct {
	Mass            float64  `json:"mass"`
	LeverLength     float64  `json:"leverLength"`
	Position        Vector2D `json:"position"`
	Velocity        Vector2D `json:"velocity"`
	Angle           float64  `json:"angle"`
	AngularVelocity float64  `json:"angularVelocity"`
	Thrust          float64  `json:"thrust"`
	ThrottleRate    float64  `json:"throttleRate"`
	GimbalAngle     float64  `json:"gimbalAngle"`
	GimbalRate      float64  `json:"gimbalRate"`
}

// Snapshot copies the current state
func (c *Craft) Snapshot() Snapshot {
	return Snapshot{
		Mass:            c.mass,
		LeverLength:     c.leverLength,
		Position:        c.Position,
		Velocity:        c.Velocity,
		Angle:           c.Angle,
		AngularVelocity: c.AngularVelocity,
		Thrust:          c.Thrust,
		ThrottleRate:    c.ThrottleRate,
		GimbalAngle:     c.GimbalAngle,
		GimbalRate:      c.GimbalRate,
	}
}

// IsFinite reports whether every time-varying quantity is finite.
func (s Snapshot) IsFinite() bool {
	return s.Position.IsFinite() &&
		s.Velocity.IsFinite() &&
		isFinite(s.Angle) &&
		isFinite(s.AngularVelocity) &&
		isFinite(s.Thrust) &&
		isFinite(s.ThrottleRate) &&
		isFinite(s.GimbalAngle) &&
		isFinite(s.GimbalRate)
}
