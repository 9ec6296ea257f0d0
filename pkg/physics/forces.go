// pkg/physics/forces.go
package physics

import "math"

// Model holds the constants that shape the force law and the boundary policy.
type Model struct {
	Gravity     Vector2D // world-frame gravitational acceleration
	Gain        float64  // empirical feel multiplier applied to the net acceleration
	HalfExtent  float64  // toroidal world spans [-HalfExtent, HalfExtent) per axis
	MaxThrust   float64
	GimbalLimit float64 // symmetric gimbal deflection limit, radians
	AngleWrap   AngleWrapMode
}

// DefaultModel returns the stock tuning: Earth gravity, a 900 unit toroidal
// world and a quarter-turn gimbal limit.
func DefaultModel() Model {
	return Model{
		Gravity:     Vector2D{X: 0, Y: -9.81},
		Gain:        9,
		HalfExtent:  450,
		MaxThrust:   1000,
		GimbalLimit: math.Pi / 2,
		AngleWrap:   AngleWrapSymmetric,
	}
}

// Acceleration returns the world-frame linear acceleration of the craft.
// Thrust acts along the body +Y axis, deflected by the gimbal. The thrust term
// is scaled by mass and divided by it again, so it stays mass independent.
func (m Model) Acceleration(c *Craft) Vector2D {
	force := Vector2D{X: 0, Y: c.Thrust}.Rotate(c.Angle + c.GimbalAngle)
	weighted := force.Scale(c.mass)
	thrustAccel := Vector2D{X: weighted.X / c.mass, Y: weighted.Y / c.mass}
	return thrustAccel.Add(m.Gravity).Scale(m.Gain)
}

// Torque returns the angular acceleration of the craft. A positive gimbal
// deflection produces a negative angular acceleration.
func (m Model) Torque(c *Craft) float64 {
	return math.Sin(-c.GimbalAngle) / c.mass * c.leverLength * c.Thrust
}
