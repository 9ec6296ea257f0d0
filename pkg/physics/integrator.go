// pkg/physics/integrator.go
package physics

import "fmt"

// Step advances the craft by dt seconds with a semi-implicit Euler scheme.
// The order is fixed: position from the old velocity, velocity from the
// pre-step acceleration, angle from the old angular velocity, angular velocity
// from the torque, then the boundary pass, and only after that the gimbal and
// thrust actuators move by their rates. Gimbal and thrust may therefore leave
// their limits until the next call clamps them again.
func (m Model) Step(c *Craft, dt float64) (ClampReport, error) {
	if !isFinite(dt) || dt <= 0 {
		return ClampReport{}, fmt.Errorf("%w: dt must be positive and finite, got %g", ErrInvalidTimestep, dt)
	}

	accel := m.Acceleration(c)

	c.Position = c.Position.Add(c.Velocity.Scale(dt))
	c.Velocity = c.Velocity.Add(accel.Scale(dt))

	c.Angle += c.AngularVelocity * dt
	c.AngularVelocity += m.Torque(c) * dt

	report := m.WrapAndClamp(c)

	c.GimbalAngle += c.GimbalRate * dt
	c.Thrust += c.ThrottleRate * dt

	if snap := c.Snapshot(); !snap.IsFinite() {
		return report, &StepError{DT: dt, State: snap, Wrapped: ErrNonFiniteState}
	}
	return report, nil
}
