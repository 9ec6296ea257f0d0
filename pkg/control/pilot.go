// pkg/control/pilot.go
package control

import "github.com/opd-ai/go-gimbal/pkg/physics"

// Pilot combines the held controls with the optional stabilizer into the
// craft's actuator rates for one frame.
type Pilot struct {
	stabilizer *Stabilizer
}

// NewPilot creates a pilot. A nil stabilizer disables attitude hold.
func NewPilot(stabilizer *Stabilizer) *Pilot {
	return &Pilot{stabilizer: stabilizer}
}

// Stabilizer returns the attached stabilizer, or nil
func (p *Pilot) Stabilizer() *Stabilizer {
	return p.stabilizer
}

// Drive sets the gimbal and throttle rates for this frame. The stabilizer is
// engaged only when no control is held; Drive reports whether it ran and the
// target gimbal angle it chose.
func (p *Pilot) Drive(c *physics.Craft, held Held) (engaged bool, target float64) {
	if p.stabilizer == nil {
		held.Apply(c)
		return false, 0
	}

	c.ThrottleRate = held.ThrottleRate()

	if held.Empty() {
		c.GimbalRate = p.stabilizer.Bias()
		return true, p.stabilizer.Engage(c)
	}

	c.GimbalRate = held.GimbalRate() + p.stabilizer.Carry()
	return false, 0
}
