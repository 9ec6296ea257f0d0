// pkg/physics/bounds.go
package physics

import (
	"fmt"
	"math"
)

// AngleWrapMode selects how the body angle is normalized after each step.
type AngleWrapMode string

const (
	// AngleWrapSymmetric keeps the angle in (-π, π].
	AngleWrapSymmetric AngleWrapMode = "symmetric"

	// AngleWrapLiteral applies a one-sided comparison: subtract 2π above π,
	// otherwise add 2π whenever the angle is below π. The angle therefore
	// alternates between [-π, π] and (π, 3π) from one step to the next.
	AngleWrapLiteral AngleWrapMode = "literal"
)

// ParseAngleWrapMode converts a configuration string into an AngleWrapMode.
func ParseAngleWrapMode(s string) (AngleWrapMode, error) {
	switch mode := AngleWrapMode(s); mode {
	case AngleWrapSymmetric, AngleWrapLiteral:
		return mode, nil
	case "":
		return AngleWrapSymmetric, nil
	default:
		return "", fmt.Errorf("unknown angle wrap mode %q", s)
	}
}

// ClampReport records which boundary rules engaged during WrapAndClamp.
type ClampReport struct {
	WrappedX        bool
	WrappedY        bool
	AngleWrapped    bool
	GimbalSaturated bool
	ThrustSaturated bool
}

// Wrapped reports whether the position re-entered from the opposite edge.
func (r ClampReport) Wrapped() bool {
	return r.WrappedX || r.WrappedY
}

// WrapAndClamp enforces the toroidal position domain, normalizes the angle and
// saturates the gimbal angle and thrust. Each position axis is corrected at
// most once, so a displacement wider than the world in a single step is not
// fully folded back.
func (m Model) WrapAndClamp(c *Craft) ClampReport {
	var report ClampReport
	c.Position.X, report.WrappedX = m.wrapAxis(c.Position.X)
	c.Position.Y, report.WrappedY = m.wrapAxis(c.Position.Y)
	c.Angle, report.AngleWrapped = m.wrapAngle(c.Angle)

	if c.GimbalAngle > m.GimbalLimit {
		c.GimbalAngle = m.GimbalLimit
		report.GimbalSaturated = true
	}
	if c.GimbalAngle < -m.GimbalLimit {
		c.GimbalAngle = -m.GimbalLimit
		report.GimbalSaturated = true
	}

	// no floor: thrust may go negative
	if c.Thrust > m.MaxThrust {
		c.Thrust = m.MaxThrust
		report.ThrustSaturated = true
	}
	return report
}

func (m Model) wrapAxis(v float64) (float64, bool) {
	size := 2 * m.HalfExtent
	switch {
	case v > m.HalfExtent:
		return v - size, true
	case v < -m.HalfExtent:
		return v + size, true
	}
	return v, false
}

func (m Model) wrapAngle(angle float64) (float64, bool) {
	if angle > math.Pi {
		return angle - 2*math.Pi, true
	}
	switch m.AngleWrap {
	case AngleWrapLiteral:
		if angle < math.Pi {
			return angle + 2*math.Pi, true
		}
	default:
		if angle <= -math.Pi {
			return angle + 2*math.Pi, true
		}
	}
	return angle, false
}
