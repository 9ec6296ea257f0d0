// pkg/physics/errors.go
package physics

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a craft is built with a
	// non-positive mass or a negative lever length.
	ErrInvalidConfiguration = errors.New("physics: invalid craft configuration")

	// ErrInvalidTimestep is returned when Step is called with dt <= 0 or a
	// non-finite dt.
	ErrInvalidTimestep = errors.New("physics: invalid timestep")

	// ErrNonFiniteState indicates the craft state diverged to NaN or Inf.
	ErrNonFiniteState = errors.New("physics: non-finite craft state")
)

// StepError wraps a failure detected while stepping the craft, together with
// the state the step produced.
type StepError struct {
	DT      float64
	State   Snapshot
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%v (dt=%g, position=%v, angle=%g, thrust=%g)",
		e.Wrapped, e.DT, e.State.Position, e.State.Angle, e.State.Thrust)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
