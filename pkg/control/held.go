// Package control turns pilot input into actuator rates and provides the
// attitude-hold stabilizer that substitutes for the pilot when nothing is held.
package control

import (
	"fmt"
	"strings"

	"github.com/opd-ai/go-gimbal/pkg/physics"
)

// Control identifies one logical pilot control.
type Control uint8

const (
	GimbalLeft Control = 1 << iota
	GimbalRight
	ThrottleUp
	ThrottleDown
)

// Rate contributed by each held control.
const (
	GimbalStep   = 1.0  // rad/s
	ThrottleStep = 10.0 // thrust units per second
)

var controlNames = []struct {
	control Control
	name    string
}{
	{GimbalLeft, "gimbal-left"},
	{GimbalRight, "gimbal-right"},
	{ThrottleUp, "throttle-up"},
	{ThrottleDown, "throttle-down"},
}

// String returns the logical name of a single control.
func (c Control) String() string {
	for _, entry := range controlNames {
		if entry.control == c {
			return entry.name
		}
	}
	return "unknown"
}

// ParseControl looks a control up by its logical name.
func ParseControl(name string) (Control, bool) {
	for _, entry := range controlNames {
		if entry.name == name {
			return entry.control, true
		}
	}
	return 0, false
}

// Held is the set of controls currently held down. Rates are derived from the
// set every tick, so a dropped release can never leave a stale delta behind.
type Held uint8

// Press adds a control to the set. Pressing an already held control is a no-op.
func (h Held) Press(c Control) Held {
	return h | Held(c)
}

// Release removes a control from the set.
func (h Held) Release(c Control) Held {
	return h &^ Held(c)
}

// Has reports whether the control is held
func (h Held) Has(c Control) bool {
	return h&Held(c) != 0
}

// Empty reports whether no control is held
func (h Held) Empty() bool {
	return h == 0
}

// GimbalRate returns the gimbal rate implied by the held gimbal controls.
func (h Held) GimbalRate() float64 {
	rate := 0.0
	if h.Has(GimbalLeft) {
		rate += GimbalStep
	}
	if h.Has(GimbalRight) {
		rate -= GimbalStep
	}
	return rate
}

// ThrottleRate returns the throttle rate implied by the held throttle controls.
func (h Held) ThrottleRate() float64 {
	rate := 0.0
	if h.Has(ThrottleUp) {
		rate += ThrottleStep
	}
	if h.Has(ThrottleDown) {
		rate -= ThrottleStep
	}
	return rate
}

// Apply writes the rates implied by the set into the craft.
func (h Held) Apply(c *physics.Craft) {
	c.GimbalRate = h.GimbalRate()
	c.ThrottleRate = h.ThrottleRate()
}

func (h Held) String() string {
	if h.Empty() {
		return "none"
	}
	var names []string
	for _, entry := range controlNames {
		if h.Has(entry.control) {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, "+")
}

// ParseHeld parses the form produced by String: "none" or control names
// joined by "+".
func ParseHeld(s string) (Held, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return 0, nil
	}
	var h Held
	for _, name := range strings.Split(s, "+") {
		c, ok := ParseControl(strings.TrimSpace(name))
		if !ok {
			return 0, fmt.Errorf("unknown control %q", name)
		}
		h = h.Press(c)
	}
	return h, nil
}
