// pkg/engine/script.go
package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/opd-ai/go-gimbal/pkg/control"
)

// Cue holds a control set from tick From onward.
type Cue struct {
	From uint64
	Held control.Held
}

// Script is a control schedule for unattended runs, ordered by From.
type Script []Cue

// ParseScript parses "tick=controls" cues separated by ";", for example
// "0=throttle-up;120=throttle-up+gimbal-left;180=none".
func ParseScript(s string) (Script, error) {
	var script Script
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tickText, heldText, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("script cue %q: expected tick=controls", part)
		}
		from, err := strconv.ParseUint(strings.TrimSpace(tickText), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("script cue %q: %w", part, err)
		}
		held, err := control.ParseHeld(heldText)
		if err != nil {
			return nil, fmt.Errorf("script cue %q: %w", part, err)
		}
		script = append(script, Cue{From: from, Held: held})
	}
	sort.SliceStable(script, func(i, j int) bool { return script[i].From < script[j].From })
	return script, nil
}

// HeldAt returns the control set in effect for the tick following tick
// completed ticks; before the first cue nothing is held.
func (s Script) HeldAt(tick uint64) control.Held {
	var held control.Held
	for _, cue := range s {
		if cue.From > tick {
			break
		}
		held = cue.Held
	}
	return held
}

func (s Script) String() string {
	parts := make([]string, len(s))
	for i, cue := range s {
		parts[i] = fmt.Sprintf("%d=%s", cue.From, cue.Held)
	}
	return strings.Join(parts, ";")
}
