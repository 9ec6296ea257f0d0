// pkg/render/terminal.go
package render

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/opd-ai/go-gimbal/pkg/control"
	"github.com/opd-ai/go-gimbal/pkg/engine"
	"github.com/opd-ai/go-gimbal/pkg/logging"
)

// DefaultHoldWindow is how long a terminal key press counts as held. Terminals
// report no key releases, only auto-repeated presses, so a control stays held
// while repeats keep arriving within the window.
const DefaultHoldWindow = 300 * time.Millisecond

// HoldTracker derives a held-control set from key presses alone.
type HoldTracker struct {
	window time.Duration
	last   map[control.Control]time.Time
}

// NewHoldTracker creates a tracker with the given hold window.
func NewHoldTracker(window time.Duration) *HoldTracker {
	return &HoldTracker{
		window: window,
		last:   make(map[control.Control]time.Time),
	}
}

// Press records a press of c at the given time.
func (h *HoldTracker) Press(c control.Control, at time.Time) {
	h.last[c] = at
}

// Held returns the controls pressed within the window before now.
func (h *HoldTracker) Held(now time.Time) control.Held {
	var held control.Held
	for c, at := range h.last {
		if now.Sub(at) < h.window {
			held = held.Press(c)
		}
	}
	return held
}

// KeyControl maps the arrow keys to the pilot controls: left/right steer the
// gimbal, up/down change the throttle.
func KeyControl(ev *tcell.EventKey) (control.Control, bool) {
	switch ev.Key() {
	case tcell.KeyLeft:
		return control.GimbalLeft, true
	case tcell.KeyRight:
		return control.GimbalRight, true
	case tcell.KeyUp:
		return control.ThrottleUp, true
	case tcell.KeyDown:
		return control.ThrottleDown, true
	}
	return 0, false
}

func isQuitKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q'
	}
	return false
}

// TerminalRenderer draws frames as character lines on a tcell screen, scaling
// the viewport to the terminal size.
type TerminalRenderer struct {
	screen     tcell.Screen
	viewport   Viewport
	background tcell.Style
	line       tcell.Style
	status     string
}

// NewTerminalRenderer creates a renderer on an initialized screen.
func NewTerminalRenderer(screen tcell.Screen, viewport Viewport) *TerminalRenderer {
	background := tcell.StyleDefault.Background(tcell.ColorWhite).Foreground(tcell.ColorBlack)
	return &TerminalRenderer{
		screen:     screen,
		viewport:   viewport,
		background: background,
		line:       background,
	}
}

// SetStatus sets the text shown on the top row.
func (r *TerminalRenderer) SetStatus(status string) {
	r.status = status
}

// worldToScreen converts viewport coordinates to terminal cells
func (r *TerminalRenderer) worldToScreen(x, y float64) (int, int) {
	cols, rows := r.screen.Size()
	cx := int(math.Floor(x / float64(r.viewport.Width) * float64(cols)))
	cy := int(math.Floor(y / float64(r.viewport.Height) * float64(rows)))
	return cx, cy
}

// Clear implements Renderer
func (r *TerminalRenderer) Clear() {
	cols, rows := r.screen.Size()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r.screen.SetContent(x, y, ' ', nil, r.background)
		}
	}
}

// Draw implements Renderer
func (r *TerminalRenderer) Draw(f Frame) {
	r.drawSegment(f.Body, '█')
	r.drawSegment(f.Nozzle, '▓')
}

func (r *TerminalRenderer) drawSegment(s Segment, ch rune) {
	cols, rows := r.screen.Size()
	x0, y0 := r.worldToScreen(s.From.X, s.From.Y)
	x1, y1 := r.worldToScreen(s.To.X, s.To.Y)
	for _, cell := range Rasterize(x0, y0, x1, y1) {
		x, y := cell[0], cell[1]
		if x >= 0 && x < cols && y >= 0 && y < rows {
			r.screen.SetContent(x, y, ch, nil, r.line)
		}
	}
}

// Present implements Renderer
func (r *TerminalRenderer) Present() {
	cols, _ := r.screen.Size()
	for i, ch := range []rune(r.status) {
		if i >= cols {
			break
		}
		r.screen.SetContent(i, 0, ch, nil, r.background)
	}
	r.screen.Show()
}

// Rasterize returns the cells of the line from (x0,y0) to (x1,y1), both ends
// included, using Bresenham's algorithm.
func Rasterize(x0, y0, x1, y1 int) [][2]int {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	cells := make([][2]int, 0, max(dx, -dy)+1)
	err := dx + dy
	for {
		cells = append(cells, [2]int{x0, y0})
		if x0 == x1 && y0 == y1 {
			return cells
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TerminalHost runs a simulation interactively in a terminal.
type TerminalHost struct {
	sim      *engine.Simulation
	screen   tcell.Screen
	renderer *TerminalRenderer
	keys     *HoldTracker
	logger   *logging.Logger
	now      func() time.Time
}

// NewTerminalHost creates a host on an initialized screen.
func NewTerminalHost(sim *engine.Simulation, screen tcell.Screen, viewport Viewport, logger *logging.Logger) *TerminalHost {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &TerminalHost{
		sim:      sim,
		screen:   screen,
		renderer: NewTerminalRenderer(screen, viewport),
		keys:     NewHoldTracker(DefaultHoldWindow),
		logger:   logger,
		now:      time.Now,
	}
}

// HandleEvent applies one terminal event and reports whether the host should
// keep running.
func (h *TerminalHost) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if isQuitKey(ev) {
			return false
		}
		if c, ok := KeyControl(ev); ok {
			h.keys.Press(c, h.now())
		}
	case *tcell.EventResize:
		h.screen.Sync()
	case nil:
		// screen finalized
		return false
	}
	return true
}

// Frame ticks the simulation once with the current held set and redraws.
func (h *TerminalHost) Frame(ctx context.Context) error {
	h.sim.SetHeld(h.keys.Held(h.now()))
	if _, err := h.sim.Tick(ctx); err != nil {
		return err
	}

	snap := h.sim.Snapshot()
	h.renderer.Clear()
	h.renderer.Draw(ScreenFrame(snap, h.renderer.viewport))
	h.renderer.SetStatus(fmt.Sprintf(" thrust %6.1f  gimbal %+5.2f  angle %+5.2f  [%s]  q: quit ",
		snap.Thrust, snap.GimbalAngle, snap.Angle, h.sim.Held()))
	h.renderer.Present()
	return nil
}

// Run drives the simulation until the user quits, ctx is cancelled or a step
// fails. The caller owns the screen and finalizes it afterwards.
func (h *TerminalHost) Run(ctx context.Context) error {
	if err := h.sim.Start(ctx); err != nil {
		return err
	}
	defer h.sim.Stop(context.WithoutCancel(ctx))

	events := make(chan tcell.Event, 100)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := h.screen.PollEvent()
			select {
			case events <- ev:
			case <-quit:
				return
			}
			if ev == nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.sim.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !h.HandleEvent(ev) {
				h.logger.Info(h.sim.Context(ctx), "terminal host quit requested")
				return nil
			}
		case <-ticker.C:
			if err := h.Frame(ctx); err != nil {
				return err
			}
		}
	}
}
