// Package render turns craft state into line segments and draws them on a
// window or a terminal.
package render

import (
	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/physics"
)

// Segment is a line between two screen points.
type Segment struct {
	From physics.Vector2D
	To   physics.Vector2D
}

// Frame holds the two segments that depict the craft: the body from top to
// bottom and the nozzle hanging off the bottom end.
type Frame struct {
	Body   Segment
	Nozzle Segment
}

// Viewport describes the drawing surface in screen units.
type Viewport struct {
	Width      int
	Height     int
	Center     physics.Vector2D
	BodyLength float64 // half-length of the body and length of the nozzle
	LineWidth  float64
}

// NewViewport builds a viewport centered on the display.
func NewViewport(display config.DisplayConfig) Viewport {
	return Viewport{
		Width:      display.Width,
		Height:     display.Height,
		Center:     physics.Vector2D{X: float64(display.Width) / 2, Y: float64(display.Height) / 2},
		BodyLength: display.BodyLength,
		LineWidth:  display.LineWidth,
	}
}

// ComputeFrame places the craft at position with the given attitude and
// gimbal deflection, offset by the viewport center.
func ComputeFrame(position physics.Vector2D, angle, gimbal float64, vp Viewport) Frame {
	axis := physics.Vector2D{X: 0, Y: vp.BodyLength}
	body := axis.Rotate(angle)

	top := position.Sub(body).Add(vp.Center)
	bottom := position.Add(body).Add(vp.Center)
	nozzle := bottom.Add(axis.Rotate(angle + gimbal))

	return Frame{
		Body:   Segment{From: top, To: bottom},
		Nozzle: Segment{From: bottom, To: nozzle},
	}
}

// ScreenFrame computes the frame for a snapshot. Screen Y grows downward, so
// the world position is mirrored before it is placed on screen.
func ScreenFrame(s physics.Snapshot, vp Viewport) Frame {
	return ComputeFrame(s.Position.Scale(-1), s.Angle, s.GimbalAngle, vp)
}

// Renderer draws frames.
type Renderer interface {
	Clear()
	Draw(f Frame)
	Present()
}
