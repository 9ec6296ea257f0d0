// pkg/render/engo/renderer.go
package engo

import (
	"image/color"
	"math"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-gimbal/pkg/render"
)

// segmentEntity is a line drawn as a thin rotated rectangle
type segmentEntity struct {
	ecs.BasicEntity
	common.RenderComponent
	common.SpaceComponent
}

// EngoRenderer implements render.Renderer using the Engo game engine
type EngoRenderer struct {
	world        *ecs.World
	renderSystem *common.RenderSystem
	viewport     render.Viewport

	body   *segmentEntity
	nozzle *segmentEntity
}

// NewEngoRenderer creates a new Engo-based renderer
func NewEngoRenderer(world *ecs.World, viewport render.Viewport) *EngoRenderer {
	return &EngoRenderer{
		world:    world,
		viewport: viewport,
	}
}

// Initialize finds the world's render system, adding one if needed, and
// registers the two segment entities with it.
func (r *EngoRenderer) Initialize() error {
	for _, system := range r.world.Systems() {
		if rs, ok := system.(*common.RenderSystem); ok {
			r.renderSystem = rs
		}
	}
	if r.renderSystem == nil {
		r.renderSystem = &common.RenderSystem{}
		r.world.AddSystem(r.renderSystem)
	}

	r.body = r.newSegmentEntity()
	r.nozzle = r.newSegmentEntity()
	return nil
}

func (r *EngoRenderer) newSegmentEntity() *segmentEntity {
	e := &segmentEntity{BasicEntity: ecs.NewBasic()}
	e.RenderComponent = common.RenderComponent{
		Drawable: common.Rectangle{},
		Color:    color.Black,
	}
	r.renderSystem.Add(&e.BasicEntity, &e.RenderComponent, &e.SpaceComponent)
	return e
}

// Clear implements render.Renderer. Engo redraws every frame on its own.
func (r *EngoRenderer) Clear() {}

// Draw implements render.Renderer
func (r *EngoRenderer) Draw(f render.Frame) {
	if r.body == nil {
		return
	}
	r.body.SpaceComponent = SegmentSpace(f.Body, r.viewport.LineWidth)
	r.nozzle.SpaceComponent = SegmentSpace(f.Nozzle, r.viewport.LineWidth)
}

// Present implements render.Renderer. Presentation happens in the render system.
func (r *EngoRenderer) Present() {}

// SegmentSpace places a width-thick rectangle over the segment. Engo rotates
// a SpaceComponent clockwise (in degrees) about its Position, so the
// rectangle's top-left corner is shifted half the width off the line.
func SegmentSpace(s render.Segment, width float64) common.SpaceComponent {
	d := s.To.Sub(s.From)
	length := d.Length()
	theta := math.Atan2(d.Y, d.X)
	sin, cos := math.Sincos(theta)

	corner := s.From
	corner.X += width / 2 * sin
	corner.Y -= width / 2 * cos

	return common.SpaceComponent{
		Position: engo.Point{X: float32(corner.X), Y: float32(corner.Y)},
		Width:    float32(length),
		Height:   float32(width),
		Rotation: float32(theta * 180 / math.Pi),
	}
}
