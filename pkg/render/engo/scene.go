// pkg/render/engo/scene.go
package engo

import (
	"context"
	"image/color"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
	"github.com/EngoEngine/engo/common"

	"github.com/opd-ai/go-gimbal/pkg/engine"
	"github.com/opd-ai/go-gimbal/pkg/logging"
	"github.com/opd-ai/go-gimbal/pkg/render"
)

// FlightScene represents the flight window in Engo
type FlightScene struct {
	world *ecs.World

	sim      *engine.Simulation
	viewport render.Viewport
	logger   *logging.Logger

	renderer *EngoRenderer
	flight   *FlightSystem
}

// NewFlightScene creates a new flight scene
func NewFlightScene(sim *engine.Simulation, viewport render.Viewport, logger *logging.Logger) *FlightScene {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &FlightScene{
		sim:      sim,
		viewport: viewport,
		logger:   logger,
		world:    &ecs.World{},
	}
}

// Type returns the scene type (required by Engo)
func (scene *FlightScene) Type() string {
	return "FlightScene"
}

// Preload is called before the scene starts (required by Engo)
func (scene *FlightScene) Preload() {}

// Setup is called when the scene starts (required by Engo)
func (scene *FlightScene) Setup(u engo.Updater) {
	scene.world, _ = u.(*ecs.World)
	if scene.world == nil {
		scene.world = &ecs.World{}
	}

	common.SetBackground(color.White)
	scene.world.AddSystem(&common.RenderSystem{})

	scene.renderer = NewEngoRenderer(scene.world, scene.viewport)
	if err := scene.renderer.Initialize(); err != nil {
		panic("Failed to initialize renderer: " + err.Error())
	}

	SetupInputBindings()

	scene.flight = NewFlightSystem(scene.sim, scene.renderer, scene.logger)
	scene.world.AddSystem(scene.flight)

	if err := scene.sim.Start(context.Background()); err != nil {
		scene.logger.Error(context.Background(), "flight cannot start", err)
		scene.flight.failed = true
		scene.flight.quit()
	}
}

// Exit is called when the window closes (required by Engo)
func (scene *FlightScene) Exit() {
	scene.sim.Stop(context.Background())
}

// FlightSystem ticks the simulation once per frame with the held arrow keys
// and pushes the resulting frame to the renderer. Engo's frame rate limit
// paces the ticks.
type FlightSystem struct {
	sim      *engine.Simulation
	renderer render.Renderer
	viewport render.Viewport
	logger   *logging.Logger
	down     func(button string) bool
	quit     func()
	failed   bool
}

// NewFlightSystem creates a flight system drawing through r
func NewFlightSystem(sim *engine.Simulation, r *EngoRenderer, logger *logging.Logger) *FlightSystem {
	return &FlightSystem{
		sim:      sim,
		renderer: r,
		viewport: r.viewport,
		logger:   logger,
		down:     buttonDown,
		quit:     engo.Exit,
	}
}

// Remove satisfies the ecs.System interface
func (fs *FlightSystem) Remove(basic ecs.BasicEntity) {}

// Update advances the simulation by one fixed step; dt is ignored.
func (fs *FlightSystem) Update(dt float32) {
	if fs.failed {
		return
	}
	if fs.down(ButtonQuit) {
		fs.quit()
		return
	}

	ctx := fs.sim.Context(context.Background())
	fs.sim.SetHeld(HeldFromButtons(fs.down))
	if _, err := fs.sim.Tick(ctx); err != nil {
		fs.failed = true
		fs.logger.Error(ctx, "flight stopped", err)
		fs.quit()
		return
	}

	fs.renderer.Clear()
	fs.renderer.Draw(render.ScreenFrame(fs.sim.Snapshot(), fs.viewport))
	fs.renderer.Present()
}
