// pkg/render/renderer.go
package render

import (
	"context"

	"github.com/opd-ai/go-gimbal/pkg/logging"
)

// NullRenderer is a Renderer that only logs, for headless runs.
type NullRenderer struct {
	logger *logging.Logger
	frames uint64
}

// NewNullRenderer creates a new NullRenderer with structured logging.
func NewNullRenderer(logger *logging.Logger) *NullRenderer {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &NullRenderer{
		logger: logger,
	}
}

// Clear implements Renderer.
func (d *NullRenderer) Clear() {}

// Draw implements Renderer.
func (d *NullRenderer) Draw(f Frame) {
	d.logger.Debug(context.Background(), "Draw called",
		"body_from", f.Body.From,
		"body_to", f.Body.To,
		"nozzle_to", f.Nozzle.To,
	)
}

// Present implements Renderer.
func (d *NullRenderer) Present() {
	d.frames++
}

// Frames returns the number of presented frames
func (d *NullRenderer) Frames() uint64 {
	return d.frames
}
