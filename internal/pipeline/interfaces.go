package pipeline

import (
	"context"
	"image"

	"github.com/dudu/facebridge/internal/frame"
	"github.com/dudu/facebridge/internal/result"
)

// Source delivers camera frames at its own cadence. Read blocks until
// the next frame is available.
type Source interface {
	Start(ctx context.Context) error
	Read(ctx context.Context) (frame.Frame, error)
	Close() error
}

// Inferer runs the vision model on one frame and returns normalized results
type Inferer interface {
	Infer(ctx context.Context, f frame.Frame) (result.Result, error)
	Close() error
}

// Dispatcher forwards outbound messages to the host. It must not block
// for long and never reports failure.
type Dispatcher interface {
	Send(payload any)
}

// Renderer draws a frame and its overlay onto a width x height surface
type Renderer interface {
	Render(f frame.Frame, res result.Result, width, height int, fps float64) *image.NRGBA
}

// Preview displays rendered surfaces
type Preview interface {
	Show(img image.Image) error
}
