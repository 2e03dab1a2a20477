package camera

import (
	"errors"

	"github.com/dudu/facebridge/internal/config"
)

var (
	// ErrClosed is returned by Read after Close
	ErrClosed = errors.New("capture source closed")
	// ErrNotStarted is returned by Read before Start
	ErrNotStarted = errors.New("capture source not started")
	// ErrNoFrame is returned when the device produced no usable frame
	ErrNoFrame = errors.New("no frame available")
)

// Devices maps facing modes to capture device indices
type Devices struct {
	Front int
	Back  int
}

// For returns the device index for the requested facing mode
func (d Devices) For(facing config.Facing) int {
	if facing == config.FacingBack {
		return d.Back
	}
	return d.Front
}
