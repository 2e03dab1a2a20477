package frame

import (
	"image"
	"time"
)

// Frame is one captured camera image. The pipeline treats Image as read-only.
type Frame struct {
	Image    image.Image
	Width    int // intrinsic width in pixels
	Height   int // intrinsic height in pixels
	Seq      uint64
	Captured time.Time
}

// New wraps img, taking the intrinsic size from its bounds
func New(img image.Image, seq uint64) Frame {
	b := img.Bounds()
	return Frame{
		Image:    img,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Seq:      seq,
		Captured: time.Now(),
	}
}

// Empty reports whether the frame carries no pixels
func (f Frame) Empty() bool {
	return f.Image == nil || f.Width <= 0 || f.Height <= 0
}
