package webcam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/facebridge/internal/camera"
	"github.com/dudu/facebridge/internal/frame"
)

// Config describes the requested capture device and resolution
type Config struct {
	DeviceID  int
	TargetFPS int
	Width     int
	Height    int
}

// Webcam captures frames from a local camera device
type Webcam struct {
	cfg    Config
	webcam *gocv.VideoCapture
	mat    gocv.Mat
	width  int
	height int
	seq    uint64
	closed bool
	mu     sync.Mutex
}

// New creates a webcam source. The device is opened by Start.
func New(cfg Config) *Webcam {
	return &Webcam{cfg: cfg}
}

// Start opens the device and applies the requested resolution
func (c *Webcam) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return camera.ErrClosed
	}
	if c.webcam != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	webcam, err := gocv.OpenVideoCapture(c.cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to open camera %d: %w", c.cfg.DeviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return fmt.Errorf("camera %d is not available", c.cfg.DeviceID)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	if c.cfg.TargetFPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(c.cfg.TargetFPS))
	}

	// Get actual dimensions (camera may not support requested resolution)
	c.width = int(webcam.Get(gocv.VideoCaptureFrameWidth))
	c.height = int(webcam.Get(gocv.VideoCaptureFrameHeight))
	c.webcam = webcam
	c.mat = gocv.NewMat()

	slog.Info("camera opened",
		"device", c.cfg.DeviceID,
		"requested", fmt.Sprintf("%dx%d", c.cfg.Width, c.cfg.Height),
		"actual", fmt.Sprintf("%dx%d", c.width, c.height))

	return nil
}

// Read blocks until the device delivers the next frame
func (c *Webcam) Read(ctx context.Context) (frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return frame.Frame{}, camera.ErrClosed
	}
	if c.webcam == nil {
		return frame.Frame{}, camera.ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}

	if !c.webcam.Read(&c.mat) || c.mat.Empty() {
		return frame.Frame{}, camera.ErrNoFrame
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("failed to convert frame: %w", err)
	}

	c.seq++
	return frame.New(img, c.seq), nil
}

// Width returns the actual frame width reported by the device
func (c *Webcam) Width() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

// Height returns the actual frame height reported by the device
func (c *Webcam) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Close releases the camera
func (c *Webcam) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.webcam != nil {
		err := c.webcam.Close()
		c.mat.Close()
		c.webcam = nil
		return err
	}
	return nil
}
