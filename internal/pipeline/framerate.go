package pipeline

import "time"

// FrameRate estimates frames per second over fixed windows
type FrameRate struct {
	window  time.Duration
	start   time.Time
	count   int
	fps     float64
	nowFunc func() time.Time
}

// NewFrameRate creates a counter that updates once per window
func NewFrameRate(window time.Duration) *FrameRate {
	if window <= 0 {
		window = time.Second
	}
	return &FrameRate{window: window, nowFunc: time.Now}
}

// Tick records one frame and returns the current estimate
func (r *FrameRate) Tick() float64 {
	now := r.nowFunc()
	if r.start.IsZero() {
		r.start = now
	}
	r.count++

	if elapsed := now.Sub(r.start); elapsed >= r.window {
		r.fps = float64(r.count) / elapsed.Seconds()
		r.count = 0
		r.start = now
	}
	return r.fps
}

// FPS returns the last completed estimate
func (r *FrameRate) FPS() float64 {
	return r.fps
}
