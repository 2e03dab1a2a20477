package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dudu/facebridge/internal/camera"
	"github.com/dudu/facebridge/internal/config"
	"github.com/dudu/facebridge/internal/frame"
	"github.com/dudu/facebridge/internal/result"
	"github.com/dudu/facebridge/internal/viewport"
)

var (
	// ErrCaptureStart wraps a failure to bring the capture device up
	ErrCaptureStart = errors.New("camera start failed")
	// ErrInference wraps a per-frame inference failure
	ErrInference = errors.New("inference failed")
	// ErrInferenceTimeout marks a frame skipped by the watchdog
	ErrInferenceTimeout = errors.New("inference timed out")
	// ErrNotRunning is returned when frames arrive outside the running state
	ErrNotRunning = errors.New("pipeline not running")
)

// readRetryDelay spaces out reads after the source returned no frame
const readRetryDelay = 10 * time.Millisecond

// Options wires the pipeline to its collaborators
type Options struct {
	Launch   config.Config
	Source   Source
	Inferer  Inferer
	Bridge   Dispatcher
	Viewport *viewport.Manager
	// Renderer and Preview are optional; rendering happens only when
	// the launch configuration enables drawing.
	Renderer Renderer
	Preview  Preview
	Logger   *slog.Logger
	// InferenceTimeout demotes a stuck inference to a skipped frame.
	// Zero disables the watchdog.
	InferenceTimeout time.Duration
}

// Timing holds performance timing information for one frame
type Timing struct {
	Inference time.Duration
	Render    time.Duration
	Dispatch  time.Duration
	Total     time.Duration
}

// Stats summarizes pipeline activity
type Stats struct {
	State      State
	Processed  uint64 // frames that produced a host message
	Skipped    uint64 // frames dropped by inference errors
	TimedOut   uint64 // subset of Skipped caught by the watchdog
	FPS        float64
	LastTiming Timing
}

// Pipeline drives one capture → inference → render → dispatch stream.
// Frames are processed strictly one at a time.
type Pipeline struct {
	launch   config.Config
	source   Source
	inferer  Inferer
	bridge   Dispatcher
	viewport *viewport.Manager
	renderer Renderer
	preview  Preview
	log      *slog.Logger
	timeout  time.Duration
	rate     *FrameRate

	mu        sync.Mutex
	state     State
	processed uint64
	skipped   uint64
	timedOut  uint64
	timing    Timing
	stopOnce  sync.Once
	stopErr   error
}

// New creates a pipeline in the idle state
func New(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("capture source is required")
	}
	if opts.Inferer == nil {
		return nil, fmt.Errorf("inferer is required")
	}
	if opts.Bridge == nil {
		return nil, fmt.Errorf("host bridge is required")
	}
	if opts.Viewport == nil {
		opts.Viewport = viewport.NewManager(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Pipeline{
		launch:   opts.Launch,
		source:   opts.Source,
		inferer:  opts.Inferer,
		bridge:   opts.Bridge,
		viewport: opts.Viewport,
		renderer: opts.Renderer,
		preview:  opts.Preview,
		log:      opts.Logger,
		timeout:  opts.InferenceTimeout,
		rate:     NewFrameRate(time.Second),
		state:    StateIdle,
	}, nil
}

// Start configures the viewport and brings the capture device up. On
// failure it reports one error message to the host and the pipeline
// moves to StateFailed; it is never retried.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("cannot start pipeline in state %s", state)
	}
	p.state = StateStarting
	p.mu.Unlock()

	p.viewport.Configure(p.launch.Fullscreen)
	w, h := p.viewport.Size()
	p.log.Info("pipeline starting",
		"mode", p.launch.Mode,
		"facing", p.launch.Facing,
		"fullscreen", p.launch.Fullscreen,
		"surface", fmt.Sprintf("%dx%d", w, h))

	if err := p.source.Start(ctx); err != nil {
		p.mu.Lock()
		if p.state == StateStopped {
			// Stop released the device while it was coming up
			p.mu.Unlock()
			p.log.Info("pipeline stopped during camera start", "error", err)
			return nil
		}
		p.state = StateFailed
		p.mu.Unlock()

		p.log.Error("camera start failed", "error", err)
		p.bridge.Send(result.ErrorMessage("Camera start failed: " + err.Error()))
		return fmt.Errorf("%w: %w", ErrCaptureStart, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateStarting {
		// stopped while the device was coming up
		return nil
	}
	p.state = StateRunning
	p.log.Info("camera started successfully")
	return nil
}

// Run reads frames until the context is cancelled or the pipeline is
// stopped. Per-frame failures are logged and the loop continues. A
// pipeline already stopped returns nil at once.
func (p *Pipeline) Run(ctx context.Context) error {
	switch p.State() {
	case StateRunning:
	case StateStopped:
		return nil
	default:
		return ErrNotRunning
	}

	for {
		if p.State() != StateRunning {
			return nil
		}

		f, err := p.source.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, camera.ErrClosed):
				return nil
			}
			p.log.Debug("frame read failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readRetryDelay):
			}
			continue
		}

		if err := p.OnFrame(ctx, f); err != nil && errors.Is(err, ErrNotRunning) {
			return nil
		}
	}
}

// OnFrame processes one frame: surface sync, inference, optional
// rendering and dispatch of exactly one host message. A failed
// inference skips the frame and returns an error wrapping ErrInference.
func (p *Pipeline) OnFrame(ctx context.Context, f frame.Frame) error {
	if p.State() != StateRunning {
		return ErrNotRunning
	}
	start := time.Now()
	var timing Timing

	if !p.viewport.Fullscreen() && p.viewport.SyncToFrame(f.Width, f.Height) {
		p.log.Debug("surface resized to frame", "width", f.Width, "height", f.Height)
	}

	inferStart := time.Now()
	res, err := p.infer(ctx, f)
	timing.Inference = time.Since(inferStart)
	if err != nil {
		p.mu.Lock()
		p.skipped++
		if errors.Is(err, ErrInferenceTimeout) {
			p.timedOut++
		}
		p.mu.Unlock()

		p.log.Warn("frame skipped", "seq", f.Seq, "error", err)
		return fmt.Errorf("%w: %w", ErrInference, err)
	}

	p.mu.Lock()
	fps := p.rate.Tick()
	p.mu.Unlock()

	if p.launch.DrawOverlay && p.renderer != nil {
		renderStart := time.Now()
		w, h := p.viewport.Size()
		surface := p.renderer.Render(f, res, w, h, fps)
		if p.preview != nil {
			if err := p.preview.Show(surface); err != nil {
				p.log.Warn("preview failed", "error", err)
			}
		}
		timing.Render = time.Since(renderStart)
	}

	dispatchStart := time.Now()
	p.bridge.Send(result.Project(res))
	timing.Dispatch = time.Since(dispatchStart)
	timing.Total = time.Since(start)

	p.mu.Lock()
	p.processed++
	p.timing = timing
	p.mu.Unlock()

	p.log.Debug("frame processed",
		"seq", f.Seq,
		"faces", res.Len(),
		"inference", timing.Inference,
		"total", timing.Total)
	return nil
}

type inference struct {
	res result.Result
	err error
}

// infer runs the model under the watchdog. A timed-out call keeps
// running in the background; its result is discarded.
func (p *Pipeline) infer(ctx context.Context, f frame.Frame) (result.Result, error) {
	if p.timeout <= 0 {
		return p.inferer.Infer(ctx, f)
	}

	ictx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan inference, 1)
	go func() {
		res, err := p.inferer.Infer(ictx, f)
		done <- inference{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(ictx.Err(), context.DeadlineExceeded) {
			return result.Result{}, p.timeoutError()
		}
		return out.res, out.err
	case <-ictx.Done():
		if err := ctx.Err(); err != nil {
			return result.Result{}, err
		}
		return result.Result{}, p.timeoutError()
	}
}

func (p *Pipeline) timeoutError() error {
	return fmt.Errorf("%w after %s", ErrInferenceTimeout, p.timeout)
}

// OnResize forwards a host window resize to the viewport
func (p *Pipeline) OnResize() {
	p.viewport.OnResize()
	w, h := p.viewport.Size()
	p.log.Debug("window resized", "width", w, "height", h)
}

// Stop halts future frames and releases the capture device. It is
// safe to call more than once and from any goroutine.
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		if p.state != StateFailed {
			p.state = StateStopped
		}
		p.mu.Unlock()

		if err := p.source.Close(); err != nil {
			p.stopErr = fmt.Errorf("failed to release camera: %w", err)
		}
		p.log.Info("pipeline stopped")
	})
	return p.stopErr
}

// Close stops the pipeline and releases the inference models
func (p *Pipeline) Close() error {
	var errs []error

	if err := p.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := p.inferer.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// State returns the current lifecycle state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Viewport returns the surface manager
func (p *Pipeline) Viewport() *viewport.Manager {
	return p.viewport
}

// Stats returns a snapshot of pipeline counters
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		State:      p.state,
		Processed:  p.processed,
		Skipped:    p.skipped,
		TimedOut:   p.timedOut,
		FPS:        p.rate.FPS(),
		LastTiming: p.timing,
	}
}
