package camera

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp decoding

	"github.com/dudu/facebridge/internal/frame"
)

var replayExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// Replay loops over still images in a directory at a fixed rate. It
// stands in for a camera when debugging without hardware.
type Replay struct {
	dir      string
	interval time.Duration

	mu     sync.Mutex
	images []image.Image
	next   int
	seq    uint64
	last   time.Time
	closed bool
}

// NewReplay creates a replay source; fps <= 0 delivers frames unpaced
func NewReplay(dir string, fps int) *Replay {
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &Replay{dir: dir, interval: interval}
}

// Start decodes every supported image in the directory
func (r *Replay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read replay directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && replayExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	images := make([]image.Image, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := imaging.Open(filepath.Join(r.dir, name), imaging.AutoOrientation(true))
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return fmt.Errorf("no images found in %s", r.dir)
	}

	r.images = images
	return nil
}

// Read returns the next image, waiting out the frame interval
func (r *Replay) Read(ctx context.Context) (frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return frame.Frame{}, ErrClosed
	}
	if len(r.images) == 0 {
		return frame.Frame{}, ErrNotStarted
	}

	if r.interval > 0 && !r.last.IsZero() {
		if wait := r.interval - time.Since(r.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return frame.Frame{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	r.last = time.Now()

	img := r.images[r.next]
	r.next = (r.next + 1) % len(r.images)
	r.seq++

	return frame.New(img, r.seq), nil
}

// Close stops the source and drops decoded images
func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.images = nil
	return nil
}
