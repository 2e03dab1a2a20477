package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/dudu/facebridge/internal/frame"
	"github.com/dudu/facebridge/internal/result"
)

// FaceFinder locates faces in an image
type FaceFinder interface {
	Detect(img image.Image) ([]Face, error)
	Close() error
}

// Landmarker predicts mesh landmarks for one face
type Landmarker interface {
	Landmarks(img image.Image, face Face) ([]MeshPoint, float32, error)
	Close() error
}

// FaceDetection adapts a FaceFinder to the detection-mode result
type FaceDetection struct {
	mu     sync.Mutex
	finder FaceFinder
}

// NewFaceDetection wraps finder
func NewFaceDetection(finder FaceFinder) *FaceDetection {
	return &FaceDetection{finder: finder}
}

// Infer detects faces in f and returns them in normalized coordinates
func (d *FaceDetection) Infer(ctx context.Context, f frame.Frame) (result.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return result.Result{}, err
	}
	if f.Empty() {
		return result.Result{}, errors.New("empty frame")
	}

	faces, err := d.finder.Detect(f.Image)
	if err != nil {
		return result.Result{}, fmt.Errorf("detection failed: %w", err)
	}

	origin := f.Image.Bounds().Min
	detections := make([]result.Detection, len(faces))
	for i, face := range faces {
		detections[i] = translate(face, -float32(origin.X), -float32(origin.Y)).Normalize(f.Width, f.Height)
	}

	return result.Detections(detections...).Clamped(), nil
}

// Close releases the underlying detector. It waits for an inference
// still running, such as one abandoned by a caller's timeout.
func (d *FaceDetection) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finder.Close()
}

// MeshConfig controls face mesh tracking
type MeshConfig struct {
	MaxFaces              int
	MinTrackingConfidence float32
}

// trackOverlap is the IoU above which a detected face is taken to be a
// face that is already tracked
const trackOverlap = 0.3

// MeshTracker runs the detector to find face regions, then the mesh
// model per face. Faces that stay above the tracking threshold are
// followed through their landmark bounds on the next frame; detection
// runs again only while fewer than MaxFaces faces are tracked.
type MeshTracker struct {
	mu         sync.Mutex
	finder     FaceFinder
	landmarker Landmarker
	cfg        MeshConfig
	tracked    []Face
}

// NewMeshTracker combines a detector and a landmark model
func NewMeshTracker(finder FaceFinder, landmarker Landmarker, cfg MeshConfig) *MeshTracker {
	if cfg.MaxFaces < 1 {
		cfg.MaxFaces = 1
	}
	return &MeshTracker{
		finder:     finder,
		landmarker: landmarker,
		cfg:        cfg,
	}
}

// Infer returns up to MaxFaces meshes in normalized coordinates
func (t *MeshTracker) Infer(ctx context.Context, f frame.Frame) (result.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return result.Result{}, err
	}
	if f.Empty() {
		return result.Result{}, errors.New("empty frame")
	}

	faces := t.tracked
	if len(faces) < t.cfg.MaxFaces {
		detected, err := t.finder.Detect(f.Image)
		if err != nil {
			t.tracked = nil
			return result.Result{}, fmt.Errorf("detection failed: %w", err)
		}
		faces = mergeFaces(faces, detected, t.cfg.MaxFaces)
	}

	origin := f.Image.Bounds().Min
	meshes := make([]result.Mesh, 0, len(faces))
	next := make([]Face, 0, len(faces))

	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			t.tracked = nil
			return result.Result{}, err
		}

		points, score, err := t.landmarker.Landmarks(f.Image, face)
		if err != nil {
			t.tracked = nil
			return result.Result{}, fmt.Errorf("landmarks failed: %w", err)
		}
		if score < t.cfg.MinTrackingConfidence {
			continue
		}

		next = append(next, Face{
			BoundingBox: MeshBounds(points),
			Landmarks:   meshKeypoints(points),
			Score:       score,
		})
		meshes = append(meshes, normalizeMesh(points, origin, f.Width, f.Height))
	}

	// faces below the threshold drop out; the freed slots go back to
	// the detector on the next frame
	t.tracked = next

	return result.Meshes(meshes...).Clamped(), nil
}

// Close releases both models, waiting for an inference still running
func (t *MeshTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	if err := t.landmarker.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := t.finder.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// mergeFaces appends detected faces that do not overlap a tracked one,
// keeping at most limit faces. Tracked faces come first.
func mergeFaces(tracked, detected []Face, limit int) []Face {
	faces := make([]Face, 0, limit)
	faces = append(faces, tracked[:min(len(tracked), limit)]...)

	for _, d := range detected {
		if len(faces) >= limit {
			break
		}
		overlaps := false
		for _, tr := range tracked {
			if iou(tr.BoundingBox, d.BoundingBox) > trackOverlap {
				overlaps = true
				break
			}
		}
		if !overlaps {
			faces = append(faces, d)
		}
	}
	return faces
}

func normalizeMesh(points []MeshPoint, origin image.Point, width, height int) result.Mesh {
	w, h := float64(width), float64(height)
	lms := make([]result.Landmark, len(points))
	for i, p := range points {
		lms[i] = result.Landmark{
			X: (float64(p.X) - float64(origin.X)) / w,
			Y: (float64(p.Y) - float64(origin.Y)) / h,
			Z: float64(p.Z) / w,
		}
	}
	return result.Mesh{Landmarks: lms}
}
