package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/dudu/facebridge/internal/config"
	"github.com/dudu/facebridge/internal/frame"
	"github.com/dudu/facebridge/internal/result"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// halfFrame is red on the left half and blue on the right
func halfFrame(w, h int) frame.Frame {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetNRGBA(x, y, red)
			} else {
				img.SetNRGBA(x, y, blue)
			}
		}
	}
	return frame.New(img, 1)
}

func TestMirroring(t *testing.T) {
	tests := []struct {
		query      string
		wantMirror bool
	}{
		{"flipHorizontal=true", true},
		{"flipHorizontal=false", false},
		{"isBackCamera=true&flipHorizontal=true", false},
		{"isBackCamera=true", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			cfg := config.Resolve(config.ModeDetection, config.ParseQuery(tt.query))
			r := New(StyleFor(cfg), cfg.Mirrored())

			out := r.Render(halfFrame(40, 20), result.Detections(), 40, 20, 0)

			left := out.NRGBAAt(2, 10)
			want := red
			if tt.wantMirror {
				want = blue
			}
			if left != want {
				t.Errorf("left pixel = %v, want %v", left, want)
			}
		})
	}
}

func TestRenderDoesNotMutateFrame(t *testing.T) {
	f := halfFrame(40, 20)
	r := New(StyleFor(config.Default(config.ModeDetection)), true)

	r.Render(f, result.Detections(result.Detection{
		BoundingBox: result.BoxFromCorners(0, 0, 1, 1),
	}), 40, 20, 0)

	if got := f.Image.(*image.NRGBA).NRGBAAt(0, 0); got != red {
		t.Errorf("frame pixel changed to %v", got)
	}
}

func TestRenderDetectionOverlay(t *testing.T) {
	style := Style{
		BoxColor:      color.NRGBA{G: 200, A: 255},
		LandmarkColor: color.NRGBA{R: 1, G: 2, B: 3, A: 255},
		LineWidth:     2,
		Radius:        3,
	}
	r := New(style, false)

	res := result.Detections(result.Detection{
		BoundingBox: result.BoxFromCorners(0.25, 0.25, 0.75, 0.75),
		Landmarks:   []result.Point{{X: 0.5, Y: 0.5}},
	})
	out := r.Render(halfFrame(100, 100), res, 100, 100, 0)

	if got := out.NRGBAAt(25, 50); got != style.BoxColor {
		t.Errorf("box edge = %v, want %v", got, style.BoxColor)
	}
	if got := out.NRGBAAt(50, 50); got != style.LandmarkColor {
		t.Errorf("landmark = %v, want %v", got, style.LandmarkColor)
	}
	if got := out.NRGBAAt(40, 40); got != red {
		t.Errorf("inside box = %v, want frame pixel", got)
	}
}

func TestRenderScalesToSurface(t *testing.T) {
	r := New(StyleFor(config.Default(config.ModeDetection)), false)

	out := r.Render(halfFrame(40, 20), result.Detections(), 80, 60, 0)

	if out.Rect.Dx() != 80 || out.Rect.Dy() != 60 {
		t.Fatalf("surface = %v, want 80x60", out.Rect)
	}
	if got := out.NRGBAAt(75, 30); got != blue {
		t.Errorf("right pixel = %v, want blue", got)
	}
}

func TestRenderMeshSkipsMissingIndices(t *testing.T) {
	r := New(StyleFor(config.Default(config.ModeMesh)), false)
	res := result.Meshes(result.Mesh{Landmarks: []result.Landmark{{X: 0.5, Y: 0.5}}})

	out := r.Render(halfFrame(20, 20), res, 20, 20, 0)

	if got := out.NRGBAAt(10, 10); got != (color.NRGBA{G: 255, A: 255}) {
		t.Errorf("mesh landmark = %v", got)
	}
}

func TestRenderMeshConnectors(t *testing.T) {
	style := StyleFor(config.Default(config.ModeMesh))
	r := New(style, false)

	lms := make([]result.Landmark, 468)
	first := meshContours[0]
	lms[first[0]] = result.Landmark{X: 0.1, Y: 0.5}
	lms[first[1]] = result.Landmark{X: 0.9, Y: 0.5}

	out := r.Render(frame.Frame{}, result.Meshes(result.Mesh{Landmarks: lms}), 100, 100, 0)

	if got := out.NRGBAAt(50, 50); got != style.BoxColor {
		t.Errorf("connector pixel = %v, want %v", got, style.BoxColor)
	}
	if got := out.NRGBAAt(50, 90); got != (color.NRGBA{A: 255}) {
		t.Errorf("background = %v, want black", got)
	}
}

func TestRenderPrintsFPS(t *testing.T) {
	style := StyleFor(config.Default(config.ModeDetection))
	r := New(style, false)

	out := r.Render(frame.Frame{}, result.Detections(), 200, 100, 29.7)

	found := false
	for y := 10; y <= 32 && !found; y++ {
		for x := 10; x < 150; x++ {
			if out.NRGBAAt(x, y) == style.LandmarkColor {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no FPS text drawn")
	}

	none := r.Render(frame.Frame{}, result.Detections(), 200, 100, 0)
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if c := none.NRGBAAt(x, y); c != (color.NRGBA{A: 255}) {
				t.Fatalf("pixel (%d,%d) = %v without fps, want black", x, y, c)
			}
		}
	}
}
