package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/dudu/facebridge/internal/config"
	"github.com/dudu/facebridge/internal/frame"
	"github.com/dudu/facebridge/internal/result"
)

// Style holds overlay colors and stroke sizes
type Style struct {
	BoxColor      color.NRGBA
	LandmarkColor color.NRGBA
	LineWidth     int
	Radius        int
	MeshRadius    int
}

// StyleFor builds the overlay style from launch configuration
func StyleFor(cfg config.Config) Style {
	return Style{
		BoxColor:      cfg.BoundingBoxColor.Color(),
		LandmarkColor: cfg.LandmarkColor.Color(),
		LineWidth:     2,
		Radius:        3,
		MeshRadius:    1,
	}
}

// Renderer draws frames and detection overlays onto a surface
type Renderer struct {
	style  Style
	mirror bool
}

// New creates a renderer. mirror flips the frame and overlay horizontally.
func New(style Style, mirror bool) *Renderer {
	return &Renderer{style: style, mirror: mirror}
}

// Render draws f scaled to width x height, then the faces in res.
// When fps is positive it is printed in the top-left corner.
// The frame itself is never modified.
func (r *Renderer) Render(f frame.Frame, res result.Result, width, height int, fps float64) *image.NRGBA {
	surface := r.surface(f, width, height)
	defer surface.Close()

	switch res.Kind {
	case result.KindDetections:
		for _, d := range res.Detections {
			r.drawDetection(&surface, d)
		}
	case result.KindMeshes:
		for _, m := range res.Meshes {
			r.drawMesh(&surface, m)
		}
	}

	if r.mirror {
		gocv.Flip(surface, &surface, 1)
	}

	if fps > 0 {
		gocv.PutText(&surface, fmt.Sprintf("FPS: %.1f", fps), image.Pt(10, 30),
			gocv.FontHersheyPlain, 1.5, rgba(r.style.LandmarkColor), 2)
	}

	img, err := surface.ToImage()
	if err != nil {
		return imaging.New(width, height, color.Black)
	}
	return imaging.Clone(img)
}

// surface returns a width x height BGR Mat holding the frame, or black
// when there is no frame
func (r *Renderer) surface(f frame.Frame, width, height int) gocv.Mat {
	blank := func() gocv.Mat {
		return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC3)
	}
	if f.Empty() {
		return blank()
	}

	mat, err := gocv.ImageToMatRGB(imaging.Clone(f.Image))
	if err != nil {
		return blank()
	}
	if f.Width == width && f.Height == height {
		return mat
	}

	defer mat.Close()
	resized := gocv.NewMat()
	gocv.Resize(mat, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return resized
}

func (r *Renderer) drawDetection(dst *gocv.Mat, d result.Detection) {
	w, h := dst.Cols(), dst.Rows()
	box := d.BoundingBox

	rect := image.Rect(
		scale(box.XMin, w), scale(box.YMin, h),
		scale(box.XMin+box.Width, w), scale(box.YMin+box.Height, h),
	)
	gocv.Rectangle(dst, rect, rgba(r.style.BoxColor), r.style.LineWidth)

	for _, p := range d.Landmarks {
		gocv.Circle(dst, image.Pt(scale(p.X, w), scale(p.Y, h)), r.style.Radius, rgba(r.style.LandmarkColor), -1)
	}
}

func (r *Renderer) drawMesh(dst *gocv.Mat, m result.Mesh) {
	w, h := dst.Cols(), dst.Rows()
	pt := func(i int) image.Point {
		l := m.Landmarks[i]
		return image.Pt(scale(l.X, w), scale(l.Y, h))
	}

	for _, contour := range meshContours {
		for i := 1; i < len(contour); i++ {
			a, b := contour[i-1], contour[i]
			if a >= len(m.Landmarks) || b >= len(m.Landmarks) {
				continue
			}
			gocv.Line(dst, pt(a), pt(b), rgba(r.style.BoxColor), 1)
		}
	}

	for i := range m.Landmarks {
		gocv.Circle(dst, pt(i), r.style.MeshRadius, rgba(r.style.LandmarkColor), -1)
	}
}

// rgba converts an opaque overlay color for gocv drawing calls
func rgba(c color.NRGBA) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// scale maps a normalized coordinate onto a surface axis of n pixels
func scale(v float64, n int) int {
	return int(v * float64(n))
}
