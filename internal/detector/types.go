package detector

import "github.com/dudu/facebridge/internal/result"

// Point represents a 2D point in image pixels
type Point struct {
	X, Y float32
}

// BoundingBox represents a face bounding box in image pixels
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Normalize converts the box into fractions of a width x height image
func (b BoundingBox) Normalize(width, height int) result.BoundingBox {
	w, h := float64(width), float64(height)
	return result.BoxFromCorners(
		float64(b.X1)/w, float64(b.Y1)/h,
		float64(b.X2)/w, float64(b.Y2)/h,
	)
}

// Landmarks represents 5 facial landmark points
type Landmarks struct {
	LeftEye    Point // index 0
	RightEye   Point // index 1
	Nose       Point // index 2
	LeftMouth  Point // index 3
	RightMouth Point // index 4
}

// Points returns landmarks in model order
func (l Landmarks) Points() []Point {
	return []Point{l.LeftEye, l.RightEye, l.Nose, l.LeftMouth, l.RightMouth}
}

// Face represents a detected face
type Face struct {
	BoundingBox BoundingBox
	Landmarks   Landmarks
	Score       float32
}

// Normalize converts the face into a result.Detection for a
// width x height frame
func (f Face) Normalize(width, height int) result.Detection {
	pts := f.Landmarks.Points()
	lms := make([]result.Point, len(pts))
	for i, p := range pts {
		lms[i] = result.Point{X: float64(p.X) / float64(width), Y: float64(p.Y) / float64(height)}
	}
	return result.Detection{
		BoundingBox: f.BoundingBox.Normalize(width, height),
		Landmarks:   lms,
		Confidence:  float64(f.Score),
	}
}

// MeshPoint is one face mesh landmark in image pixels. Z shares the
// scale of X.
type MeshPoint struct {
	X, Y, Z float32
}

// MeshBounds computes the tight bounding box around mesh points
func MeshBounds(points []MeshPoint) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for _, p := range points[1:] {
		minX = min32(minX, p.X)
		maxX = max32(maxX, p.X)
		minY = min32(minY, p.Y)
		maxY = max32(maxY, p.Y)
	}
	return BoundingBox{X1: minX, Y1: minY, X2: maxX, Y2: maxY}
}
