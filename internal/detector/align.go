package detector

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// Upright 5-point face layout on a 112x112 template. Only its shape
// matters: it is the reference the roll of a detected face is
// measured against.
var uprightFace = []Point{
	{X: 38.2946, Y: 51.6963}, // left eye
	{X: 73.5318, Y: 51.5014}, // right eye
	{X: 56.0252, Y: 71.7366}, // nose
	{X: 41.5493, Y: 92.3655}, // left mouth
	{X: 70.7299, Y: 92.2041}, // right mouth
}

// Mesh indices standing in for the 5 detector key points when a face
// is tracked from its previous mesh
const (
	meshLeftEye    = 33
	meshRightEye   = 263
	meshNose       = 1
	meshLeftMouth  = 61
	meshRightMouth = 291
)

// similarity is a rotation, uniform scale and translation:
//
//	x' = a*x - b*y + tx
//	y' = b*x + a*y + ty
type similarity struct {
	a, b, tx, ty float64
}

func (s similarity) apply(p Point) Point {
	x, y := float64(p.X), float64(p.Y)
	return Point{
		X: float32(s.a*x - s.b*y + s.tx),
		Y: float32(s.b*x + s.a*y + s.ty),
	}
}

// scale returns the uniform scale factor
func (s similarity) scale() float64 {
	return math.Hypot(s.a, s.b)
}

// angle returns the rotation in radians
func (s similarity) angle() float64 {
	return math.Atan2(s.b, s.a)
}

func (s similarity) invert() similarity {
	k2 := s.a*s.a + s.b*s.b
	if k2 == 0 {
		return similarity{}
	}
	return similarity{
		a:  s.a / k2,
		b:  -s.b / k2,
		tx: -(s.a*s.tx + s.b*s.ty) / k2,
		ty: (s.b*s.tx - s.a*s.ty) / k2,
	}
}

// estimateSimilarity fits the least squares similarity taking src onto dst
func estimateSimilarity(src, dst []Point) similarity {
	n := min(len(src), len(dst))
	if n == 0 {
		return similarity{a: 1}
	}

	var srcCx, srcCy, dstCx, dstCy float64
	for i := 0; i < n; i++ {
		srcCx += float64(src[i].X)
		srcCy += float64(src[i].Y)
		dstCx += float64(dst[i].X)
		dstCy += float64(dst[i].Y)
	}
	srcCx /= float64(n)
	srcCy /= float64(n)
	dstCx /= float64(n)
	dstCy /= float64(n)

	var srcNorm, dstNorm float64
	var dot, cross float64
	for i := 0; i < n; i++ {
		sx := float64(src[i].X) - srcCx
		sy := float64(src[i].Y) - srcCy
		dx := float64(dst[i].X) - dstCx
		dy := float64(dst[i].Y) - dstCy

		srcNorm += sx*sx + sy*sy
		dstNorm += dx*dx + dy*dy
		dot += sx*dx + sy*dy
		cross += sx*dy - sy*dx
	}
	if srcNorm == 0 {
		return similarity{a: 1, tx: dstCx - srcCx, ty: dstCy - srcCy}
	}

	norm := math.Hypot(dot, cross)
	if norm < 1e-10 {
		norm = 1
		dot = 1
	}
	scale := math.Sqrt(dstNorm / srcNorm)

	s := similarity{
		a: scale * dot / norm,
		b: scale * cross / norm,
	}
	// translation: dstC - scale * R * srcC
	s.tx = dstCx - (s.a*srcCx - s.b*srcCy)
	s.ty = dstCy - (s.b*srcCx + s.a*srcCy)
	return s
}

// faceRoll returns the in-plane rotation of a face in radians, positive
// clockwise in image coordinates. Faces without usable key points are
// treated as upright.
func faceRoll(l Landmarks) float64 {
	dx := l.RightEye.X - l.LeftEye.X
	dy := l.RightEye.Y - l.LeftEye.Y
	if dx*dx+dy*dy < 1 {
		return 0
	}
	return estimateSimilarity(uprightFace, l.Points()).angle()
}

// meshKeypoints picks the detector-style key points out of a face mesh
func meshKeypoints(points []MeshPoint) Landmarks {
	if len(points) <= meshRightMouth {
		return Landmarks{}
	}
	at := func(i int) Point { return Point{X: points[i].X, Y: points[i].Y} }
	return Landmarks{
		LeftEye:    at(meshLeftEye),
		RightEye:   at(meshRightEye),
		Nose:       at(meshNose),
		LeftMouth:  at(meshLeftMouth),
		RightMouth: at(meshRightMouth),
	}
}

// roi is the rotated square image region fed to the mesh model
type roi struct {
	center Point
	side   float32
	angle  float64
}

// regionFor expands a face into a square region centered on its box
// and rotated to the face roll
func regionFor(face Face, cropScale float32) roi {
	box := face.BoundingBox
	side := max32(box.Width(), box.Height()) * cropScale
	if side < 1 {
		side = 1
	}
	return roi{
		center: box.Center(),
		side:   side,
		angle:  faceRoll(face.Landmarks),
	}
}

// toCrop maps image pixels into a size x size crop of r in which the
// face is upright
func (r roi) toCrop(size int) similarity {
	k := float64(size) / float64(r.side)
	s := similarity{
		a: k * math.Cos(r.angle),
		b: -k * math.Sin(r.angle),
	}
	half := float64(size) / 2
	cx, cy := float64(r.center.X), float64(r.center.Y)
	s.tx = half - (s.a*cx - s.b*cy)
	s.ty = half - (s.b*cx + s.a*cy)
	return s
}

// mat returns t shifted for an image whose bounds start at origin, as
// the 2x3 affine matrix WarpAffine expects
func (s similarity) mat(origin image.Point) gocv.Mat {
	ox, oy := float64(origin.X), float64(origin.Y)
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	m.SetDoubleAt(0, 0, s.a)
	m.SetDoubleAt(0, 1, -s.b)
	m.SetDoubleAt(0, 2, s.tx+s.a*ox-s.b*oy)
	m.SetDoubleAt(1, 0, s.b)
	m.SetDoubleAt(1, 1, s.a)
	m.SetDoubleAt(1, 2, s.ty+s.b*ox+s.a*oy)
	return m
}

// warp cuts a size x size crop out of img through the image to crop
// transform t. Pixels falling outside img are black.
func warp(img image.Image, t similarity, size int) (*image.NRGBA, error) {
	// Clone packs img at the origin so its pixel rows are contiguous
	src, err := gocv.ImageToMatRGB(imaging.Clone(img))
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	m := t.mat(img.Bounds().Min)
	defer m.Close()

	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(src, &aligned, m, image.Pt(size, size))

	out, err := aligned.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert crop: %w", err)
	}
	return imaging.Clone(out), nil
}
