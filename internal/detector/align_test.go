package detector

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func rotated(deg float64) similarity {
	rad := deg * math.Pi / 180
	return similarity{a: 2 * math.Cos(rad), b: 2 * math.Sin(rad), tx: 100, ty: 50}
}

func TestEstimateSimilarityRecoversTransform(t *testing.T) {
	want := rotated(30)
	dst := make([]Point, len(uprightFace))
	for i, p := range uprightFace {
		dst[i] = want.apply(p)
	}

	got := estimateSimilarity(uprightFace, dst)

	for _, c := range []struct {
		name      string
		got, want float64
	}{
		{"a", got.a, want.a},
		{"b", got.b, want.b},
		{"tx", got.tx, want.tx},
		{"ty", got.ty, want.ty},
	} {
		if !near(c.got, c.want, 1e-3) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestSimilarityInvert(t *testing.T) {
	s := rotated(-75)
	p := Point{X: 12.5, Y: -40}

	back := s.invert().apply(s.apply(p))

	if !near(float64(back.X), float64(p.X), 1e-3) || !near(float64(back.Y), float64(p.Y), 1e-3) {
		t.Errorf("round trip = %+v, want %+v", back, p)
	}
}

func TestFaceRoll(t *testing.T) {
	tests := []struct {
		name string
		deg  float64
	}{
		{"upright", 0},
		{"clockwise", 30},
		{"counter clockwise", -45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := rotated(tt.deg)
			pts := make([]Point, len(uprightFace))
			for i, p := range uprightFace {
				pts[i] = s.apply(p)
			}
			l := Landmarks{LeftEye: pts[0], RightEye: pts[1], Nose: pts[2], LeftMouth: pts[3], RightMouth: pts[4]}

			if got := faceRoll(l) * 180 / math.Pi; !near(got, tt.deg, 0.01) {
				t.Errorf("roll = %v degrees, want %v", got, tt.deg)
			}
		})
	}
}

func TestFaceRollWithoutKeypoints(t *testing.T) {
	if got := faceRoll(Landmarks{}); got != 0 {
		t.Errorf("roll = %v, want 0", got)
	}
}

func TestMeshKeypoints(t *testing.T) {
	points := make([]MeshPoint, MeshLandmarks)
	for i := range points {
		points[i] = MeshPoint{X: float32(i), Y: float32(2 * i)}
	}

	l := meshKeypoints(points)

	if l.LeftEye != (Point{X: 33, Y: 66}) || l.RightEye.X != 263 || l.Nose.X != 1 || l.LeftMouth.X != 61 || l.RightMouth.X != 291 {
		t.Errorf("keypoints = %+v", l)
	}
	if got := meshKeypoints(points[:10]); got != (Landmarks{}) {
		t.Errorf("short mesh keypoints = %+v, want zero", got)
	}
}

func TestRegionFor(t *testing.T) {
	r := regionFor(Face{BoundingBox: BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 160}}, 1.5)

	if r.side != 150 {
		t.Errorf("side = %v, want 150", r.side)
	}
	if r.center != (Point{X: 150, Y: 130}) {
		t.Errorf("center = %+v, want (150,130)", r.center)
	}
	if r.angle != 0 {
		t.Errorf("angle = %v, want 0", r.angle)
	}
}

func TestDecodeMesh(t *testing.T) {
	toCrop := roi{center: Point{X: 292, Y: 242}, side: 384}.toCrop(192)
	output := []float32{96, 96, 10, 0, 192, -4}

	points := decodeMesh(output, 2, toCrop)

	want := []MeshPoint{
		{X: 292, Y: 242, Z: 20},
		{X: 100, Y: 434, Z: -8},
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("point %d = %+v, want %+v", i, points[i], want[i])
		}
	}
}

func TestDecodeMeshRotated(t *testing.T) {
	// a face rolled 90 degrees: crop "up" is image "right"
	toCrop := roi{center: Point{X: 50, Y: 50}, side: 100, angle: math.Pi / 2}.toCrop(100)

	points := decodeMesh([]float32{50, 20, 0}, 1, toCrop)

	if !near(float64(points[0].X), 80, 1e-3) || !near(float64(points[0].Y), 50, 1e-3) {
		t.Errorf("point = %+v, want (80,50)", points[0])
	}
}

func TestDecodeMeshShortOutput(t *testing.T) {
	points := decodeMesh(make([]float32, 7), MeshLandmarks, roi{side: 192}.toCrop(192))
	if len(points) != 2 {
		t.Errorf("len = %d, want 2", len(points))
	}
}

func TestWarpUpright(t *testing.T) {
	img := imaging.New(100, 100, color.Black)
	img = imaging.Paste(img, imaging.New(20, 20, color.White), image.Pt(40, 40))

	crop, err := warp(img, roi{center: Point{X: 50, Y: 50}, side: 100}.toCrop(50), 50)
	if err != nil {
		t.Fatalf("warp: %v", err)
	}

	if crop.Bounds().Dx() != 50 || crop.Bounds().Dy() != 50 {
		t.Fatalf("size = %v", crop.Bounds())
	}
	if c := crop.NRGBAAt(25, 25); c.R != 255 {
		t.Errorf("center = %v, want white", c)
	}
	if c := crop.NRGBAAt(2, 2); c.R != 0 {
		t.Errorf("corner = %v, want black", c)
	}
}

func TestWarpRotated(t *testing.T) {
	img := imaging.New(100, 100, color.Black)
	img = imaging.Paste(img, imaging.New(20, 10, color.White), image.Pt(70, 45))

	crop, err := warp(img, roi{center: Point{X: 50, Y: 50}, side: 100, angle: math.Pi / 2}.toCrop(100), 100)
	if err != nil {
		t.Fatalf("warp: %v", err)
	}

	if c := crop.NRGBAAt(50, 20); c.R != 255 {
		t.Errorf("rotated block = %v, want white", c)
	}
	if c := crop.NRGBAAt(80, 50); c.R != 0 {
		t.Errorf("unrotated position = %v, want black", c)
	}
}

func TestWarpOutsideIsBlack(t *testing.T) {
	img := imaging.New(10, 10, color.White)

	crop, err := warp(img, roi{center: Point{X: 0, Y: 0}, side: 20}.toCrop(20), 20)
	if err != nil {
		t.Fatalf("warp: %v", err)
	}

	if c := crop.NRGBAAt(2, 2); c.R != 0 {
		t.Errorf("outside pixel = %v, want black", c)
	}
	if c := crop.NRGBAAt(15, 15); c.R != 255 {
		t.Errorf("inside pixel = %v, want white", c)
	}
}

func TestWarpHonorsImageOrigin(t *testing.T) {
	base := imaging.New(100, 100, color.Black)
	base = imaging.Paste(base, imaging.New(10, 10, color.White), image.Pt(60, 60))
	sub := base.SubImage(image.Rect(50, 50, 100, 100))

	// region centered on the white block in the parent image's coordinates
	crop, err := warp(sub, roi{center: Point{X: 65, Y: 65}, side: 20}.toCrop(20), 20)
	if err != nil {
		t.Fatalf("warp: %v", err)
	}
	if c := crop.NRGBAAt(10, 10); c.R != 255 {
		t.Errorf("center = %v, want white", c)
	}
	if c := crop.NRGBAAt(1, 1); c.R != 0 {
		t.Errorf("corner = %v, want black", c)
	}
}
