package result

import "math"

// Kind tags which variant a Result holds
type Kind int

const (
	KindDetections Kind = iota
	KindMeshes
)

func (k Kind) String() string {
	switch k {
	case KindDetections:
		return "detections"
	case KindMeshes:
		return "meshes"
	default:
		return "unknown"
	}
}

// Point is a normalized 2D landmark
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is an axis-aligned face box in normalized coordinates
type BoundingBox struct {
	XMin    float64 `json:"xMin"`
	YMin    float64 `json:"yMin"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	XCenter float64 `json:"xCenter"`
	YCenter float64 `json:"yCenter"`
}

// BoxFromCorners builds a BoundingBox from top-left and bottom-right corners
func BoxFromCorners(x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{
		XMin:    x1,
		YMin:    y1,
		Width:   x2 - x1,
		Height:  y2 - y1,
		XCenter: (x1 + x2) / 2,
		YCenter: (y1 + y2) / 2,
	}
}

// Detection is one face found by the detection model
type Detection struct {
	BoundingBox BoundingBox `json:"boundingBox"`
	Landmarks   []Point     `json:"landmarks"`
	Confidence  float64     `json:"confidence"`
}

// Landmark is one face mesh point. Z is depth relative to the face
// center and is not normalized.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Mesh is the landmark set of one tracked face
type Mesh struct {
	Landmarks []Landmark `json:"landmarks"`
}

// Result is the per-frame output of the inference stage.
// Exactly one of Detections or Meshes is meaningful, selected by Kind.
type Result struct {
	Kind       Kind
	Detections []Detection
	Meshes     []Mesh
}

// Detections builds a detection-mode Result
func Detections(d ...Detection) Result {
	return Result{Kind: KindDetections, Detections: d}
}

// Meshes builds a mesh-mode Result
func Meshes(m ...Mesh) Result {
	return Result{Kind: KindMeshes, Meshes: m}
}

// Len returns the number of faces in the result
func (r Result) Len() int {
	if r.Kind == KindMeshes {
		return len(r.Meshes)
	}
	return len(r.Detections)
}

// Clamped returns a copy with every x/y coordinate limited to [0,1].
// The receiver is left untouched.
func (r Result) Clamped() Result {
	out := Result{Kind: r.Kind}

	switch r.Kind {
	case KindDetections:
		out.Detections = make([]Detection, len(r.Detections))
		for i, d := range r.Detections {
			x1, y1 := clamp01(d.BoundingBox.XMin), clamp01(d.BoundingBox.YMin)
			x2 := clamp01(d.BoundingBox.XMin + d.BoundingBox.Width)
			y2 := clamp01(d.BoundingBox.YMin + d.BoundingBox.Height)

			lms := make([]Point, len(d.Landmarks))
			for j, p := range d.Landmarks {
				lms[j] = Point{X: clamp01(p.X), Y: clamp01(p.Y)}
			}

			out.Detections[i] = Detection{
				BoundingBox: BoxFromCorners(x1, y1, x2, y2),
				Landmarks:   lms,
				Confidence:  d.Confidence,
			}
		}
	case KindMeshes:
		out.Meshes = make([]Mesh, len(r.Meshes))
		for i, m := range r.Meshes {
			lms := make([]Landmark, len(m.Landmarks))
			for j, l := range m.Landmarks {
				lms[j] = Landmark{X: clamp01(l.X), Y: clamp01(l.Y), Z: l.Z, Visibility: l.Visibility}
			}
			out.Meshes[i] = Mesh{Landmarks: lms}
		}
	}

	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
