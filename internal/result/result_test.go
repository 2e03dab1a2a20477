package result

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestClampedKeepsCoordinatesInUnitRange(t *testing.T) {
	r := Detections(Detection{
		BoundingBox: BoxFromCorners(-0.2, 0.1, 1.3, 0.9),
		Landmarks:   []Point{{X: -1, Y: 0.5}, {X: 0.5, Y: 2}},
		Confidence:  0.9,
	})

	c := r.Clamped()
	d := c.Detections[0]
	box := d.BoundingBox
	for name, v := range map[string]float64{
		"xMin": box.XMin, "yMin": box.YMin, "width": box.Width, "height": box.Height,
		"xCenter": box.XCenter, "yCenter": box.YCenter,
		"lm0.x": d.Landmarks[0].X, "lm1.y": d.Landmarks[1].Y,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s = %v, outside [0,1]", name, v)
		}
	}
	if box.XMin != 0 || box.Width != 1 {
		t.Errorf("box = %+v, want xMin 0 width 1", box)
	}
	if d.Confidence != 0.9 {
		t.Errorf("confidence = %v", d.Confidence)
	}
	if r.Detections[0].Landmarks[0].X != -1 {
		t.Error("Clamped modified its receiver")
	}
}

func TestClampedMeshKeepsDepth(t *testing.T) {
	r := Meshes(Mesh{Landmarks: []Landmark{{X: 1.2, Y: -0.1, Z: -3.5, Visibility: 0.8}}})
	got := r.Clamped().Meshes[0].Landmarks[0]
	want := Landmark{X: 1, Y: 0, Z: -3.5, Visibility: 0.8}
	if got != want {
		t.Errorf("landmark = %+v, want %+v", got, want)
	}
}

func TestProjectDetections(t *testing.T) {
	msg := Project(Detections(Detection{
		BoundingBox: BoxFromCorners(0.25, 0.25, 0.75, 0.5),
		Landmarks:   []Point{{X: 0.4, Y: 0.3}},
		Confidence:  0.75,
	}))

	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"boundingBox":{"xMin":0.25,"yMin":0.25,"width":0.5,"height":0.25,"xCenter":0.5,"yCenter":0.375},` +
		`"landmarks":[{"x":0.4,"y":0.3}],"confidence":0.75}]`
	if string(b) != want {
		t.Errorf("json = %s\nwant   %s", b, want)
	}
}

func TestProjectEmptyIsArray(t *testing.T) {
	for _, r := range []Result{Detections(), Meshes(), {}} {
		b, err := json.Marshal(Project(r))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(b) != "[]" {
			t.Errorf("%s: json = %s, want []", r.Kind, b)
		}
	}
}

func TestProjectMeshWith468Landmarks(t *testing.T) {
	lms := make([]Landmark, 468)
	for i := range lms {
		lms[i] = Landmark{X: 0.5, Y: 0.5, Z: -0.01}
	}
	msg := Project(Meshes(Mesh{Landmarks: lms}))

	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded []map[string][]map[string]float64
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != 1 || len(decoded[0]["landmarks"]) != 468 {
		t.Fatalf("decoded shape wrong: %d faces", len(decoded))
	}
	for _, key := range []string{"x", "y", "z", "visibility"} {
		if _, ok := decoded[0]["landmarks"][0][key]; !ok {
			t.Errorf("landmark missing %q", key)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	msg := ErrorMessage("Camera start failed: permission denied")
	if !msg.IsError() {
		t.Fatal("IsError() = false")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"error":"Camera start failed: permission denied"}` {
		t.Errorf("json = %s", b)
	}
	if strings.Contains(string(b), "[") {
		t.Error("error envelope encoded as array")
	}
}
