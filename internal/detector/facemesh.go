package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/facebridge/internal/inference"
)

// Landmark counts of the supported face mesh models
const (
	MeshLandmarks        = 468
	RefinedMeshLandmarks = 478 // adds iris points
)

// FaceMeshConfig configures the face mesh landmark model
type FaceMeshConfig struct {
	ModelPath      string
	InputName      string
	LandmarkOutput string
	ScoreOutput    string
	InputSize      int
	NumLandmarks   int
	// CropScale expands the face box before cropping
	CropScale float32
}

// DefaultFaceMeshConfig returns settings for the 192x192 face landmark model
func DefaultFaceMeshConfig(modelPath string, refined bool) FaceMeshConfig {
	n := MeshLandmarks
	if refined {
		n = RefinedMeshLandmarks
	}
	return FaceMeshConfig{
		ModelPath:      modelPath,
		InputName:      "input_1",
		LandmarkOutput: "conv2d_21",
		ScoreOutput:    "conv2d_31",
		InputSize:      192,
		NumLandmarks:   n,
		CropScale:      1.5,
	}
}

// FaceMesh predicts dense face landmarks inside a face region
type FaceMesh struct {
	session      *inference.Session
	inputSize    int
	numLandmarks int
	cropScale    float32
}

// NewFaceMesh creates a new face mesh landmark model
func NewFaceMesh(cfg FaceMeshConfig) (*FaceMesh, error) {
	session, err := inference.NewSession(cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.LandmarkOutput, cfg.ScoreOutput},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create face mesh session: %w", err)
	}

	return &FaceMesh{
		session:      session,
		inputSize:    cfg.InputSize,
		numLandmarks: cfg.NumLandmarks,
		cropScale:    cfg.CropScale,
	}, nil
}

// Landmarks predicts mesh points for one face and returns them in img
// pixels together with the face presence score.
func (m *FaceMesh) Landmarks(img image.Image, face Face) ([]MeshPoint, float32, error) {
	toCrop := regionFor(face, m.cropScale).toCrop(m.inputSize)
	crop, err := warp(img, toCrop, m.inputSize)
	if err != nil {
		return nil, 0, err
	}
	input := toCHW(crop, 0, 255)

	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(m.inputSize), int64(m.inputSize)}, input)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	landmarkTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, int64(m.numLandmarks * 3)})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer landmarkTensor.Destroy()

	scoreTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 1})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer scoreTensor.Destroy()

	if err := m.session.Run([]ort.Value{inputTensor}, []ort.Value{landmarkTensor, scoreTensor}); err != nil {
		return nil, 0, fmt.Errorf("face mesh inference failed: %w", err)
	}

	points := decodeMesh(landmarkTensor.GetData(), m.numLandmarks, toCrop)
	score := sigmoid(scoreTensor.GetData()[0])

	return points, score, nil
}

// decodeMesh maps model-space points (x, y, z triplets in crop
// pixels) back into image pixels through the inverse of toCrop.
func decodeMesh(output []float32, n int, toCrop similarity) []MeshPoint {
	if len(output) < n*3 {
		n = len(output) / 3
	}
	back := toCrop.invert()
	zScale := float32(back.scale())

	points := make([]MeshPoint, n)
	for i := 0; i < n; i++ {
		p := back.apply(Point{X: output[i*3], Y: output[i*3+1]})
		points[i] = MeshPoint{X: p.X, Y: p.Y, Z: output[i*3+2] * zScale}
	}
	return points
}

// Close releases model resources
func (m *FaceMesh) Close() error {
	return m.session.Destroy()
}
