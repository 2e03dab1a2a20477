package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/facebridge/internal/inference"
)

// SCRFDConfig configures the SCRFD face detector
type SCRFDConfig struct {
	ModelPath     string
	InputSize     int
	ConfThreshold float32
	NMSThreshold  float32
	// ScoreLogits applies a sigmoid to raw score outputs. Exports that
	// already emit probabilities should leave it false.
	ScoreLogits bool
}

// SCRFD implements the SCRFD face detector
type SCRFD struct {
	session        *inference.Session
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	scoreLogits    bool
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector
func NewSCRFD(cfg SCRFDConfig) (*SCRFD, error) {
	// SCRFD has 1 input and 9 outputs (3 levels × 3 outputs each: score, bbox, kps)
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	session, err := inference.NewSession(cfg.ModelPath, inputNames, outputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:        session,
		inputSize:      cfg.InputSize,
		confThreshold:  cfg.ConfThreshold,
		nmsThreshold:   cfg.NMSThreshold,
		scoreLogits:    cfg.ScoreLogits,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2, // anchors per position
	}, nil
}

// Detect finds faces in an image. Coordinates are in img pixels.
func (s *SCRFD) Detect(img image.Image) ([]Face, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	padded, scale := letterbox(img, s.inputSize)
	input := toCHW(padded, 127.5, 128.0)

	inputTensor, err := inference.CreateTensor([]int64{1, 3, int64(s.inputSize), int64(s.inputSize)}, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 9)
	outputTensors := make([]*ort.Tensor[float32], 0, 9)
	defer func() {
		for _, t := range outputTensors {
			t.Destroy()
		}
	}()

	widths := []int64{1, 4, 10} // score, bbox, kps
	for kind, width := range widths {
		for level, stride := range s.featureStrides {
			fm := s.inputSize / stride
			numAnchors := int64(fm * fm * s.numAnchors)

			t, err := inference.CreateEmptyTensor[float32]([]int64{numAnchors, width})
			if err != nil {
				return nil, fmt.Errorf("failed to create output tensor: %w", err)
			}
			outputs[kind*3+level] = t
			outputTensors = append(outputTensors, t)
		}
	}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := make([][]float32, len(outputTensors))
	for i, t := range outputTensors {
		data[i] = t.GetData()
	}

	faces := s.decode(data, scale, b.Dx(), b.Dy())
	for i := range faces {
		faces[i] = translate(faces[i], float32(b.Min.X), float32(b.Min.Y))
	}

	return nms(faces, s.nmsThreshold), nil
}

// decode turns raw model outputs into faces. outputs holds the score,
// bbox and keypoint tensors for strides 8, 16 and 32 in that order.
func (s *SCRFD) decode(outputs [][]float32, scale float32, origWidth, origHeight int) []Face {
	var faces []Face

	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		st := float32(stride)

		scoreData := outputs[level]
		bboxData := outputs[level+3]
		kpsData := outputs[level+6]

		anchorIdx := 0
		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				for a := 0; a < s.numAnchors; a++ {
					score := scoreData[anchorIdx]
					if s.scoreLogits {
						score = sigmoid(score)
					}

					if score > s.confThreshold {
						cx := (float32(x) + 0.5) * st
						cy := (float32(y) + 0.5) * st

						// bbox is encoded as distances to the four edges
						bi := anchorIdx * 4
						box := BoundingBox{
							X1: clamp((cx-bboxData[bi]*st)/scale, 0, float32(origWidth)),
							Y1: clamp((cy-bboxData[bi+1]*st)/scale, 0, float32(origHeight)),
							X2: clamp((cx+bboxData[bi+2]*st)/scale, 0, float32(origWidth)),
							Y2: clamp((cy+bboxData[bi+3]*st)/scale, 0, float32(origHeight)),
						}

						ki := anchorIdx * 10
						kp := func(n int) Point {
							return Point{
								X: (cx + kpsData[ki+2*n]*st) / scale,
								Y: (cy + kpsData[ki+2*n+1]*st) / scale,
							}
						}

						faces = append(faces, Face{
							BoundingBox: box,
							Landmarks: Landmarks{
								LeftEye:    kp(0),
								RightEye:   kp(1),
								Nose:       kp(2),
								LeftMouth:  kp(3),
								RightMouth: kp(4),
							},
							Score: score,
						})
					}
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func translate(f Face, dx, dy float32) Face {
	if dx == 0 && dy == 0 {
		return f
	}
	f.BoundingBox.X1 += dx
	f.BoundingBox.X2 += dx
	f.BoundingBox.Y1 += dy
	f.BoundingBox.Y2 += dy
	for _, p := range []*Point{
		&f.Landmarks.LeftEye, &f.Landmarks.RightEye, &f.Landmarks.Nose,
		&f.Landmarks.LeftMouth, &f.Landmarks.RightMouth,
	} {
		p.X += dx
		p.Y += dy
	}
	return f
}
