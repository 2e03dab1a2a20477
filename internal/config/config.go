package config

import (
	"fmt"
	"image/color"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Launch parameter names accepted from the host
const (
	ParamModelSelection         = "modelSelection"
	ParamMinDetectionConfidence = "minDetectionConfidence"
	ParamMinTrackingConfidence  = "minTrackingConfidence"
	ParamMaxNumFaces            = "maxNumFaces"
	ParamRefineLandmarks        = "refineLandmarks"
	ParamIsBackCamera           = "isBackCamera"
	ParamFlipHorizontal         = "flipHorizontal"
	ParamIsFullScreen           = "isFullScreen"
	ParamEnableDrawing          = "enableDrawing"
	ParamBoundingBoxColor       = "drawBoundingBoxColor"
	ParamLandmarksColor         = "drawLandmarksColor"
)

// Mode selects which vision model the pipeline drives
type Mode string

const (
	ModeDetection Mode = "detection"
	ModeMesh      Mode = "mesh"
)

// Facing is the requested camera facing mode
type Facing string

const (
	FacingFront Facing = "user"
	FacingBack  Facing = "environment"
)

// Detection model variants
const (
	ModelShortRange = 0
	ModelFullRange  = 1
)

// RGB is an overlay color
type RGB struct {
	R, G, B uint8
}

// String returns the color in launch parameter form ("r,g,b")
func (c RGB) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// Color returns an opaque color.NRGBA
func (c RGB) Color() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Config is the resolved, immutable launch configuration
type Config struct {
	Mode                   Mode
	ModelSelection         int
	MaxNumFaces            int
	MinDetectionConfidence float64
	MinTrackingConfidence  float64
	RefineLandmarks        bool
	Facing                 Facing
	FlipHorizontal         bool
	Fullscreen             bool
	DrawOverlay            bool
	BoundingBoxColor       RGB
	LandmarkColor          RGB
}

// Default returns the configuration used when no launch parameters are given
func Default(mode Mode) Config {
	if mode != ModeMesh {
		mode = ModeDetection
	}
	return Config{
		Mode:                   mode,
		ModelSelection:         ModelShortRange,
		MaxNumFaces:            1,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
		Facing:                 FacingFront,
		BoundingBoxColor:       RGB{R: 255},
		LandmarkColor:          RGB{G: 255},
	}
}

// Mirrored reports whether output is flipped horizontally.
// A back camera is never mirrored.
func (c Config) Mirrored() bool {
	return c.FlipHorizontal && c.Facing == FacingFront
}

// Resolve builds a Config from raw launch parameters. It never fails:
// absent or malformed values fall back to the field default.
func Resolve(mode Mode, params map[string]string) Config {
	cfg := Default(mode)

	cfg.ModelSelection = parseModelSelection(params[ParamModelSelection], cfg.ModelSelection)
	cfg.MaxNumFaces = parsePositiveInt(params[ParamMaxNumFaces], cfg.MaxNumFaces)
	cfg.MinDetectionConfidence = parseUnit(params[ParamMinDetectionConfidence], cfg.MinDetectionConfidence)
	cfg.MinTrackingConfidence = parseUnit(params[ParamMinTrackingConfidence], cfg.MinTrackingConfidence)
	cfg.RefineLandmarks = parseBool(params[ParamRefineLandmarks])
	if parseBool(params[ParamIsBackCamera]) {
		cfg.Facing = FacingBack
	}
	cfg.FlipHorizontal = parseBool(params[ParamFlipHorizontal])
	cfg.Fullscreen = parseBool(params[ParamIsFullScreen])
	cfg.DrawOverlay = parseBool(params[ParamEnableDrawing])
	cfg.BoundingBoxColor = parseRGB(params[ParamBoundingBoxColor], cfg.BoundingBoxColor)
	cfg.LandmarkColor = parseRGB(params[ParamLandmarksColor], cfg.LandmarkColor)

	return cfg
}

// ParseQuery turns a query string into launch parameters. The first value
// wins for repeated keys; undecodable pairs are dropped.
func ParseQuery(raw string) map[string]string {
	raw = strings.TrimPrefix(raw, "?")
	// ParseQuery keeps every pair it could decode alongside the error
	values, _ := url.ParseQuery(raw)

	params := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}
	return params
}

func parseBool(s string) bool {
	return s == "true"
}

func parseModelSelection(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	if v != ModelShortRange && v != ModelFullRange {
		return def
	}
	return v
}

func parsePositiveInt(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 {
		return def
	}
	return v
}

// parseUnit parses a threshold that must lie in [0,1]
func parseUnit(s string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 1 {
		return def
	}
	return v
}

func parseRGB(s string, def RGB) RGB {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return def
	}

	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return def
		}
		rgb[i] = uint8(v)
	}
	return RGB{R: rgb[0], G: rgb[1], B: rgb[2]}
}
