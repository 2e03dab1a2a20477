package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrNotInitialized is returned when a session is requested before Initialize
var ErrNotInitialized = errors.New("ONNX Runtime not initialized, call Initialize() first")

var (
	initialized bool
	initMu      sync.Mutex
)

// Options controls how the ONNX Runtime environment and sessions are created
type Options struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default search path.
	LibraryPath string
	// CoreML enables the CoreML execution provider where available
	CoreML bool
	// Threads caps intra-op threads; 0 leaves the runtime default
	Threads int
}

var sessionOpts Options

// Initialize sets up ONNX Runtime environment (call once at startup)
func Initialize(opts Options) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	sessionOpts = opts
	initialized = true
	return nil
}

// Shutdown cleans up ONNX Runtime environment
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}

	initialized = false
	return nil
}

// Session wraps an ONNX Runtime inference session
type Session struct {
	session     *ort.DynamicAdvancedSession
	modelPath   string
	inputNames  []string
	outputNames []string
}

// NewSession creates a new inference session from an ONNX model
func NewSession(modelPath string, inputNames, outputNames []string) (*Session, error) {
	initMu.Lock()
	ready, opts := initialized, sessionOpts
	initMu.Unlock()

	if !ready {
		return nil, ErrNotInitialized
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	provider := "cpu"
	if opts.CoreML {
		// Flag 0 = default settings, use Neural Engine + GPU
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			slog.Warn("coreml provider unavailable, using cpu", "model", modelPath, "error", err)
		} else {
			provider = "coreml"
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
	}

	slog.Info("model loaded", "model", modelPath, "provider", provider)

	return &Session{
		session:     session,
		modelPath:   modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// Run executes inference with the given inputs
func (s *Session) Run(inputs []ort.Value, outputs []ort.Value) error {
	return s.session.Run(inputs, outputs)
}

// ModelPath returns the model file backing the session
func (s *Session) ModelPath() string {
	return s.modelPath
}

// Destroy releases session resources
func (s *Session) Destroy() error {
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}

// CreateTensor creates a tensor with the given shape and data
func CreateTensor[T ort.TensorData](shape []int64, data []T) (*ort.Tensor[T], error) {
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// CreateEmptyTensor creates a zeroed tensor for output
func CreateEmptyTensor[T ort.TensorData](shape []int64) (*ort.Tensor[T], error) {
	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}
	data := make([]T, size)
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// ModelInfo describes the inputs and outputs of a model file
type ModelInfo struct {
	Inputs  []ort.InputOutputInfo
	Outputs []ort.InputOutputInfo
}

// Describe reads a model's input/output signature without creating a session
func Describe(modelPath string) (*ModelInfo, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info for %s: %w", modelPath, err)
	}
	return &ModelInfo{Inputs: inputs, Outputs: outputs}, nil
}

// Check reads the model signature and opens a session on it using every
// declared input and output, then releases the session. A model that
// only parses but cannot be instantiated fails here.
func Check(modelPath string) (*ModelInfo, error) {
	initMu.Lock()
	ready := initialized
	initMu.Unlock()
	if !ready {
		return nil, ErrNotInitialized
	}

	info, err := Describe(modelPath)
	if err != nil {
		return nil, err
	}

	session, err := NewSession(modelPath, names(info.Inputs), names(info.Outputs))
	if err != nil {
		return nil, err
	}
	if err := session.Destroy(); err != nil {
		return nil, fmt.Errorf("failed to release session for %s: %w", session.ModelPath(), err)
	}
	return info, nil
}

func names(infos []ort.InputOutputInfo) []string {
	list := make([]string, len(infos))
	for i, info := range infos {
		list[i] = info.Name
	}
	return list
}
