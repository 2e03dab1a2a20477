package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dudu/facebridge/internal/bridge"
	"github.com/dudu/facebridge/internal/camera"
	"github.com/dudu/facebridge/internal/config"
	"github.com/dudu/facebridge/internal/detector"
	"github.com/dudu/facebridge/internal/inference"
	"github.com/dudu/facebridge/internal/pipeline"
	"github.com/dudu/facebridge/internal/render"
	"github.com/dudu/facebridge/internal/ui"
	"github.com/dudu/facebridge/internal/viewport"
	"github.com/dudu/facebridge/internal/webcam"
)

// Host transports
const (
	hostStdout = "stdout"
	hostMQTT   = "mqtt"
	hostNone   = "none"
)

// Options holds the process-level settings shared by detect and mesh
type Options struct {
	Params string

	WindowWidth  int
	WindowHeight int
	FrontDevice  int
	BackDevice   int
	TargetFPS    int
	ReplayDir    string
	Preview      bool

	DetectorModel     string
	DetectorFullModel string
	MeshModel         string
	MeshRefinedModel  string
	ScoreLogits       bool
	NMSThreshold      float64
	ORTLibrary        string
	CoreML            bool
	Threads           int
	InferenceTimeout  time.Duration

	Host             string
	MQTTBroker       string
	MQTTTopic        string
	MQTTControlTopic string
	MQTTQoS          int
}

var opts Options

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run face detection and send bounding boxes and key points to the host",
	Example: `  facebridge detect --params 'modelSelection=1&minDetectionConfidence=0.6'
  facebridge detect --params 'isBackCamera=true&enableDrawing=true' --preview`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), config.ModeDetection, opts)
	},
}

var meshCmd = &cobra.Command{
	Use:   "mesh",
	Short: "Run face mesh landmarking and send dense landmarks to the host",
	Example: `  facebridge mesh --params 'maxNumFaces=2&refineLandmarks=true'
  facebridge mesh --replay ./frames --host none --preview --params 'enableDrawing=true'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), config.ModeMesh, opts)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{detectCmd, meshCmd} {
		f := cmd.Flags()
		f.StringVar(&opts.Params, "params", "", "Launch parameters as a query string")

		f.IntVar(&opts.WindowWidth, "window-width", 1280, "Host window width in pixels")
		f.IntVar(&opts.WindowHeight, "window-height", 720, "Host window height in pixels")
		f.IntVar(&opts.FrontDevice, "front-device", 0, "Camera device index for the front (user) camera")
		f.IntVar(&opts.BackDevice, "back-device", 1, "Camera device index for the back (environment) camera")
		f.IntVar(&opts.TargetFPS, "fps", 30, "Target frames per second")
		f.StringVar(&opts.ReplayDir, "replay", "", "Loop still images from this directory instead of a camera")
		f.BoolVar(&opts.Preview, "preview", false, "Show the rendered overlay in a desktop window")

		f.StringVar(&opts.DetectorModel, "detector-model", "models/scrfd_500m.onnx", "Short-range face detector model")
		f.StringVar(&opts.DetectorFullModel, "detector-full-model", "models/scrfd_10g.onnx", "Full-range face detector model")
		f.StringVar(&opts.MeshModel, "mesh-model", "models/face_landmark.onnx", "Face mesh model (468 landmarks)")
		f.StringVar(&opts.MeshRefinedModel, "mesh-refined-model", "models/face_landmark_with_attention.onnx", "Face mesh model with iris refinement (478 landmarks)")
		f.BoolVar(&opts.ScoreLogits, "score-logits", true, "Detector emits raw logits rather than probabilities")
		f.Float64Var(&opts.NMSThreshold, "nms", 0.4, "Detector NMS IoU threshold")
		f.StringVar(&opts.ORTLibrary, "ort-lib", "", "Path to the onnxruntime shared library")
		f.BoolVar(&opts.CoreML, "coreml", false, "Use the CoreML execution provider when available")
		f.IntVar(&opts.Threads, "threads", 0, "Inference threads (0 = runtime default)")
		f.DurationVar(&opts.InferenceTimeout, "inference-timeout", 2*time.Second, "Skip a frame whose inference takes longer (0 disables)")

		f.StringVar(&opts.Host, "host", hostStdout, "Host channel: stdout, mqtt or none")
		f.StringVar(&opts.MQTTBroker, "mqtt-broker", "localhost:1883", "MQTT broker address")
		f.StringVar(&opts.MQTTTopic, "mqtt-topic", "facebridge/results", "MQTT topic for per-frame results")
		f.StringVar(&opts.MQTTControlTopic, "mqtt-control-topic", "facebridge/control", "MQTT topic for host commands")
		f.IntVar(&opts.MQTTQoS, "mqtt-qos", 0, "MQTT QoS for results")

		rootCmd.AddCommand(cmd)
	}
}

func run(ctx context.Context, mode config.Mode, o Options) error {
	launch := config.Resolve(mode, config.ParseQuery(o.Params))
	log := slog.Default().With("session", uuid.NewString())

	log.Info("facebridge starting",
		"mode", launch.Mode,
		"model_selection", launch.ModelSelection,
		"max_faces", launch.MaxNumFaces,
		"mirrored", launch.Mirrored(),
		"drawing", launch.DrawOverlay)

	if err := inference.Initialize(inference.Options{
		LibraryPath: o.ORTLibrary,
		CoreML:      o.CoreML,
		Threads:     o.Threads,
	}); err != nil {
		return err
	}
	defer inference.Shutdown()

	log.Info("loading models")
	inferer, err := newInferer(launch, o)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	window := viewport.NewStaticWindow(o.WindowWidth, o.WindowHeight)
	vp := viewport.NewManager(window)
	vp.Configure(launch.Fullscreen)
	reqW, reqH := vp.RequestedCaptureSize()

	var source pipeline.Source
	if o.ReplayDir != "" {
		source = camera.NewReplay(o.ReplayDir, o.TargetFPS)
	} else {
		devices := camera.Devices{Front: o.FrontDevice, Back: o.BackDevice}
		source = webcam.New(webcam.Config{
			DeviceID:  devices.For(launch.Facing),
			TargetFPS: o.TargetFPS,
			Width:     reqW,
			Height:    reqH,
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out, err := newHost(o, log)
	if err != nil {
		inferer.Close()
		return err
	}
	defer out.close()

	var preview pipeline.Preview
	if o.Preview && !launch.DrawOverlay {
		log.Warn("preview stays empty unless enableDrawing=true")
	}
	if o.Preview {
		w, h := vp.Size()
		win := ui.NewWindow("FaceBridge", w, h)
		defer win.Close()
		preview = &quitOnKey{win: win, cancel: cancel}
	}

	p, err := pipeline.New(pipeline.Options{
		Launch:           launch,
		Source:           source,
		Inferer:          inferer,
		Bridge:           out.bridge,
		Viewport:         vp,
		Renderer:         render.New(render.StyleFor(launch), launch.Mirrored()),
		Preview:          preview,
		Logger:           log,
		InferenceTimeout: o.InferenceTimeout,
	})
	if err != nil {
		inferer.Close()
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
	}()

	if err := out.listen(o.MQTTControlTopic, bridge.ControlHandlers{
		OnResize: func(width, height int) {
			window.SetSize(width, height)
			p.OnResize()
		},
		OnStop: func() {
			if err := p.Stop(); err != nil {
				log.Warn("stop failed", "error", err)
			}
		},
	}); err != nil {
		return err
	}

	if err := p.Start(ctx); err != nil {
		return err
	}
	if cam, ok := source.(*webcam.Webcam); ok {
		log.Info("capture size", "width", cam.Width(), "height", cam.Height())
	}

	log.Info("running, press Ctrl+C to quit")
	err = p.Run(ctx)

	s := p.Stats()
	bs := out.bridge.Stats()
	sw, sh := p.Viewport().Size()
	log.Info("pipeline finished",
		"state", s.State,
		"surface", fmt.Sprintf("%dx%d", sw, sh),
		"processed", s.Processed,
		"skipped", s.Skipped,
		"timed_out", s.TimedOut,
		"fps", fmt.Sprintf("%.1f", s.FPS),
		"sent", bs.Sent,
		"failed", bs.Failed)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newInferer builds the detector or mesh tracker for the launch mode
func newInferer(launch config.Config, o Options) (pipeline.Inferer, error) {
	scrfdCfg := detector.SCRFDConfig{
		ModelPath:     o.DetectorModel,
		InputSize:     320,
		ConfThreshold: float32(launch.MinDetectionConfidence),
		NMSThreshold:  float32(o.NMSThreshold),
		ScoreLogits:   o.ScoreLogits,
	}
	if launch.Mode == config.ModeDetection && launch.ModelSelection == config.ModelFullRange {
		scrfdCfg.ModelPath = o.DetectorFullModel
		scrfdCfg.InputSize = 640
	}

	det, err := detector.NewSCRFD(scrfdCfg)
	if err != nil {
		return nil, err
	}

	if launch.Mode == config.ModeDetection {
		return detector.NewFaceDetection(det), nil
	}

	meshPath := o.MeshModel
	if launch.RefineLandmarks {
		meshPath = o.MeshRefinedModel
	}
	mesh, err := detector.NewFaceMesh(detector.DefaultFaceMeshConfig(meshPath, launch.RefineLandmarks))
	if err != nil {
		det.Close()
		return nil, err
	}

	return detector.NewMeshTracker(det, mesh, detector.MeshConfig{
		MaxFaces:              launch.MaxNumFaces,
		MinTrackingConfidence: float32(launch.MinTrackingConfidence),
	}), nil
}

// quitOnKey cancels the run when the preview window is dismissed
type quitOnKey struct {
	win    *ui.Window
	cancel context.CancelFunc
}

func (q *quitOnKey) Show(img image.Image) error {
	err := q.win.Show(img)
	if q.win.Quit() {
		q.cancel()
	}
	return err
}

var (
	_ pipeline.Source = (*webcam.Webcam)(nil)
	_ pipeline.Source = (*camera.Replay)(nil)
)
