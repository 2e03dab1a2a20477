package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tsawler/go-metal/checkpoints"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/facebridge/internal/inference"
)

var (
	probeORTLibrary string
	probeMetal      bool
)

var probeCmd = &cobra.Command{
	Use:   "probe <model.onnx>...",
	Short: "Check that models open in an inference session and print their signatures",
	Example: `  facebridge probe models/scrfd_500m.onnx models/face_landmark.onnx
  facebridge probe --metal models/face_landmark.onnx`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := inference.Initialize(inference.Options{LibraryPath: probeORTLibrary}); err != nil {
			return err
		}
		defer inference.Shutdown()

		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			if err := probeModel(out, path); err != nil {
				fmt.Fprintf(out, "FAIL %s: %v\n\n", path, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d models failed to load", failed, len(args))
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeORTLibrary, "ort-lib", "", "Path to the onnxruntime shared library")
	probeCmd.Flags().BoolVar(&probeMetal, "metal", false, "Also try importing each model with go-metal")
	rootCmd.AddCommand(probeCmd)
}

func probeModel(out io.Writer, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	info, err := inference.Check(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "OK %s\n", path)
	fmt.Fprintf(out, "  inputs (%d):\n", len(info.Inputs))
	for _, in := range info.Inputs {
		fmt.Fprintf(out, "    %s: shape=%v type=%v\n", in.Name, in.Dimensions, in.DataType)
	}
	fmt.Fprintf(out, "  outputs (%d):\n", len(info.Outputs))
	for _, o := range info.Outputs {
		fmt.Fprintf(out, "    %s: shape=%v type=%v\n", o.Name, o.Dimensions, o.DataType)
	}

	if md, err := ort.GetModelMetadata(path); err == nil {
		if producer, err := md.GetProducerName(); err == nil && producer != "" {
			fmt.Fprintf(out, "  producer: %s\n", producer)
		}
		if version, err := md.GetVersion(); err == nil {
			fmt.Fprintf(out, "  version: %d\n", version)
		}
		md.Destroy()
	}

	if probeMetal {
		// go-metal covers a narrow op set, so a failure here is informational
		checkpoint, err := checkpoints.NewONNXImporter().ImportFromONNX(path)
		if err != nil {
			fmt.Fprintf(out, "  metal: unsupported (%v)\n", err)
		} else {
			fmt.Fprintf(out, "  metal: %d layers, %d weight tensors\n",
				len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
		}
	}

	fmt.Fprintln(out)
	return nil
}
