package ui

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Window shows the rendered surface in a desktop preview window
type Window struct {
	window *gocv.Window
	name   string
	width  int
	height int
	quit   bool
}

// NewWindow creates a new preview window
func NewWindow(name string, width, height int) *Window {
	window := gocv.NewWindow(name)
	// Force window to appear on macOS
	window.ResizeWindow(width, height)
	window.MoveWindow(100, 100)
	return &Window{
		window: window,
		name:   name,
		width:  width,
		height: height,
	}
}

// Show displays a rendered surface, following its size. It also pumps
// window events; pressing q or ESC marks the window as quit.
func (w *Window) Show(img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("failed to convert surface: %w", err)
	}
	defer mat.Close()

	if b := img.Bounds(); b.Dx() != w.width || b.Dy() != w.height {
		w.width, w.height = b.Dx(), b.Dy()
		w.window.ResizeWindow(w.width, w.height)
	}

	w.window.IMShow(mat)

	// WaitKey must be called to process window events on macOS
	if key := w.window.WaitKey(1); key == 'q' || key == 27 {
		w.quit = true
	}
	return nil
}

// Quit reports whether the user asked to close the preview
func (w *Window) Quit() bool {
	return w.quit
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}
