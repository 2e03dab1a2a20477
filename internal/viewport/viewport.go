package viewport

import "sync"

// Fallback surface size used outside fullscreen until the capture
// device reports its intrinsic resolution.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Window reports the current dimensions of the host window
type Window interface {
	Size() (width, height int)
}

// StaticWindow is a Window whose size is set explicitly, e.g. from
// command line flags or host resize commands.
type StaticWindow struct {
	mu            sync.RWMutex
	width, height int
}

// NewStaticWindow creates a window of the given size
func NewStaticWindow(width, height int) *StaticWindow {
	return &StaticWindow{width: width, height: height}
}

// Size returns the current window size
func (w *StaticWindow) Size() (int, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.width, w.height
}

// SetSize updates the window size
func (w *StaticWindow) SetSize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
}

// Manager owns the render surface dimensions. It never touches
// detection coordinates, which are resolution independent.
type Manager struct {
	mu         sync.RWMutex
	window     Window
	fullscreen bool
	width      int
	height     int
}

// NewManager creates a manager sized to the non-fullscreen fallback
func NewManager(window Window) *Manager {
	return &Manager{
		window: window,
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// Configure sets the initial surface size: the window size in
// fullscreen, otherwise the fixed fallback.
func (m *Manager) Configure(fullscreen bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fullscreen = fullscreen
	if fullscreen {
		m.width, m.height = m.windowSize()
		return
	}
	m.width, m.height = DefaultWidth, DefaultHeight
}

// OnResize follows the window size in fullscreen and is a no-op otherwise
func (m *Manager) OnResize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.fullscreen {
		return
	}
	m.width, m.height = m.windowSize()
}

// SyncToFrame resizes the surface to a frame's intrinsic size outside
// fullscreen. It reports whether the size changed.
func (m *Manager) SyncToFrame(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fullscreen {
		return false
	}
	if m.width == width && m.height == height {
		return false
	}
	m.width, m.height = width, height
	return true
}

// Size returns the current surface size
func (m *Manager) Size() (width, height int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.width, m.height
}

// Fullscreen reports whether the surface follows the window
func (m *Manager) Fullscreen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fullscreen
}

// RequestedCaptureSize is the resolution asked of the camera: the
// window size in fullscreen, otherwise the fallback size.
func (m *Manager) RequestedCaptureSize() (width, height int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.fullscreen {
		return m.windowSize()
	}
	return DefaultWidth, DefaultHeight
}

// windowSize falls back to the default size when no usable window is known
func (m *Manager) windowSize() (int, int) {
	if m.window == nil {
		return DefaultWidth, DefaultHeight
	}
	w, h := m.window.Size()
	if w <= 0 || h <= 0 {
		return DefaultWidth, DefaultHeight
	}
	return w, h
}
