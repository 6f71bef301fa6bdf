package display

import (
	"github.com/cjeanneret/cameo/internal/debug"
	"gocv.io/x/gocv"
)

// NoKey is what the event loop reports when no key was pressed.
const NoKey = -1

// keyWaitMs is how long ProcessEvents waits for a keypress.
const keyWaitMs = 1

// Window is the preview surface: an autosized OpenCV window that forwards
// keypresses to a callback.
type Window struct {
	name       string
	onKeypress func(key int)
	window     *gocv.Window
}

// NewWindow prepares a window; nothing is shown until Create.
// onKeypress may be nil.
func NewWindow(name string, onKeypress func(key int)) *Window {
	return &Window{name: name, onKeypress: onKeypress}
}

// Name returns the window title.
func (w *Window) Name() string {
	return w.name
}

// Create opens the window sized to the frames shown in it.
func (w *Window) Create() {
	if w.window != nil {
		return
	}
	w.window = gocv.NewWindow(w.name)
	w.window.SetWindowProperty(gocv.WindowPropertyAutosize, gocv.WindowAutosize)
	debug.Info("Window %q created", w.name)
}

func (w *Window) IsCreated() bool {
	return w.window != nil
}

// Show draws frame. It does nothing before Create or after Destroy.
func (w *Window) Show(frame gocv.Mat) {
	if w.window == nil {
		return
	}
	w.window.IMShow(frame)
}

// Destroy closes the window; IsCreated reports false afterwards.
func (w *Window) Destroy() {
	if w.window == nil {
		return
	}
	if err := w.window.Close(); err != nil {
		debug.Error(err)
	}
	w.window = nil
	debug.Info("Window %q destroyed", w.name)
}

// ProcessEvents pumps the GUI event loop for a millisecond and hands any
// keypress to the callback.
func (w *Window) ProcessEvents() {
	if w.window == nil {
		return
	}
	w.dispatch(w.window.WaitKey(keyWaitMs))
}

func (w *Window) dispatch(raw int) {
	key, ok := MaskKey(raw)
	if !ok || w.onKeypress == nil {
		return
	}
	w.onKeypress(key)
}

// MaskKey discards the toolkit-specific bits some backends (GTK) set above
// the ASCII code. It reports false when raw is NoKey.
func MaskKey(raw int) (int, bool) {
	if raw == NoKey {
		return NoKey, false
	}
	return raw & 0xFF, true
}
