package cameo

import (
	"context"
	"fmt"

	"github.com/cjeanneret/cameo/internal/debug"
	"github.com/cjeanneret/cameo/internal/logic/capture"
)

// Window is the preview window driven by the run loop.
// ProcessEvents delivers keypresses to App.OnKeypress.
type Window interface {
	capture.Preview
	Create()
	IsCreated() bool
	Destroy()
	ProcessEvents()
}

// Controls is an optional hardware control surface polled once per frame.
type Controls interface {
	// Poll returns the key codes pressed since the last call.
	Poll() ([]int, error)
	// SetRecording reflects the recording state, e.g. on an LED.
	SetRecording(on bool) error
}

// Keys maps key codes to actions.
type Keys struct {
	Screenshot int
	Record     int
	Quit       int
}

// Outputs names the files the actions write to.
type Outputs struct {
	ScreenshotFile string
	ScreencastFile string
	Codec          string
}

// App ties the capture manager to the window and the key bindings.
type App struct {
	window   Window
	capture  *capture.Manager
	controls Controls
	keys     Keys
	outputs  Outputs
}

// New creates the application. The window must be wired to call OnKeypress.
func New(window Window, mgr *capture.Manager, keys Keys, outputs Outputs) *App {
	return &App{
		window:  window,
		capture: mgr,
		keys:    keys,
		outputs: outputs,
	}
}

// SetControls attaches a hardware control surface.
func (a *App) SetControls(c Controls) {
	a.controls = c
}

// Run opens the window and processes frames until the window is destroyed
// or ctx is cancelled. Any recording is stopped on return.
func (a *App) Run(ctx context.Context) error {
	a.window.Create()
	defer func() {
		if serr := a.capture.StopWritingVideo(); serr != nil {
			debug.Error(serr)
		}
		a.syncRecordingState()
	}()

	debug.Section("Main loop")
	for a.window.IsCreated() {
		select {
		case <-ctx.Done():
			a.window.Destroy()
			return ctx.Err()
		default:
		}

		if err := a.capture.EnterFrame(); err != nil {
			return fmt.Errorf("enter frame: %w", err)
		}
		if err := a.capture.ExitFrame(); err != nil {
			debug.Error(err)
		}
		a.window.ProcessEvents()
		a.pollControls()
	}

	debug.Info("Window closed after %d frames (%.1f fps)", a.capture.FramesElapsed(), a.capture.FPSEstimate())
	return nil
}

// OnKeypress handles a key code with its toolkit bits already masked off.
//
//	screenshot key (space) -> write the next frame to the screenshot file
//	record key (tab)       -> start/stop recording to the screencast file
//	quit key (escape)      -> destroy the window, ending Run
func (a *App) OnKeypress(key int) {
	switch key {
	case a.keys.Screenshot:
		debug.Key(key, "screenshot")
		a.capture.WriteImage(a.outputs.ScreenshotFile)
	case a.keys.Record:
		if !a.capture.IsWritingVideo() {
			debug.Key(key, "start recording")
			if err := a.capture.StartWritingVideo(a.outputs.ScreencastFile, a.outputs.Codec); err != nil {
				debug.Error(err)
			}
		} else {
			debug.Key(key, "stop recording")
			if err := a.capture.StopWritingVideo(); err != nil {
				debug.Error(err)
			}
		}
	case a.keys.Quit:
		debug.Key(key, "quit")
		a.window.Destroy()
	default:
		debug.Verbose("Key %d ignored", key)
	}
	a.syncRecordingState()
}

func (a *App) pollControls() {
	if a.controls == nil {
		return
	}
	keys, err := a.controls.Poll()
	if err != nil {
		debug.Error(err)
	}
	for _, key := range keys {
		a.OnKeypress(key)
	}
	// A failed writer open stops recording without a keypress.
	a.syncRecordingState()
}

func (a *App) syncRecordingState() {
	if a.controls == nil {
		return
	}
	if err := a.controls.SetRecording(a.capture.IsWritingVideo()); err != nil {
		debug.Error(err)
	}
}
