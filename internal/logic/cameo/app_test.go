package cameo

import (
	"context"
	"errors"
	"testing"

	"github.com/cjeanneret/cameo/internal/hw/camera"
	"github.com/cjeanneret/cameo/internal/logic/capture"
	"gocv.io/x/gocv"
)

// fakeWindow replays scripted keys, one per ProcessEvents call.
type fakeWindow struct {
	app       *App
	keys      []int
	created   bool
	creates   int
	destroys  int
	shown     int
	processed int
	maxEvents int // destroy after this many ProcessEvents calls, 0 = never
}

func (w *fakeWindow) Create()         { w.created = true; w.creates++ }
func (w *fakeWindow) IsCreated() bool { return w.created }
func (w *fakeWindow) Destroy()        { w.created = false; w.destroys++ }
func (w *fakeWindow) Show(gocv.Mat)   { w.shown++ }

func (w *fakeWindow) ProcessEvents() {
	w.processed++
	if len(w.keys) > 0 {
		key := w.keys[0]
		w.keys = w.keys[1:]
		w.app.OnKeypress(key)
	}
	if w.maxEvents > 0 && w.processed >= w.maxEvents {
		w.Destroy()
	}
}

// stillSource always has the same small frame.
type stillSource struct {
	image gocv.Mat
}

func (s *stillSource) Grab() bool { return true }

func (s *stillSource) Retrieve(dst *gocv.Mat, channel int) bool {
	s.image.CopyTo(dst)
	return true
}

func (s *stillSource) Get(prop gocv.VideoCaptureProperties) float64 {
	switch prop {
	case gocv.VideoCaptureFPS:
		return 30
	case gocv.VideoCaptureFrameWidth:
		return 4
	case gocv.VideoCaptureFrameHeight:
		return 3
	}
	return 0
}

type countingSink struct {
	frames int
	closed bool
}

func (s *countingSink) Write(gocv.Mat) error { s.frames++; return nil }
func (s *countingSink) Close() error         { s.closed = true; return nil }

// fakeControls returns scripted presses and records the LED state.
type fakeControls struct {
	presses [][]int
	led     []bool
	pollErr error
}

func (c *fakeControls) Poll() ([]int, error) {
	if c.pollErr != nil {
		return nil, c.pollErr
	}
	if len(c.presses) == 0 {
		return nil, nil
	}
	keys := c.presses[0]
	c.presses = c.presses[1:]
	return keys, nil
}

func (c *fakeControls) SetRecording(on bool) error {
	c.led = append(c.led, on)
	return nil
}

func (c *fakeControls) ledOn() bool {
	return len(c.led) > 0 && c.led[len(c.led)-1]
}

var testKeys = Keys{Screenshot: 32, Record: 9, Quit: 27}

var testOutputs = Outputs{
	ScreenshotFile: "screenshot.jpg",
	ScreencastFile: "screencast.avi",
	Codec:          "I420",
}

type harness struct {
	app    *App
	window *fakeWindow
	images []string
	sinks  []*countingSink
	opened []string
}

func newHarness(t *testing.T, keys ...int) *harness {
	t.Helper()
	img := gocv.NewMatWithSize(3, 4, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })

	h := &harness{window: &fakeWindow{keys: keys}}
	mgr := capture.NewManager(&stillSource{image: img}, h.window, true,
		capture.WithImageWriter(func(name string, _ gocv.Mat) error {
			h.images = append(h.images, name)
			return nil
		}),
		capture.WithVideoSinkFactory(func(name, codec string, fps float64, w, ht int) (camera.VideoSink, error) {
			s := &countingSink{}
			h.sinks = append(h.sinks, s)
			h.opened = append(h.opened, name)
			return s, nil
		}),
	)
	t.Cleanup(func() { mgr.Close() })

	h.app = New(h.window, mgr, testKeys, testOutputs)
	h.window.app = h.app
	return h
}

func TestRun_EscapeEndsLoop(t *testing.T) {
	h := newHarness(t, 0, 0, 27)
	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.window.creates != 1 {
		t.Errorf("creates = %d, want 1", h.window.creates)
	}
	if h.window.processed != 3 {
		t.Errorf("frames processed = %d, want 3", h.window.processed)
	}
	if h.window.shown != 3 {
		t.Errorf("frames shown = %d, want 3", h.window.shown)
	}
}

func TestRun_SpaceWritesScreenshot(t *testing.T) {
	h := newHarness(t, 32, 0, 27)
	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.images) != 1 || h.images[0] != "screenshot.jpg" {
		t.Errorf("images = %v, want [screenshot.jpg]", h.images)
	}
}

func TestRun_TabTogglesRecording(t *testing.T) {
	// Record frames 2 and 3, stop after frame 3, quit after frame 5.
	h := newHarness(t, 9, 0, 9, 0, 27)
	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.sinks) != 1 || h.opened[0] != "screencast.avi" {
		t.Fatalf("recordings = %v, want [screencast.avi]", h.opened)
	}
	if h.sinks[0].frames != 2 {
		t.Errorf("recorded frames = %d, want 2", h.sinks[0].frames)
	}
	if !h.sinks[0].closed {
		t.Error("recording should be closed by the second tab")
	}
}

func TestRun_RecordingStoppedOnExit(t *testing.T) {
	h := newHarness(t, 9, 0, 27)
	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.sinks) != 1 || !h.sinks[0].closed {
		t.Error("recording in progress should be closed when Run returns")
	}
	if h.app.capture.IsWritingVideo() {
		t.Error("IsWritingVideo = true after Run")
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.app.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if h.window.IsCreated() {
		t.Error("window should be destroyed on cancellation")
	}
	if h.window.processed != 0 {
		t.Errorf("frames processed = %d, want 0", h.window.processed)
	}
}

func TestOnKeypress_UnknownKeyIgnored(t *testing.T) {
	h := newHarness(t)
	h.window.Create()
	h.app.OnKeypress('x')
	if !h.window.IsCreated() {
		t.Error("unknown key should not close the window")
	}
	if h.app.capture.IsWritingImage() || h.app.capture.IsWritingVideo() {
		t.Error("unknown key should not request any output")
	}
}

func TestControls_ButtonsActLikeKeys(t *testing.T) {
	h := newHarness(t)
	h.window.maxEvents = 10
	ctl := &fakeControls{presses: [][]int{{32}, {9}, nil, {27}}}
	h.app.SetControls(ctl)

	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.images) != 1 {
		t.Errorf("images = %v, want one screenshot", h.images)
	}
	if len(h.sinks) != 1 {
		t.Fatalf("recordings = %d, want 1", len(h.sinks))
	}
	if h.window.processed != 4 {
		t.Errorf("frames processed = %d, want 4 (quit button)", h.window.processed)
	}
	if ctl.ledOn() {
		t.Error("LED should be off once Run returns")
	}
	sawOn := false
	for _, on := range ctl.led {
		sawOn = sawOn || on
	}
	if !sawOn {
		t.Error("LED should have been lit while recording")
	}
}

func TestControls_PollErrorDoesNotStopLoop(t *testing.T) {
	h := newHarness(t)
	h.window.maxEvents = 3
	h.app.SetControls(&fakeControls{pollErr: errors.New("bus error")})

	if err := h.app.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.window.processed != 3 {
		t.Errorf("frames processed = %d, want 3", h.window.processed)
	}
}
