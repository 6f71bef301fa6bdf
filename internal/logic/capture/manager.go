package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/cameo/internal/debug"
	"github.com/cjeanneret/cameo/internal/hw/camera"
	"gocv.io/x/gocv"
)

const (
	// DefaultCodec is the FOURCC used when StartWritingVideo gets none (raw I420 in AVI).
	DefaultCodec = "I420"
	// DefaultWarmupFrames is how many frames are timed before trusting the fps estimate.
	DefaultWarmupFrames = 20

	flipHorizontal = 1
)

// ErrFrameNotExited is returned by EnterFrame when the previous frame was never exited.
var ErrFrameNotExited = errors.New("previous EnterFrame had no matching ExitFrame")

// Preview displays frames, typically a display.Window.
type Preview interface {
	Show(frame gocv.Mat)
}

// Manager runs the life cycle of one frame at a time: EnterFrame grabs it,
// ExitFrame shows it, writes any requested screenshot, appends it to the
// current recording and releases it. It also estimates the frame rate,
// which is used to open a recording when the device does not report one.
//
// A Manager is not safe for concurrent use.
type Manager struct {
	preview Preview
	mirror  bool

	source       camera.Source
	channel      int
	enteredFrame bool
	frame        gocv.Mat
	hasFrame     bool
	mirrored     gocv.Mat

	imageFileName string
	videoFileName string
	videoCodec    string
	video         camera.VideoSink

	writeImage   camera.ImageWriter
	openVideo    camera.VideoSinkFactory
	warmupFrames int
	now          func() time.Time

	startTime     time.Time
	framesElapsed int
	fpsEstimate   float64
}

// Option customizes a Manager.
type Option func(*Manager)

// WithImageWriter replaces the screenshot encoder.
func WithImageWriter(w camera.ImageWriter) Option {
	return func(m *Manager) { m.writeImage = w }
}

// WithVideoSinkFactory replaces the recording encoder.
func WithVideoSinkFactory(f camera.VideoSinkFactory) Option {
	return func(m *Manager) { m.openVideo = f }
}

// WithWarmupFrames sets how many frames to time before opening a recording
// on a device that reports no frame rate. Values <= 0 are ignored.
func WithWarmupFrames(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.warmupFrames = n
		}
	}
}

// WithClock replaces time.Now for the fps estimate.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager reading from src. preview may be nil; when
// mirror is set the preview is flipped horizontally, files never are.
func NewManager(src camera.Source, preview Preview, mirror bool, opts ...Option) *Manager {
	m := &Manager{
		preview:      preview,
		mirror:       mirror,
		source:       src,
		frame:        gocv.NewMat(),
		mirrored:     gocv.NewMat(),
		writeImage:   camera.WriteImageFile,
		openVideo:    camera.OpenVideoFile,
		warmupFrames: DefaultWarmupFrames,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Channel returns the channel frames are retrieved from.
func (m *Manager) Channel() int {
	return m.channel
}

// SetChannel switches channel. A frame already retrieved from the old
// channel is dropped so the next Frame call retrieves it again.
func (m *Manager) SetChannel(channel int) {
	if m.channel != channel {
		m.channel = channel
		m.hasFrame = false
	}
}

// Frame returns the current frame, retrieving it on first use after EnterFrame.
// It returns nil outside EnterFrame/ExitFrame or when the frame cannot be retrieved.
// The Mat is owned by the Manager and only valid until ExitFrame.
func (m *Manager) Frame() *gocv.Mat {
	if m.enteredFrame && !m.hasFrame {
		m.hasFrame = m.source.Retrieve(&m.frame, m.channel)
	}
	if !m.hasFrame {
		return nil
	}
	return &m.frame
}

// IsWritingImage reports whether a screenshot is requested for the next frame.
func (m *Manager) IsWritingImage() bool {
	return m.imageFileName != ""
}

// IsWritingVideo reports whether a recording is in progress, even before its file is opened.
func (m *Manager) IsWritingVideo() bool {
	return m.videoFileName != ""
}

// FPSEstimate returns the measured frame rate, 0 until two frames were exited.
func (m *Manager) FPSEstimate() float64 {
	return m.fpsEstimate
}

// FramesElapsed returns how many frames were exited with a valid image.
func (m *Manager) FramesElapsed() int {
	return m.framesElapsed
}

// EnterFrame grabs the next frame, if any.
func (m *Manager) EnterFrame() error {
	if m.enteredFrame {
		return ErrFrameNotExited
	}
	if m.source != nil {
		m.enteredFrame = m.source.Grab()
	}
	return nil
}

// ExitFrame draws to the preview, writes to the requested files and
// releases the frame. Write failures are returned after the frame is
// released, so the loop can carry on.
func (m *Manager) ExitFrame() error {
	frame := m.Frame()
	if frame == nil {
		m.enteredFrame = false
		return nil
	}

	m.updateFPSEstimate()
	m.show()

	var errs []error
	if m.IsWritingImage() {
		name := m.imageFileName
		m.imageFileName = ""
		if err := m.writeImage(name, m.frame); err != nil {
			errs = append(errs, err)
		} else {
			debug.Written("screenshot", name)
		}
	}
	if err := m.writeVideoFrame(); err != nil {
		errs = append(errs, err)
	}

	m.hasFrame = false
	m.enteredFrame = false
	return errors.Join(errs...)
}

func (m *Manager) updateFPSEstimate() {
	now := m.now()
	if m.framesElapsed == 0 {
		m.startTime = now
	} else if elapsed := now.Sub(m.startTime).Seconds(); elapsed > 0 {
		m.fpsEstimate = float64(m.framesElapsed) / elapsed
	}
	m.framesElapsed++
	if debug.IsEnabled(debug.LevelVerbose) {
		debug.Verbose("Frame %d, fps estimate %.2f", m.framesElapsed, m.fpsEstimate)
	}
}

func (m *Manager) show() {
	if m.preview == nil {
		return
	}
	if !m.mirror {
		m.preview.Show(m.frame)
		return
	}
	gocv.Flip(m.frame, &m.mirrored, flipHorizontal)
	m.preview.Show(m.mirrored)
}

// WriteImage requests that the next exited frame be written to name.
func (m *Manager) WriteImage(name string) {
	m.imageFileName = name
}

// StartWritingVideo starts appending exited frames to name, encoded with
// codec (DefaultCodec when empty). A recording already in progress is closed first.
func (m *Manager) StartWritingVideo(name, codec string) error {
	var err error
	if m.IsWritingVideo() {
		err = m.StopWritingVideo()
	}
	if codec == "" {
		codec = DefaultCodec
	}
	m.videoFileName = name
	m.videoCodec = codec
	debug.Recording(true, name)
	return err
}

// StopWritingVideo stops the recording and closes its file.
func (m *Manager) StopWritingVideo() error {
	if !m.IsWritingVideo() {
		return nil
	}
	name := m.videoFileName
	m.videoFileName = ""
	m.videoCodec = ""
	debug.Recording(false, name)

	if m.video == nil {
		return nil
	}
	err := m.video.Close()
	m.video = nil
	if err != nil {
		return fmt.Errorf("close video %s: %w", name, err)
	}
	debug.Written("video", name)
	return nil
}

// writeVideoFrame opens the recording on first use. Its frame rate comes from
// the device or, when the device reports none, from the estimate once
// warmupFrames frames have been timed.
func (m *Manager) writeVideoFrame() error {
	if !m.IsWritingVideo() {
		return nil
	}

	if m.video == nil {
		fps := m.source.Get(gocv.VideoCaptureFPS)
		if fps <= 0 {
			if m.framesElapsed < m.warmupFrames || m.fpsEstimate <= 0 {
				return nil
			}
			fps = m.fpsEstimate
		}
		width := int(m.source.Get(gocv.VideoCaptureFrameWidth))
		height := int(m.source.Get(gocv.VideoCaptureFrameHeight))
		if width <= 0 || height <= 0 {
			width, height = m.frame.Cols(), m.frame.Rows()
		}

		sink, err := m.openVideo(m.videoFileName, m.videoCodec, fps, width, height)
		if err != nil {
			_ = m.StopWritingVideo()
			return fmt.Errorf("start recording: %w", err)
		}
		m.video = sink
		debug.Info("Recording %s at %.2f fps, %dx%d, codec %s", m.videoFileName, fps, width, height, m.videoCodec)
	}

	if err := m.video.Write(m.frame); err != nil {
		return fmt.Errorf("write video frame: %w", err)
	}
	return nil
}

// Close stops any recording and frees the frame buffers.
func (m *Manager) Close() error {
	err := m.StopWritingVideo()
	m.hasFrame = false
	m.enteredFrame = false
	if cerr := m.frame.Close(); err == nil {
		err = cerr
	}
	if cerr := m.mirrored.Close(); err == nil {
		err = cerr
	}
	return err
}
