package camera

import (
	"fmt"

	"github.com/cjeanneret/cameo/internal/debug"
	"gocv.io/x/gocv"
)

// Settings requests a capture format. Zero values keep the device default.
type Settings struct {
	Width  int
	Height int
	FPS    float64
}

// Device is a Source backed by an OpenCV video capture.
// Grab reads the frame into an internal buffer which Retrieve copies out.
type Device struct {
	id      int
	capture *gocv.VideoCapture
	grabbed gocv.Mat
	hasGrab bool
}

// OpenDevice opens camera id and applies the non-zero settings.
func OpenDevice(id int, s Settings) (*Device, error) {
	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", id, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open camera %d: %w", id, ErrDeviceNotOpen)
	}

	if s.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
	}
	if s.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
	}
	if s.FPS > 0 {
		capture.Set(gocv.VideoCaptureFPS, s.FPS)
	}

	d := &Device{id: id, capture: capture, grabbed: gocv.NewMat()}
	debug.Value("Camera", id)
	debug.Value("Frame size", fmt.Sprintf("%.0fx%.0f", d.Get(gocv.VideoCaptureFrameWidth), d.Get(gocv.VideoCaptureFrameHeight)))
	debug.Value("Device FPS", d.Get(gocv.VideoCaptureFPS))
	return d, nil
}

func (d *Device) isOpen() bool {
	return d.capture != nil && d.capture.IsOpened()
}

func (d *Device) Grab() bool {
	d.hasGrab = false
	if !d.isOpen() {
		return false
	}
	if ok := d.capture.Read(&d.grabbed); !ok || d.grabbed.Empty() {
		debug.Verbose("Camera %d returned no frame", d.id)
		return false
	}
	d.hasGrab = true
	return true
}

// Retrieve only supports channel 0, the decoded BGR image.
func (d *Device) Retrieve(dst *gocv.Mat, channel int) bool {
	if !d.hasGrab {
		return false
	}
	if channel != 0 {
		debug.Verbose("Camera %d: channel %d is not retrievable", d.id, channel)
		return false
	}
	d.grabbed.CopyTo(dst)
	return true
}

func (d *Device) Get(prop gocv.VideoCaptureProperties) float64 {
	if !d.isOpen() {
		return 0
	}
	return d.capture.Get(prop)
}

// Close releases the camera. It is safe to call more than once.
func (d *Device) Close() error {
	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	d.hasGrab = false
	if cerr := d.grabbed.Close(); err == nil {
		err = cerr
	}
	return err
}
