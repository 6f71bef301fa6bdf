package camera

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrDeviceNotOpen is returned by OpenDevice when the backend accepts the
// index but no camera is behind it. A closed Device reports no frames instead.
var ErrDeviceNotOpen = errors.New("capture device is not open")

// Source is the capture side used by the frame loop. A frame is first
// grabbed, then retrieved into a caller-owned Mat only if something needs it.
type Source interface {
	// Grab advances to the next frame. It returns false when no frame is available.
	Grab() bool
	// Retrieve decodes the last grabbed frame of the given channel into dst.
	Retrieve(dst *gocv.Mat, channel int) bool
	// Get reads a capture property such as gocv.VideoCaptureFPS.
	Get(prop gocv.VideoCaptureProperties) float64
}

// VideoSink receives the frames of one recording.
type VideoSink interface {
	Write(frame gocv.Mat) error
	Close() error
}

// VideoSinkFactory opens a recording once its frame rate and size are known.
type VideoSinkFactory func(name, codec string, fps float64, width, height int) (VideoSink, error)

// ImageWriter encodes a single frame to a file; the format follows the file extension.
type ImageWriter func(name string, frame gocv.Mat) error
