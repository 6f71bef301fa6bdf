package camera

import (
	"fmt"

	"gocv.io/x/gocv"
)

// OpenVideoFile is the VideoSinkFactory backed by an OpenCV video writer.
func OpenVideoFile(name, codec string, fps float64, width, height int) (VideoSink, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("open video %s: invalid frame rate %g", name, fps)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("open video %s: invalid frame size %dx%d", name, width, height)
	}
	w, err := gocv.VideoWriterFile(name, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", name, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("open video %s: codec %s not available", name, codec)
	}
	return w, nil
}

// WriteImageFile is the ImageWriter backed by OpenCV's image codecs.
func WriteImageFile(name string, frame gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("write image %s: empty frame", name)
	}
	if ok := gocv.IMWrite(name, frame); !ok {
		return fmt.Errorf("write image %s: encoder failed", name)
	}
	return nil
}
