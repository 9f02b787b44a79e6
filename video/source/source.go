package source

import (
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Image is a decoded frame together with its position in the source video.
type Image struct {
	Mat   gocv.Mat
	Index int
}

func NewImage() Image {
	return Image{
		Mat: gocv.NewMat(),
	}
}

func (i *Image) Close() {
	i.Mat.Close()
}

// Properties are read once when a source is opened.
type Properties struct {
	// FrameCount may be an estimate; containers are not always accurate.
	FrameCount int
	FPS        float64
	Size       image.Point

	// Duration is the container duration when it can be determined, else zero.
	Duration time.Duration
}

// Source defines a sequential stream of frames from a video file.
type Source interface {
	Properties() Properties

	// Read decodes the next frame into dst. It returns false at end of stream.
	Read(dst *gocv.Mat) bool

	// Skip advances past the next frame without handing it to the caller. It
	// returns false at end of stream.
	Skip() bool

	// Close frees up all resources.
	Close() error
}

// Opener opens video files as sources.
type Opener interface {
	Open(path string) (Source, error)
}
