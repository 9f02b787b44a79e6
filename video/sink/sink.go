package sink

import (
	"image"

	"gocv.io/x/gocv"
)

// Sink defines a destination for a stream of frames, such as a video file.
type Sink interface {
	// Put appends a frame. The caller keeps ownership of the Mat and the sink
	// must not hold references to it after returning.
	Put(input gocv.Mat) error

	// Close should be called to finalize the Sink. It is called exactly once,
	// on every exit path.
	Close() error
}

// Producer creates a video sink for one output file.
type Producer interface {
	New(path string, fps float64, size image.Point) (Sink, error)
}
