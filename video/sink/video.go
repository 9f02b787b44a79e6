package sink

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Video provides a sink that wraps opencv's VideoWriter.
type Video struct {
	writer *gocv.VideoWriter
	size   image.Point
}

func NewVideo(path, codec string, fps float64, size image.Point) (*Video, error) {
	w, err := gocv.VideoWriterFile(path, codec, fps, size.X, size.Y, true)
	if err != nil {
		return nil, err
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("opencv could not open %s for writing with codec %s", path, codec)
	}
	return &Video{
		writer: w,
		size:   size,
	}, nil
}

func (v *Video) Close() error {
	return v.writer.Close()
}

func (v *Video) Put(input gocv.Mat) error {
	if input.Cols() != v.size.X || input.Rows() != v.size.Y {
		return fmt.Errorf("frame size %dx%d does not match video size %dx%d", input.Cols(), input.Rows(), v.size.X, v.size.Y)
	}
	return v.writer.Write(input)
}

// VideoProducer creates opencv video sinks with a fixed fourcc.
type VideoProducer struct {
	Codec string
}

func (p *VideoProducer) New(path string, fps float64, size image.Point) (Sink, error) {
	return NewVideo(path, p.Codec, fps, size)
}
