package source

import (
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/pillash/mp4util"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrNotOpened is returned when OpenCV cannot decode a file.
var ErrNotOpened = errors.New("video could not be opened")

// VideoCaptureOpener opens files through OpenCV's VideoCapture.
type VideoCaptureOpener struct{}

func (VideoCaptureOpener) Open(path string) (Source, error) {
	return NewVideoCapture(path)
}

type VideoCapture struct {
	Path string

	cap     *gocv.VideoCapture
	props   Properties
	scratch gocv.Mat
}

func NewVideoCapture(path string) (*VideoCapture, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotOpened, path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotOpened, path)
	}

	props := Properties{
		FrameCount: int(cap.Get(gocv.VideoCaptureFrameCount)),
		FPS:        cap.Get(gocv.VideoCaptureFPS),
		Size: image.Point{
			X: int(cap.Get(gocv.VideoCaptureFrameWidth)),
			Y: int(cap.Get(gocv.VideoCaptureFrameHeight)),
		},
	}

	if strings.EqualFold(filepath.Ext(path), ".mp4") {
		if secs, err := mp4util.Duration(path); err != nil {
			log.Debugf("Unable to read mp4 duration of %v: %v", path, err)
		} else {
			props.Duration = time.Duration(secs) * time.Second
		}
	}
	// Some containers do not carry a frame count; fall back to duration.
	if props.FrameCount <= 0 && props.Duration > 0 && props.FPS > 0 {
		props.FrameCount = int(math.Round(props.Duration.Seconds() * props.FPS))
		log.Debugf("Estimated %d frames for %v from container duration", props.FrameCount, path)
	}

	return &VideoCapture{
		Path:    path,
		cap:     cap,
		props:   props,
		scratch: gocv.NewMat(),
	}, nil
}

func (v *VideoCapture) Properties() Properties {
	return v.props
}

func (v *VideoCapture) Read(dst *gocv.Mat) bool {
	if ok := v.cap.Read(dst); !ok || dst.Empty() {
		return false
	}
	return true
}

func (v *VideoCapture) Skip() bool {
	return v.Read(&v.scratch)
}

func (v *VideoCapture) Close() error {
	v.scratch.Close()
	return v.cap.Close()
}
