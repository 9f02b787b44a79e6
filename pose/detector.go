package pose

import (
	"fmt"

	"gocv.io/x/gocv"

	"posecam/config"
)

// Detector opens detection sessions. A session is scoped to one video since
// the underlying model tracks the subject from frame to frame.
type Detector interface {
	Open() (Session, error)
}

// Session runs pose detection on sequential frames of a single video.
type Session interface {
	// Detect inspects a BGR frame. The frame must not be modified and is not
	// retained after Detect returns. A frame without a person is not an error;
	// it yields an empty Result.
	Detect(frame gocv.Mat) (Result, error)

	Close() error
}

// NewDetector builds the detector selected by the configuration.
func NewDetector(c config.DetectorConfig) (Detector, error) {
	switch c.Backend {
	case config.DetectorDNN:
		d, err := NewDNNDetector(c.Model, c.MinDetectionConfidence)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.DetectorSubprocess:
		return &SubprocessDetector{
			Command:                c.Command,
			MinDetectionConfidence: c.MinDetectionConfidence,
			MinTrackingConfidence:  c.MinTrackingConfidence,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown detector backend %q", config.ErrInvalidConfig, c.Backend)
}
