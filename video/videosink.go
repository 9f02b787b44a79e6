package video

import (
	"fmt"

	"posecam/config"
	"posecam/video/sink"
)

// NewSinkProducer returns the video sink producer for the configured backend.
func NewSinkProducer(c config.VideoConfig) (sink.Producer, error) {
	switch c.Backend {
	case config.VideoBackendOpenCV:
		return &sink.VideoProducer{Codec: c.Codec}, nil
	case config.VideoBackendFFmpeg:
		return sink.NewFFmpegProducer(sink.FFmpegOptions{
			Path:   c.FFmpegPath,
			Preset: c.Preset,
			CRF:    c.CRF,
		})
	}
	return nil, fmt.Errorf("%w: unknown video backend %q", config.ErrInvalidConfig, c.Backend)
}
