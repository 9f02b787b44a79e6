package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
)

// ErrInvalidConfig is returned by Validate for any unusable setting.
var ErrInvalidConfig = errors.New("invalid configuration")

// CoordinateSpace selects which landmark representation is exported.
type CoordinateSpace string

const (
	// World is metric, camera independent 3D space.
	World CoordinateSpace = "world"
	// Camera is image-normalized x/y with relative depth.
	Camera CoordinateSpace = "camera"
)

func (c CoordinateSpace) Valid() bool {
	return c == World || c == Camera
}

// Layout controls where outputs land relative to the output directory.
type Layout string

const (
	// LayoutFlat writes every output directly into the output directory.
	LayoutFlat Layout = "flat"
	// LayoutMirror recreates the input's relative subdirectory.
	LayoutMirror Layout = "mirror"
)

const (
	VideoBackendOpenCV = "opencv"
	VideoBackendFFmpeg = "ffmpeg"

	DetectorDNN        = "dnn"
	DetectorSubprocess = "subprocess"
)

type VideoConfig struct {
	// Backend is either "opencv" (gocv VideoWriter) or "ffmpeg" (libx264 via
	// an ffmpeg child process).
	Backend string `json:"backend"`
	// Codec is the fourcc used by the opencv backend.
	Codec string `json:"codec"`

	// If empty, ffmpeg is looked up in $PATH.
	FFmpegPath string `json:"ffmpeg_path"`
	Preset     string `json:"preset"`
	CRF        int    `json:"crf"`
}

type DetectorConfig struct {
	Backend string `json:"backend"`

	// Model is the network file for the dnn backend.
	Model string `json:"model"`
	// Command is the worker argv for the subprocess backend.
	Command []string `json:"command"`

	MinDetectionConfidence float64 `json:"min_detection_confidence"`
	MinTrackingConfidence  float64 `json:"min_tracking_confidence"`
}

type Config struct {
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`

	Thickness  int `json:"thickness"`
	CircleSize int `json:"circle_size"`
	// Color is a B, G, R triple.
	Color [3]int `json:"color"`

	ExportCSV bool `json:"export_csv"`
	// SamplingRate is the target processing rate in frames per second. Nil
	// processes every frame.
	SamplingRate   *float64        `json:"sampling_rate"`
	CoordinateType CoordinateSpace `json:"coordinate_type"`
	MissingMarker  string          `json:"missing_marker"`

	Layout Layout `json:"layout"`
	Dedupe bool   `json:"dedupe"`

	LabelFrames bool `json:"label_frames"`
	Thumbnails  bool `json:"thumbnails"`
	Progress    bool `json:"progress"`

	// If set, prometheus metrics are written here after each batch.
	MetricsFile string `json:"metrics_file"`

	Video    VideoConfig    `json:"video"`
	Detector DetectorConfig `json:"detector"`
}

// Default returns the settings used when no configuration file is given.
func Default() *Config {
	return &Config{
		Thickness:      10,
		CircleSize:     6,
		Color:          [3]int{0, 255, 0},
		CoordinateType: World,
		Layout:         LayoutMirror,
		Dedupe:         true,
		Progress:       true,
		Video: VideoConfig{
			Backend: VideoBackendOpenCV,
			Codec:   "mp4v",
			Preset:  "superfast",
			CRF:     23,
		},
		Detector: DetectorConfig{
			Backend:                DetectorSubprocess,
			Command:                []string{"python3", "tools/pose_worker.py"},
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
		},
	}
}

// Load reads a JSON configuration file on top of Default.
func Load(path string) (*Config, error) {
	config := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p := json.NewDecoder(f)
	p.DisallowUnknownFields()
	if err := p.Decode(config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	log.Debugf("Loaded configuration: %v", spew.Sdump(config))
	return config, nil
}

// RGBA converts the configured BGR triple for gocv drawing calls.
func (c *Config) RGBA() color.RGBA {
	return color.RGBA{
		R: uint8(c.Color[2]),
		G: uint8(c.Color[1]),
		B: uint8(c.Color[0]),
		A: 255,
	}
}

// Validate checks every setting that would otherwise fail halfway through a
// video. It must pass before any output file is created.
func (c *Config) Validate() error {
	if c.ExportCSV && !c.CoordinateType.Valid() {
		return fmt.Errorf("%w: coordinate_type %q should be %q or %q", ErrInvalidConfig, c.CoordinateType, World, Camera)
	}
	// A numeric marker could not be told apart from a real coordinate.
	if _, err := strconv.ParseFloat(strings.TrimSpace(c.MissingMarker), 64); c.ExportCSV && err == nil {
		return fmt.Errorf("%w: missing_marker %q reads as a number", ErrInvalidConfig, c.MissingMarker)
	}
	if c.Thickness < 1 {
		return fmt.Errorf("%w: thickness must be positive, got %d", ErrInvalidConfig, c.Thickness)
	}
	if c.CircleSize < 0 {
		return fmt.Errorf("%w: circle_size must not be negative, got %d", ErrInvalidConfig, c.CircleSize)
	}
	for _, v := range c.Color {
		if v < 0 || v > 255 {
			return fmt.Errorf("%w: color component %d out of range", ErrInvalidConfig, v)
		}
	}
	switch c.Layout {
	case LayoutFlat, LayoutMirror:
	default:
		return fmt.Errorf("%w: unknown layout %q", ErrInvalidConfig, c.Layout)
	}
	switch c.Video.Backend {
	case VideoBackendOpenCV:
		if len(c.Video.Codec) != 4 {
			return fmt.Errorf("%w: codec %q is not a fourcc", ErrInvalidConfig, c.Video.Codec)
		}
	case VideoBackendFFmpeg:
	default:
		return fmt.Errorf("%w: unknown video backend %q", ErrInvalidConfig, c.Video.Backend)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is required", ErrInvalidConfig)
	}
	return nil
}

// ValidateDetector checks the detector section. It is separate from Validate
// because tests and library callers may inject their own detector.
func (c *Config) ValidateDetector() error {
	d := c.Detector
	switch d.Backend {
	case DetectorDNN:
		if d.Model == "" {
			return fmt.Errorf("%w: detector.model is required for the dnn backend", ErrInvalidConfig)
		}
	case DetectorSubprocess:
		if len(d.Command) == 0 {
			return fmt.Errorf("%w: detector.command is required for the subprocess backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown detector backend %q", ErrInvalidConfig, d.Backend)
	}
	if d.MinDetectionConfidence < 0 || d.MinDetectionConfidence > 1 {
		return fmt.Errorf("%w: min_detection_confidence out of [0, 1]", ErrInvalidConfig)
	}
	if d.MinTrackingConfidence < 0 || d.MinTrackingConfidence > 1 {
		return fmt.Errorf("%w: min_tracking_confidence out of [0, 1]", ErrInvalidConfig)
	}
	return nil
}
