package config

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := Default()
	c.OutputDir = "/tmp/out"
	return c
}

func TestDefault_Validates(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())
	assert.Nil(t, c.SamplingRate)
	assert.Equal(t, World, c.CoordinateType)
}

func TestValidate_CoordinateType(t *testing.T) {
	c := validConfig()
	c.ExportCSV = true
	c.CoordinateType = "bogus"

	err := c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "bogus")

	// Without export the coordinate space is never consulted.
	c.ExportCSV = false
	assert.NoError(t, c.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"zero thickness":  func(c *Config) { c.Thickness = 0 },
		"negative circle": func(c *Config) { c.CircleSize = -1 },
		"color range":     func(c *Config) { c.Color = [3]int{0, 256, 0} },
		"layout":          func(c *Config) { c.Layout = "tree" },
		"video backend":   func(c *Config) { c.Video.Backend = "gstreamer" },
		"fourcc":          func(c *Config) { c.Video.Codec = "h264x" },
		"missing output":  func(c *Config) { c.OutputDir = "" },
		"zero marker":     func(c *Config) { c.ExportCSV = true; c.MissingMarker = "0" },
		"float marker":    func(c *Config) { c.ExportCSV = true; c.MissingMarker = "0.0" },
		"negative marker": func(c *Config) { c.ExportCSV = true; c.MissingMarker = " -1" },
		"nan marker":      func(c *Config) { c.ExportCSV = true; c.MissingMarker = "NaN" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidate_MissingMarker(t *testing.T) {
	for _, marker := range []string{"", "NA", "-", "missing"} {
		c := validConfig()
		c.ExportCSV = true
		c.MissingMarker = marker
		assert.NoError(t, c.Validate(), "marker %q", marker)
	}

	// The marker is only written with export on.
	c := validConfig()
	c.MissingMarker = "0"
	assert.NoError(t, c.Validate())
}

func TestValidateDetector(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.ValidateDetector(), "default runs the bundled worker")
	assert.Equal(t, []string{"python3", "tools/pose_worker.py"}, c.Detector.Command)

	c.Detector.Command = nil
	assert.ErrorIs(t, c.ValidateDetector(), ErrInvalidConfig, "subprocess without command")
	c.Detector.Command = []string{"python3", "pose_worker.py"}
	assert.NoError(t, c.ValidateDetector())

	c.Detector.Backend = DetectorDNN
	assert.ErrorIs(t, c.ValidateDetector(), ErrInvalidConfig, "dnn without model")
	c.Detector.Model = "pose_landmark_full.onnx"
	assert.NoError(t, c.ValidateDetector())

	c.Detector.MinDetectionConfidence = 1.5
	assert.ErrorIs(t, c.ValidateDetector(), ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posecam.json")
	js := `{
		"output_dir": "preprocessed_video",
		"thickness": 8,
		"circle_size": 5,
		"color": [255, 0, 0],
		"export_csv": true,
		"sampling_rate": 1,
		"coordinate_type": "camera",
		"detector": {"backend": "dnn", "model": "pose.onnx"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(js), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Thickness)
	assert.Equal(t, 5, c.CircleSize)
	require.NotNil(t, c.SamplingRate)
	assert.Equal(t, 1.0, *c.SamplingRate)
	assert.Equal(t, Camera, c.CoordinateType)
	assert.Equal(t, "dnn", c.Detector.Backend)
	// Unset nested fields keep their defaults.
	assert.Equal(t, 0.5, c.Detector.MinDetectionConfidence)
	assert.Equal(t, "mp4v", c.Video.Codec)
	assert.Equal(t, color.RGBA{R: 0, G: 0, B: 255, A: 255}, c.RGBA())
}

func TestLoad_NullSamplingRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posecam.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sampling_rate": null}`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, c.SamplingRate)
}

func TestLoad_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posecam.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"thicknes": 3}`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
