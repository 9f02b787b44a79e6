package sink

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

type FFmpegOptions struct {
	// Path of the ffmpeg binary.
	Path string

	// Preset and CRF tune libx264; the preset can be adjusted if the system is
	// too slow to handle encoding.
	Preset string
	CRF    int
}

// FFmpeg pipes raw frames into an ffmpeg child process that encodes h264.
// OpenCV's own writer produces large files with its default codec options.
type FFmpeg struct {
	cmd    *exec.Cmd
	pipe   io.WriteCloser
	stderr bytes.Buffer
	size   image.Point
}

func NewFFmpeg(path string, fps float64, size image.Point, opts FFmpegOptions) (*FFmpeg, error) {
	f := &FFmpeg{size: size}
	f.cmd = exec.Command(
		opts.Path,
		"-hide_banner",
		"-loglevel", "error",
		// Overwrite, matching the opencv writer.
		"-y",
		// Configure ffmpeg to read from the opencv pipe.
		"-f", "rawvideo",
		"-pixel_format", "bgr24",
		"-video_size", fmt.Sprintf("%dx%d", size.X, size.Y),
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-", // Read from stdin.
		"-c:v", "libx264",
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(opts.CRF),
		// Allow playback on a wider range of devices.
		"-pix_fmt", "yuv420p",
		// Enable fast-start so videos can be displayed in the browser without
		// full download.
		"-movflags", "+faststart",
		path,
	)
	// Written by exec's copy goroutine until Wait returns.
	f.cmd.Stderr = &f.stderr

	var err error
	f.pipe, err = f.cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := f.cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}
	return f, nil
}

func (f *FFmpeg) Put(input gocv.Mat) error {
	if input.Cols() != f.size.X || input.Rows() != f.size.Y || input.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("frame %dx%d type %v does not match ffmpeg input %dx%d bgr24",
			input.Cols(), input.Rows(), input.Type(), f.size.X, f.size.Y)
	}
	// ffmpeg's diagnostics are only safe to read after Wait, see Close.
	if _, err := f.pipe.Write(input.ToBytes()); err != nil {
		return fmt.Errorf("writing to ffmpeg: %w", err)
	}
	return nil
}

func (f *FFmpeg) Close() error {
	f.pipe.Close()
	log.Debugf("Waiting for FFMPEG shutdown.")
	err := f.cmd.Wait()
	log.Debugf("FFMPEG exit with status %v", err)
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, f.stderr.String())
	}
	return nil
}

// FFmpegProducer creates ffmpeg video sinks.
type FFmpegProducer struct {
	Options FFmpegOptions
}

// NewFFmpegProducer resolves the ffmpeg binary, searching $PATH if opts.Path
// is empty.
func NewFFmpegProducer(opts FFmpegOptions) (*FFmpegProducer, error) {
	name := opts.Path
	if name == "" {
		name = "ffmpeg"
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("unable to locate ffmpeg binary: %w", err)
	}
	log.Infof("Located ffmpeg binary, %v", p)
	opts.Path = p
	return &FFmpegProducer{Options: opts}, nil
}

func (p *FFmpegProducer) New(path string, fps float64, size image.Point) (Sink, error) {
	return NewFFmpeg(path, fps, size, p.Options)
}
