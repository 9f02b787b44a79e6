package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb/v3"
	log "github.com/sirupsen/logrus"

	"posecam/config"
	"posecam/export"
	"posecam/metrics"
	"posecam/pose"
	"posecam/video/process"
	"posecam/video/sink"
	"posecam/video/source"
)

// ErrOpenSource marks videos that could not be opened or have unusable
// properties. Nothing is written for them.
var ErrOpenSource = errors.New("cannot open video")

const progressTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . "%s frames/s" }}`

// Pipeline processes single videos: it samples frames, runs pose detection,
// draws the skeleton and writes the annotated video plus the optional
// landmark table.
type Pipeline struct {
	Config   *config.Config
	Detector pose.Detector
	Opener   source.Opener
	Sinks    sink.Producer
	Metrics  *metrics.Metrics

	// Progress receives the per-video progress bar when Config.Progress is set.
	Progress io.Writer
}

// VideoResult summarizes one processed video.
type VideoResult struct {
	Plan           SamplingPlan
	FramesRead     int
	FramesSelected int
	// FramesDetected counts frames with camera landmarks.
	FramesDetected int
	Interrupted    bool
}

// Process runs the pipeline for one video. Configuration is validated before
// any resource is acquired; once outputs are open they are finalized on every
// return path, including interruption through ctx and errors.
func (p *Pipeline) Process(ctx context.Context, rec *OutputRecord) (res VideoResult, err error) {
	cfg := p.Config
	vlog := log.WithField("video", rec.Input)

	if err := cfg.Validate(); err != nil {
		return res, err
	}

	src, err := p.Opener.Open(rec.Input)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrOpenSource, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			vlog.Warnf("Error closing source: %v", cerr)
		}
	}()

	props := src.Properties()
	if props.Size.X <= 0 || props.Size.Y <= 0 {
		return res, fmt.Errorf("%w: %s has no frame size", ErrOpenSource, rec.Input)
	}
	if props.FPS <= 0 {
		return res, fmt.Errorf("%w: %s reports no frame rate", ErrOpenSource, rec.Input)
	}
	res.Plan = NewSamplingPlan(props.FPS, cfg.SamplingRate)
	vlog.WithFields(log.Fields{
		"frames":   props.FrameCount,
		"fps":      props.FPS,
		"size":     fmt.Sprintf("%dx%d", props.Size.X, props.Size.Y),
		"duration": props.Duration,
		"interval": res.Plan.Interval,
	}).Debugf("Opened video")

	session, err := p.Detector.Open()
	if err != nil {
		return res, fmt.Errorf("opening pose detector: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			vlog.Warnf("Error closing pose detector: %v", cerr)
		}
	}()

	if err := rec.Prepare(); err != nil {
		return res, err
	}

	out, err := p.Sinks.New(rec.VideoPath, res.Plan.OutputFPS, props.Size)
	if err != nil {
		return res, fmt.Errorf("creating %s: %w", rec.VideoPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("finalizing %s: %w", rec.VideoPath, cerr)
		}
	}()

	var table *export.TableFile
	if cfg.ExportCSV {
		table, err = export.CreateTable(rec.TablePath, cfg.CoordinateType, cfg.MissingMarker)
		if err != nil {
			return res, fmt.Errorf("creating %s: %w", rec.TablePath, err)
		}
		defer func() {
			if cerr := table.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("finalizing %s: %w", rec.TablePath, cerr)
			}
		}()
	}

	var bar *pb.ProgressBar
	if cfg.Progress && p.Progress != nil {
		bar = pb.New(res.Plan.EstimatedFrames(props.FrameCount))
		bar.SetTemplateString(progressTemplate)
		bar.Set("prefix", fmt.Sprintf("Processing %s ", filepath.Base(rec.Input)))
		bar.SetWriter(p.Progress)
		bar.Start()
		defer bar.Finish()
	}

	f := frameStep{
		p:       p,
		session: session,
		rec:     rec,
		out:     out,
		table:   table,
		log:     vlog,
		style: process.SkeletonStyle{
			Color:        cfg.RGBA(),
			Thickness:    cfg.Thickness,
			CircleRadius: cfg.CircleSize,
		},
		thumb: cfg.Thumbnails,
	}

	img := source.NewImage()
	defer img.Close()

	for index := 0; ; index++ {
		if !res.Plan.Selected(index) {
			if !src.Skip() {
				break
			}
			res.FramesRead++
			p.Metrics.FramesRead.Inc()
			continue
		}

		if !src.Read(&img.Mat) {
			break
		}
		img.Index = index
		res.FramesRead++
		p.Metrics.FramesRead.Inc()

		detected, err := f.run(img)
		if err != nil {
			return res, fmt.Errorf("frame %d: %w", index, err)
		}
		res.FramesSelected++
		p.Metrics.FramesSelected.Inc()
		if detected {
			res.FramesDetected++
		} else {
			p.Metrics.DetectionMiss.Inc()
		}
		if bar != nil {
			bar.Increment()
		}

		if ctx.Err() != nil {
			res.Interrupted = true
			vlog.Warnf("Interrupted after frame %d", index)
			break
		}
	}

	vlog.WithFields(log.Fields{
		"read":     res.FramesRead,
		"selected": res.FramesSelected,
		"detected": res.FramesDetected,
	}).Infof("Finished video")
	return res, nil
}

// frameStep handles a single selected frame.
type frameStep struct {
	p       *Pipeline
	session pose.Session
	rec     *OutputRecord
	out     sink.Sink
	table   *export.TableFile
	log     *log.Entry
	style   process.SkeletonStyle

	// Write a thumbnail of the next frame.
	thumb bool
}

func (f *frameStep) run(img source.Image) (bool, error) {
	start := time.Now()
	result, err := f.session.Detect(img.Mat)
	if err != nil {
		return false, fmt.Errorf("pose detection: %w", err)
	}
	f.p.Metrics.DetectSeconds.Observe(time.Since(start).Seconds())

	process.DrawSkeleton(&img.Mat, result.Camera, f.style)
	if f.p.Config.LabelFrames {
		process.DrawLabel(&img.Mat, fmt.Sprintf("%s #%d", filepath.Base(f.rec.Input), img.Index))
	}

	if f.table != nil {
		if err := f.table.WriteRow(img.Index, f.table.Select(result)); err != nil {
			return false, fmt.Errorf("writing %s: %w", f.rec.TablePath, err)
		}
	}

	if err := f.out.Put(img.Mat); err != nil {
		return false, fmt.Errorf("writing %s: %w", f.rec.VideoPath, err)
	}

	if f.thumb {
		f.thumb = false
		if err := process.WriteThumb(f.rec.ThumbPath, img.Mat); err != nil {
			f.log.Errorf("Failed to write thumbnail: %v", err)
		} else {
			f.log.Debugf("Thumbnail written to %v", f.rec.ThumbPath)
		}
	}

	return result.Camera.Present(), nil
}
