package video

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"posecam/metrics"
)

// Recognized video extensions, lowercase with leading dot.
var videoExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
}

// IsVideo reports whether path has a recognized video extension.
func IsVideo(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Discover walks root and returns all video files, sorted for deterministic
// processing order.
func Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsVideo(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// RunStats tracks aggregate counters across a batch run.
type RunStats struct {
	Total     int
	Current   int
	Processed int
	Skipped   int
	Failed    int

	FramesSelected int
	Interrupted    bool
}

// Batch runs the pipeline over many videos, one at a time, with a shared
// configuration. A failing video never stops the batch; an interrupt does.
type Batch struct {
	Pipeline *Pipeline
	Outputs  *Outputs
}

// Run processes files in order and returns aggregate stats.
func (b *Batch) Run(ctx context.Context, files []string) RunStats {
	var stats RunStats
	stats.Total = len(files)

	for i, path := range files {
		stats.Current = i + 1
		if ctx.Err() != nil {
			log.Warn("Interrupted")
			stats.Interrupted = true
			break
		}
		log.Infof("[%d/%d] Processing %s", stats.Current, stats.Total, path)
		b.ProcessFile(ctx, path, &stats)
		if stats.Interrupted {
			break
		}
	}

	log.WithFields(log.Fields{
		"total":     stats.Total,
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
		"frames":    stats.FramesSelected,
	}).Infof("Batch complete")
	return stats
}

// ProcessFile runs one video and records the outcome in stats.
func (b *Batch) ProcessFile(ctx context.Context, path string, stats *RunStats) {
	vlog := log.WithField("video", path)
	m := b.Pipeline.Metrics

	rec, err := b.Outputs.NewRecord(path)
	if err != nil {
		vlog.Errorf("Cannot place outputs: %v", err)
		stats.Failed++
		m.Videos.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}

	res, err := b.Pipeline.Process(ctx, rec)
	stats.FramesSelected += res.FramesSelected
	switch {
	case errors.Is(err, ErrOpenSource):
		vlog.Errorf("Failed to open video file, skipping: %v", err)
		stats.Skipped++
		m.Videos.WithLabelValues(metrics.ResultSkipped).Inc()
	case err != nil:
		vlog.Errorf("Processing failed: %v", err)
		stats.Failed++
		m.Videos.WithLabelValues(metrics.ResultFailed).Inc()
	case res.Interrupted:
		stats.Interrupted = true
		m.Videos.WithLabelValues(metrics.ResultInterrupted).Inc()
	default:
		stats.Processed++
		m.Videos.WithLabelValues(metrics.ResultProcessed).Inc()
	}
}
