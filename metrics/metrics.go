// Package metrics counts pipeline activity with prometheus collectors. Batch
// runs have no long-lived process to scrape, so the registry is written to a
// textfile for the node exporter's textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "posecam"

// Video outcomes.
const (
	ResultProcessed   = "processed"
	ResultInterrupted = "interrupted"
	ResultSkipped     = "skipped"
	ResultFailed      = "failed"
)

type Metrics struct {
	Registry *prometheus.Registry

	Videos         *prometheus.CounterVec
	FramesRead     prometheus.Counter
	FramesSelected prometheus.Counter
	DetectionMiss  prometheus.Counter
	DetectSeconds  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Videos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "videos_total",
			Help:      "Videos handled, by result.",
		}, []string{"result"}),
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_read_total",
			Help:      "Frames read from sources, including skipped ones.",
		}),
		FramesSelected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_selected_total",
			Help:      "Frames passed to pose detection.",
		}),
		DetectionMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_miss_total",
			Help:      "Selected frames in which no pose was found.",
		}),
		DetectSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detect_seconds",
			Help:      "Pose detection latency per frame.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	m.Registry.MustRegister(m.Videos, m.FramesRead, m.FramesSelected, m.DetectionMiss, m.DetectSeconds)
	return m
}

// WriteTextfile atomically writes all metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
