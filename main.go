package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"posecam/config"
	"posecam/metrics"
	"posecam/pose"
	"posecam/video"
	"posecam/video/source"
)

var (
	configPath     = flag.String("config", "", "JSON configuration file.")
	inputDir       = flag.String("input", "dataset", "Folder containing input videos.")
	outputDir      = flag.String("output", "preprocessed_video", "Folder to save processed videos.")
	thickness      = flag.Int("thickness", 10, "Thickness of skeleton lines.")
	circleSize     = flag.Int("circle-size", 6, "Radius of landmark circles.")
	color          = flag.String("color", "0,255,0", "Skeleton color as B,G,R.")
	exportCSV      = flag.Bool("export-csv", false, "Export landmark coordinates to CSV.")
	samplingRate   = flag.Float64("sampling-rate", 0, "Frames per second to process; 0 processes every frame.")
	coordinateType = flag.String("coordinate-type", "world", "Coordinates to export: world or camera.")
	layout         = flag.String("layout", "mirror", "Output layout: mirror or flat.")
	detectorModel  = flag.String("model", "", "Pose landmark network for the dnn detector.")
	workerCommand  = flag.String("worker", "python3 tools/pose_worker.py", "Pose worker command line for the subprocess detector.")
	metricsFile    = flag.String("metrics-file", "", "Write prometheus metrics to this file after each batch.")
	logLevel       = flag.String("log-level", "info", "Log level.")
	watch          = flag.Bool("watch", false, "Keep running and process new videos as they appear.")
	noProgress     = flag.Bool("no-progress", false, "Disable progress bars.")
)

func main() {
	flag.Parse()

	lvl, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q\n", *logLevel)
		os.Exit(2)
	}
	log.SetLevel(lvl)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// Every video would fail the same way; stop before touching anything.
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	if err := cfg.ValidateDetector(); err != nil {
		log.Fatalf("%v", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	detector, err := pose.NewDetector(cfg.Detector)
	if err != nil {
		log.Fatalf("Failed to create pose detector: %v", err)
	}
	if c, ok := detector.(io.Closer); ok {
		defer c.Close()
	}

	sinks, err := video.NewSinkProducer(cfg.Video)
	if err != nil {
		log.Fatalf("Failed to set up video output: %v", err)
	}

	m := metrics.New()
	batch := &video.Batch{
		Pipeline: &video.Pipeline{
			Config:   cfg,
			Detector: detector,
			Opener:   source.VideoCaptureOpener{},
			Sinks:    sinks,
			Metrics:  m,
			Progress: os.Stderr,
		},
		Outputs: video.NewOutputs(cfg.OutputDir, cfg.InputDir, cfg.Layout, cfg.CoordinateType, cfg.Dedupe),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	files, err := video.Discover(cfg.InputDir)
	if err != nil {
		log.Fatalf("File discovery failed: %v", err)
	}
	stats := batch.Run(ctx, files)
	writeMetrics(cfg, m)

	if *watch && !stats.Interrupted {
		var ws video.RunStats
		err := video.Watch(ctx, cfg.InputDir, 2*time.Second, func(path string) {
			log.Infof("New video %s", path)
			batch.ProcessFile(ctx, path, &ws)
			writeMetrics(cfg, m)
		})
		if err != nil && ctx.Err() == nil {
			log.Errorf("Watching %s failed: %v", cfg.InputDir, err)
		}
		stats.Processed += ws.Processed
		stats.Skipped += ws.Skipped
		stats.Failed += ws.Failed
	}

	if stats.Failed > 0 {
		// Deferred cleanup does not run after os.Exit.
		stop()
		if c, ok := detector.(io.Closer); ok {
			c.Close()
		}
		os.Exit(1)
	}
}

// loadConfig applies defaults, then the config file, then explicitly set flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	cfg.InputDir = *inputDir
	cfg.OutputDir = *outputDir
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
		if cfg.InputDir == "" {
			cfg.InputDir = *inputDir
		}
		if cfg.OutputDir == "" {
			cfg.OutputDir = *outputDir
		}
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputDir = *inputDir
		case "output":
			cfg.OutputDir = *outputDir
		case "thickness":
			cfg.Thickness = *thickness
		case "circle-size":
			cfg.CircleSize = *circleSize
		case "color":
			if _, e := fmt.Sscanf(strings.ReplaceAll(*color, " ", ""), "%d,%d,%d", &cfg.Color[0], &cfg.Color[1], &cfg.Color[2]); e != nil {
				err = fmt.Errorf("parsing -color %q: %w", *color, e)
			}
		case "export-csv":
			cfg.ExportCSV = *exportCSV
		case "sampling-rate":
			if *samplingRate > 0 {
				r := *samplingRate
				cfg.SamplingRate = &r
			} else {
				cfg.SamplingRate = nil
			}
		case "coordinate-type":
			cfg.CoordinateType = config.CoordinateSpace(*coordinateType)
		case "layout":
			cfg.Layout = config.Layout(*layout)
		case "model":
			cfg.Detector.Backend = config.DetectorDNN
			cfg.Detector.Model = *detectorModel
		case "worker":
			cfg.Detector.Backend = config.DetectorSubprocess
			cfg.Detector.Command = strings.Fields(*workerCommand)
		case "metrics-file":
			cfg.MetricsFile = *metricsFile
		case "no-progress":
			cfg.Progress = !*noProgress
		}
	})
	return cfg, err
}

func writeMetrics(cfg *config.Config, m *metrics.Metrics) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Errorf("Failed to write metrics: %v", err)
	}
}
