package pose

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	// dnnInputSize is the square input resolution of the landmark network.
	dnnInputSize = 256

	// The network emits a few auxiliary points after the body landmarks.
	dnnModelLandmarks = 39
	dnnValuesPerPoint = 5
	dnnWorldPerPoint  = 3
)

// Output layer names of the BlazePose GHUM landmark network exported to ONNX.
var dnnOutputs = []string{"Identity", "Identity_1", "Identity_4"}

// DNNDetector runs a BlazePose landmark network through the OpenCV DNN module.
// The whole frame is letterboxed into the network input, so the detector works
// best when the subject fills a good part of the frame.
type DNNDetector struct {
	net gocv.Net

	// Minimum pose presence score for a detection to be reported.
	minConfidence float64
}

func NewDNNDetector(model string, minConfidence float64) (*DNNDetector, error) {
	net := gocv.ReadNet(model, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to read pose model %s", model)
	}
	log.Infof("Loaded pose model %s", model)
	return &DNNDetector{
		net:           net,
		minConfidence: minConfidence,
	}, nil
}

func (d *DNNDetector) Open() (Session, error) {
	return &dnnSession{
		d:      d,
		padded: gocv.NewMat(),
		small:  gocv.NewMat(),
	}, nil
}

func (d *DNNDetector) Close() error {
	return d.net.Close()
}

type dnnSession struct {
	d *DNNDetector

	// Square letterboxed copy of the input frame.
	padded gocv.Mat
	// Resized network input.
	small gocv.Mat
}

func (s *dnnSession) Detect(frame gocv.Mat) (Result, error) {
	start := time.Now()
	defer func() {
		log.Debugf("Pose network ran in %v", time.Since(start))
	}()

	w, h := frame.Cols(), frame.Rows()
	if w == 0 || h == 0 {
		return Result{}, fmt.Errorf("empty frame")
	}
	side := w
	if h > side {
		side = h
	}
	padX, padY := (side-w)/2, (side-h)/2
	gocv.CopyMakeBorder(frame, &s.padded, padY, side-h-padY, padX, side-w-padX, gocv.BorderConstant, color.RGBA{})

	scale := image.Point{X: dnnInputSize, Y: dnnInputSize}
	gocv.Resize(s.padded, &s.small, scale, 0, 0, gocv.InterpolationLinear)

	// Network expects RGB in [0, 1].
	blob := gocv.BlobFromImage(s.small, 1.0/255.0, scale, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.d.net.SetInput(blob, "")
	outs := s.d.net.ForwardLayers(dnnOutputs)
	defer func() {
		for _, m := range outs {
			m.Close()
		}
	}()
	if len(outs) != len(dnnOutputs) {
		return Result{}, fmt.Errorf("pose network returned %d outputs, want %d", len(outs), len(dnnOutputs))
	}

	points, err := outs[0].DataPtrFloat32()
	if err != nil {
		return Result{}, err
	}
	flag, err := outs[1].DataPtrFloat32()
	if err != nil {
		return Result{}, err
	}
	world, err := outs[2].DataPtrFloat32()
	if err != nil {
		return Result{}, err
	}
	if len(points) < dnnModelLandmarks*dnnValuesPerPoint || len(flag) < 1 || len(world) < dnnModelLandmarks*dnnWorldPerPoint {
		return Result{}, fmt.Errorf("unexpected pose network output sizes %d, %d, %d", len(points), len(flag), len(world))
	}

	if float64(flag[0]) < s.d.minConfidence {
		log.Debugf("No pose in frame, presence %.2f", flag[0])
		return Result{}, nil
	}

	// Map network pixels back to the unpadded frame, normalized.
	k := float64(side) / dnnInputSize
	camera := make(Landmarks, NumLandmarks)
	worldLms := make(Landmarks, NumLandmarks)
	for i := 0; i < NumLandmarks; i++ {
		p := points[i*dnnValuesPerPoint:]
		vis := sigmoid(float64(p[3]))
		camera[i] = Landmark{
			X:          (float64(p[0])*k - float64(padX)) / float64(w),
			Y:          (float64(p[1])*k - float64(padY)) / float64(h),
			Z:          float64(p[2]) * k / float64(w),
			Visibility: vis,
		}
		q := world[i*dnnWorldPerPoint:]
		worldLms[i] = Landmark{
			X:          float64(q[0]),
			Y:          float64(q[1]),
			Z:          float64(q[2]),
			Visibility: vis,
		}
	}
	return Result{Camera: camera, World: worldLms}, nil
}

func (s *dnnSession) Close() error {
	s.padded.Close()
	s.small.Close()
	return nil
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
