package video

import (
	"math"
)

// SamplingPlan decides which source frames are processed and the nominal rate
// of the output video.
type SamplingPlan struct {
	// Interval is the stride between processed frames, at least 1.
	Interval int
	// OutputFPS is the frame rate written to the output video.
	OutputFPS float64
}

// NewSamplingPlan derives the plan from the native frame rate and an optional
// target rate. The output rate follows the target rate even when rounding the
// interval makes the actual sampling denser or sparser, and a target above
// the native rate is not capped.
func NewSamplingPlan(fps float64, samplingRate *float64) SamplingPlan {
	if samplingRate == nil || *samplingRate <= 0 {
		return SamplingPlan{Interval: 1, OutputFPS: fps}
	}
	return SamplingPlan{Interval: strideOf(fps / *samplingRate), OutputFPS: *samplingRate}
}

// maxInterval caps the stride for ratios that do not fit an int. Any video
// shorter than this many frames then yields only frame 0.
const maxInterval = math.MaxInt32

func strideOf(ratio float64) int {
	switch {
	case math.IsNaN(ratio):
		return 1
	case ratio >= maxInterval:
		return maxInterval
	}
	interval := int(math.RoundToEven(ratio))
	if interval < 1 {
		return 1
	}
	return interval
}

// Selected reports whether the frame at index is processed.
func (p SamplingPlan) Selected(index int) bool {
	return index%p.Interval == 0
}

// EstimatedFrames is the expected number of processed frames for progress
// reporting. It is not corrected for early termination.
func (p SamplingPlan) EstimatedFrames(total int) int {
	if total <= 0 {
		return 0
	}
	return total / p.Interval
}
