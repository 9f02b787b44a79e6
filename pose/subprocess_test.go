package pose

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const helperEnv = "POSECAM_HELPER_WORKER"

// TestHelperWorker is not a real test. It plays the pose worker when the test
// binary is started by SubprocessDetector.
func TestHelperWorker(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	defer os.Exit(0)

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 1<<20), 1<<24)
	enc := json.NewEncoder(os.Stdout)
	for in.Scan() {
		var req workerRequest
		if err := json.Unmarshal(in.Bytes(), &req); err != nil {
			enc.Encode(workerResponse{Error: err.Error()})
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(req.Frame)
		if err != nil || len(raw) != req.Width*req.Height*3 {
			enc.Encode(workerResponse{Seq: req.Seq, Error: fmt.Sprintf("bad frame of %d bytes", len(raw))})
			continue
		}
		resp := workerResponse{Seq: req.Seq}
		// Odd frames contain a person; world landmarks only on multiples of 3.
		if req.Seq%2 == 1 {
			resp.PoseLandmarks = make([][4]float64, NumLandmarks)
			for i := range resp.PoseLandmarks {
				resp.PoseLandmarks[i] = [4]float64{0.5, 0.25, -0.1, 0.9}
			}
		}
		if req.Seq%3 == 0 {
			resp.PoseWorldLandmarks = make([][4]float64, NumLandmarks)
		}
		fmt.Fprintln(os.Stderr, "INFO processed", req.Seq)
		enc.Encode(resp)
	}
}

func helperDetector(t *testing.T) *SubprocessDetector {
	t.Setenv(helperEnv, "1")
	return &SubprocessDetector{
		Command:                []string{os.Args[0], "-test.run=TestHelperWorker", "--"},
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
}

func TestSubprocessDetector(t *testing.T) {
	d := helperDetector(t)
	s, err := d.Open()
	require.NoError(t, err)

	frame := gocv.NewMatWithSize(4, 6, gocv.MatTypeCV8UC3)
	defer frame.Close()

	r, err := s.Detect(frame)
	require.NoError(t, err)
	require.Len(t, r.Camera, NumLandmarks)
	assert.Equal(t, Landmark{X: 0.5, Y: 0.25, Z: -0.1, Visibility: 0.9}, r.Camera[0])
	assert.Nil(t, r.World)

	r, err = s.Detect(frame)
	require.NoError(t, err)
	assert.Nil(t, r.Camera)
	assert.Nil(t, r.World)

	r, err = s.Detect(frame)
	require.NoError(t, err)
	assert.True(t, r.Camera.Present())
	assert.True(t, r.World.Present())

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestSubprocessDetector_RejectsGrayFrames(t *testing.T) {
	d := helperDetector(t)
	s, err := d.Open()
	require.NoError(t, err)
	defer s.Close()

	gray := gocv.NewMatWithSize(4, 6, gocv.MatTypeCV8U)
	defer gray.Close()
	_, err = s.Detect(gray)
	assert.Error(t, err)
}

func TestSubprocessDetector_MissingBinary(t *testing.T) {
	d := &SubprocessDetector{Command: []string{"/nonexistent/pose-worker"}}
	_, err := d.Open()
	assert.Error(t, err)
}

// TestBundledWorker drives tools/pose_worker.py, the worker the default
// configuration starts.
func TestBundledWorker(t *testing.T) {
	script, err := filepath.Abs(filepath.Join("..", "tools", "pose_worker.py"))
	require.NoError(t, err)
	require.FileExists(t, script)
	if err := exec.Command("python3", "-c", "import mediapipe, numpy").Run(); err != nil {
		t.Skipf("python3 with mediapipe unavailable: %v", err)
	}

	d := &SubprocessDetector{
		Command:                []string{"python3", script},
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
	s, err := d.Open()
	require.NoError(t, err)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	for i := 0; i < 2; i++ {
		r, err := s.Detect(frame)
		require.NoError(t, err)
		assert.False(t, r.Camera.Present(), "nobody in a black frame")
	}
	assert.NoError(t, s.Close())
}

func TestToLandmarks(t *testing.T) {
	l, err := toLandmarks(nil)
	require.NoError(t, err)
	assert.Nil(t, l)

	_, err = toLandmarks(make([][4]float64, 17))
	assert.Error(t, err)
}
