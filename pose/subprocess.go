package pose

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// maxResponseSize bounds a single worker response line.
const maxResponseSize = 1 << 20

// SubprocessDetector delegates inference to a worker process, typically a
// Python script running the MediaPipe pose solution. One worker is started per
// session so that the model's tracking state never leaks between videos.
//
// Protocol, one JSON object per line in each direction:
//
//	-> {"seq": 7, "width": 1920, "height": 1080, "encoding": "bgr24", "frame": "<base64>"}
//	<- {"seq": 7, "pose_landmarks": [[x, y, z, visibility], ...] | null,
//	    "pose_world_landmarks": [[x, y, z, visibility], ...] | null, "error": ""}
//
// The confidence thresholds are appended to Command as
// --min-detection-confidence and --min-tracking-confidence.
type SubprocessDetector struct {
	Command []string

	MinDetectionConfidence float64
	MinTrackingConfidence  float64
}

type workerRequest struct {
	Seq      int    `json:"seq"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Encoding string `json:"encoding"`
	Frame    string `json:"frame"`
}

type workerResponse struct {
	Seq                int          `json:"seq"`
	PoseLandmarks      [][4]float64 `json:"pose_landmarks"`
	PoseWorldLandmarks [][4]float64 `json:"pose_world_landmarks"`
	Error              string       `json:"error"`
}

func (d *SubprocessDetector) Open() (Session, error) {
	if len(d.Command) == 0 {
		return nil, errors.New("no worker command configured")
	}
	args := append([]string{}, d.Command[1:]...)
	args = append(args,
		"--min-detection-confidence", strconv.FormatFloat(d.MinDetectionConfidence, 'g', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.MinTrackingConfidence, 'g', -1, 64),
	)
	c := exec.Command(d.Command[0], args...)

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("starting pose worker %s: %w", d.Command[0], err)
	}
	log.Debugf("Started pose worker %v (pid %d)", d.Command, c.Process.Pid)

	s := &subprocessSession{
		cmd:       c,
		stdin:     stdin,
		enc:       json.NewEncoder(stdin),
		out:       bufio.NewScanner(stdout),
		stderrEOF: make(chan bool),
	}
	s.out.Buffer(make([]byte, 64<<10), maxResponseSize)
	go s.logStderr(stderr)
	return s, nil
}

type subprocessSession struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *json.Encoder
	out   *bufio.Scanner
	seq   int

	stderrEOF chan bool
	closed    bool
}

func (s *subprocessSession) logStderr(r io.Reader) {
	defer close(s.stderrEOF)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, "ERROR"), strings.Contains(line, "CRITICAL"):
			log.Errorf("pose worker: %s", line)
		case strings.Contains(line, "WARN"):
			log.Warnf("pose worker: %s", line)
		default:
			log.Debugf("pose worker: %s", line)
		}
	}
}

func (s *subprocessSession) Detect(frame gocv.Mat) (Result, error) {
	if frame.Type() != gocv.MatTypeCV8UC3 {
		return Result{}, fmt.Errorf("pose worker needs 8-bit BGR frames, got type %v", frame.Type())
	}
	s.seq++
	req := workerRequest{
		Seq:      s.seq,
		Width:    frame.Cols(),
		Height:   frame.Rows(),
		Encoding: "bgr24",
		Frame:    base64.StdEncoding.EncodeToString(frame.ToBytes()),
	}
	if err := s.enc.Encode(&req); err != nil {
		return Result{}, fmt.Errorf("sending frame to pose worker: %w", err)
	}

	if !s.out.Scan() {
		if err := s.out.Err(); err != nil {
			return Result{}, fmt.Errorf("reading pose worker: %w", err)
		}
		return Result{}, io.ErrUnexpectedEOF
	}
	var resp workerResponse
	if err := json.Unmarshal(s.out.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("decoding pose worker response: %w", err)
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("pose worker: %s", resp.Error)
	}
	if resp.Seq != req.Seq {
		return Result{}, fmt.Errorf("pose worker answered frame %d, expected %d", resp.Seq, req.Seq)
	}

	camera, err := toLandmarks(resp.PoseLandmarks)
	if err != nil {
		return Result{}, err
	}
	world, err := toLandmarks(resp.PoseWorldLandmarks)
	if err != nil {
		return Result{}, err
	}
	return Result{Camera: camera, World: world}, nil
}

func toLandmarks(v [][4]float64) (Landmarks, error) {
	if v == nil {
		return nil, nil
	}
	if len(v) != NumLandmarks {
		return nil, fmt.Errorf("pose worker returned %d landmarks, want %d", len(v), NumLandmarks)
	}
	l := make(Landmarks, NumLandmarks)
	for i, p := range v {
		l[i] = Landmark{X: p[0], Y: p[1], Z: p[2], Visibility: p[3]}
	}
	return l, nil
}

// Close ends the worker's input and waits for it to exit.
func (s *subprocessSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stdin.Close()
	<-s.stderrEOF
	err := s.cmd.Wait()
	log.Debugf("Pose worker exit with status %v", err)
	return err
}
