package video

import (
	"errors"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"posecam/pose"
	"posecam/video/sink"
	"posecam/video/source"
)

// fakeSource produces solid frames whose first pixel encodes the frame index.
type fakeSource struct {
	props  source.Properties
	next   int
	closed bool
}

func frameFor(index int, size image.Point) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(index%256), float64(index/256), 77, 0),
		size.Y, size.X, gocv.MatTypeCV8UC3)
}

func indexOf(m gocv.Mat) int {
	v := m.GetVecbAt(0, 0)
	return int(v[0]) + 256*int(v[1])
}

func (s *fakeSource) Properties() source.Properties { return s.props }

func (s *fakeSource) Read(dst *gocv.Mat) bool {
	if s.next >= s.props.FrameCount {
		return false
	}
	m := frameFor(s.next, s.props.Size)
	defer m.Close()
	m.CopyTo(dst)
	s.next++
	return true
}

func (s *fakeSource) Skip() bool {
	if s.next >= s.props.FrameCount {
		return false
	}
	s.next++
	return true
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeOpener serves fakeSources for known paths; anything else fails to open.
type fakeOpener struct {
	videos  map[string]source.Properties
	opened  []string
	sources []*fakeSource
}

func (o *fakeOpener) Open(path string) (source.Source, error) {
	o.opened = append(o.opened, path)
	props, ok := o.videos[path]
	if !ok {
		return nil, errors.New("unsupported codec")
	}
	s := &fakeSource{props: props}
	o.sources = append(o.sources, s)
	return s, nil
}

// fakeSink records frame bytes and creates its file like a real writer.
type fakeSink struct {
	path   string
	fps    float64
	frames [][]byte
	closed bool
}

func (s *fakeSink) Put(m gocv.Mat) error {
	s.frames = append(s.frames, m.ToBytes())
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeProducer struct {
	sinks []*fakeSink
}

func (p *fakeProducer) New(path string, fps float64, size image.Point) (sink.Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	f.Close()
	s := &fakeSink{path: path, fps: fps}
	p.sinks = append(p.sinks, s)
	return s, nil
}

// fakeDetector decides per frame index whether a pose is found.
type fakeDetector struct {
	camera func(index int) bool
	world  func(index int) bool
	// onDetect runs after every detection.
	onDetect func(index int)
	fail     func(index int) bool

	mu       sync.Mutex
	sessions []*fakeSession
}

func (d *fakeDetector) Open() (pose.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeSession{d: d}
	d.sessions = append(d.sessions, s)
	return s, nil
}

type fakeSession struct {
	d      *fakeDetector
	calls  []int
	closed bool
}

func landmarksFor(index int) pose.Landmarks {
	l := make(pose.Landmarks, pose.NumLandmarks)
	for i := range l {
		l[i] = pose.Landmark{
			X:          0.25 + float64(i)/100,
			Y:          0.5,
			Z:          -float64(index) / 1000,
			Visibility: 0.875,
		}
	}
	return l
}

func (s *fakeSession) Detect(frame gocv.Mat) (pose.Result, error) {
	index := indexOf(frame)
	s.calls = append(s.calls, index)
	if s.d.fail != nil && s.d.fail(index) {
		return pose.Result{}, errors.New("model crashed")
	}
	var r pose.Result
	if s.d.camera != nil && s.d.camera(index) {
		r.Camera = landmarksFor(index)
	}
	if s.d.world != nil && s.d.world(index) {
		r.World = landmarksFor(index)
	}
	if s.d.onDetect != nil {
		s.d.onDetect(index)
	}
	return r, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func always(int) bool { return true }
func never(int) bool  { return false }
