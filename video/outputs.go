package video

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"posecam/config"
)

const (
	SuffixVideo = "_processed"
	SuffixThumb = "_thumb.jpg"
)

// OutputRecord holds every output path for one input video.
type OutputRecord struct {
	Input string

	VideoPath string
	TablePath string
	ThumbPath string
}

// Dir is the directory the outputs are written to.
func (r *OutputRecord) Dir() string {
	return filepath.Dir(r.VideoPath)
}

// Outputs maps input videos to output paths.
type Outputs struct {
	BasePath  string
	InputRoot string
	Layout    config.Layout
	Space     config.CoordinateSpace

	// If nil, colliding outputs overwrite each other.
	resolver *CollisionResolver
}

func NewOutputs(basePath, inputRoot string, layout config.Layout, space config.CoordinateSpace, dedupe bool) *Outputs {
	o := &Outputs{
		BasePath:  basePath,
		InputRoot: inputRoot,
		Layout:    layout,
		Space:     space,
	}
	if dedupe {
		o.resolver = NewCollisionResolver()
	}
	return o
}

// NewRecord computes output paths for input without touching the filesystem.
func (o *Outputs) NewRecord(input string) (*OutputRecord, error) {
	dir := o.BasePath
	if o.Layout == config.LayoutMirror {
		rel, err := filepath.Rel(o.InputRoot, filepath.Dir(input))
		if err != nil {
			return nil, err
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s is outside of input root %s", input, o.InputRoot)
		}
		dir = filepath.Join(o.BasePath, rel)
	}

	name := filepath.Base(input)
	ext := filepath.Ext(name)
	stem := filepath.Join(dir, strings.TrimSuffix(name, ext))
	if o.resolver != nil {
		stem = o.resolver.Resolve(input, stem)
	}

	return &OutputRecord{
		Input:     input,
		VideoPath: stem + SuffixVideo + ext,
		TablePath: fmt.Sprintf("%s_landmarks_%s.csv", stem, o.Space),
		ThumbPath: stem + SuffixThumb,
	}, nil
}

// Prepare creates the record's output directory.
func (r *OutputRecord) Prepare() error {
	return os.MkdirAll(r.Dir(), 0755)
}

// CollisionResolver tracks output stems claimed by input files and resolves
// duplicates by appending " - dupN". Two inputs may share a stem when the
// layout is flat, or when only their extensions differ (clip.mp4 and clip.avi
// would share a landmark table).
type CollisionResolver struct {
	owners   map[string]string    // stem → input that owns it
	counters map[string]int       // requested stem → next dup counter
	assigned map[[2]string]string // (input, requested stem) → resolved stem
}

func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
		assigned: make(map[[2]string]string),
	}
}

// Resolve returns the stem input should use. Resolving the same input again
// returns the same stem.
func (cr *CollisionResolver) Resolve(input, requested string) string {
	owner, exists := cr.owners[requested]
	if !exists || owner == input {
		cr.owners[requested] = input
		return requested
	}

	key := [2]string{input, requested}
	if stem, ok := cr.assigned[key]; ok {
		return stem
	}

	counter := cr.counters[requested]
	if counter == 0 {
		counter = 1
	}
	for {
		candidate := fmt.Sprintf("%s - dup%d", requested, counter)
		cOwner, cExists := cr.owners[candidate]
		if !cExists || cOwner == input {
			cr.counters[requested] = counter + 1
			cr.owners[candidate] = input
			cr.assigned[key] = candidate
			return candidate
		}
		counter++
	}
}
