// Package export writes per-frame landmark coordinates as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"posecam/config"
	"posecam/pose"
)

// ColumnsPerLandmark is x, y, z and visibility.
const ColumnsPerLandmark = 4

// Header returns the column names for the given coordinate space: "Frame"
// followed by four columns per landmark in canonical order.
func Header(space config.CoordinateSpace) []string {
	cols := make([]string, 0, 1+ColumnsPerLandmark*pose.NumLandmarks)
	cols = append(cols, "Frame")
	for _, name := range pose.Names {
		cols = append(cols,
			fmt.Sprintf("%s_x_%s", name, space),
			fmt.Sprintf("%s_y_%s", name, space),
			fmt.Sprintf("%s_z_%s", name, space),
			name+"_visibility",
		)
	}
	return cols
}

// Table writes one row per processed frame.
type Table struct {
	w       *csv.Writer
	space   config.CoordinateSpace
	missing string
	row     []string
}

// NewTable writes the header to w. Landmarks that were not detected are
// written as the missing marker.
func NewTable(w io.Writer, space config.CoordinateSpace, missing string) (*Table, error) {
	if !space.Valid() {
		return nil, fmt.Errorf("%w: coordinate space %q", config.ErrInvalidConfig, space)
	}
	t := &Table{
		w:       csv.NewWriter(w),
		space:   space,
		missing: missing,
		row:     make([]string, 1+ColumnsPerLandmark*pose.NumLandmarks),
	}
	if err := t.w.Write(Header(space)); err != nil {
		return nil, err
	}
	return t, nil
}

// Space is the coordinate space this table exports.
func (t *Table) Space() config.CoordinateSpace {
	return t.space
}

// Select picks the representation matching the table's coordinate space.
func (t *Table) Select(r pose.Result) pose.Landmarks {
	if t.space == config.Camera {
		return r.Camera
	}
	return r.World
}

// WriteRow writes the row for the frame at the given source index.
func (t *Table) WriteRow(index int, landmarks pose.Landmarks) error {
	if landmarks.Present() && len(landmarks) != pose.NumLandmarks {
		return fmt.Errorf("got %d landmarks, want %d", len(landmarks), pose.NumLandmarks)
	}
	t.row[0] = strconv.Itoa(index)
	for i := 0; i < pose.NumLandmarks; i++ {
		cells := t.row[1+i*ColumnsPerLandmark : 1+(i+1)*ColumnsPerLandmark]
		if !landmarks.Present() {
			for j := range cells {
				cells[j] = t.missing
			}
			continue
		}
		l := landmarks[i]
		cells[0] = formatFloat(l.X)
		cells[1] = formatFloat(l.Y)
		cells[2] = formatFloat(l.Z)
		cells[3] = formatFloat(l.Visibility)
	}
	return t.w.Write(t.row)
}

// Flush writes buffered rows to the underlying writer.
func (t *Table) Flush() error {
	t.w.Flush()
	return t.w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// TableFile is a Table that owns its output file.
type TableFile struct {
	*Table
	f *os.File
}

// CreateTable creates (or truncates) path and writes the header.
func CreateTable(path string, space config.CoordinateSpace, missing string) (*TableFile, error) {
	if !space.Valid() {
		return nil, fmt.Errorf("%w: coordinate space %q", config.ErrInvalidConfig, space)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t, err := NewTable(f, space, missing)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &TableFile{Table: t, f: f}, nil
}

// Close flushes remaining rows and closes the file.
func (t *TableFile) Close() error {
	ferr := t.Flush()
	cerr := t.f.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}
