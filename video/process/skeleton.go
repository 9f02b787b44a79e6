package process

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"posecam/pose"
)

// VisibilityThresh is the minimum visibility for a landmark to be drawn.
const VisibilityThresh = 0.5

// SkeletonStyle controls how landmarks are drawn.
type SkeletonStyle struct {
	Color        color.RGBA
	Thickness    int
	CircleRadius int
}

// DrawSkeleton renders camera landmarks onto img: connections as lines, then
// each landmark as a filled circle. Landmarks that are barely visible or fall
// outside the frame are left out, along with their connections. Absent
// landmarks leave img untouched.
func DrawSkeleton(img *gocv.Mat, landmarks pose.Landmarks, style SkeletonStyle) {
	if !landmarks.Present() {
		return
	}

	w, h := img.Cols(), img.Rows()
	pts := make([]image.Point, len(landmarks))
	ok := make([]bool, len(landmarks))
	for i, l := range landmarks {
		if l.Visibility < VisibilityThresh || !inUnit(l.X) || !inUnit(l.Y) {
			continue
		}
		pts[i] = toPixel(l.X, l.Y, w, h)
		ok[i] = true
	}

	for _, c := range pose.Connections {
		if c[0] >= len(pts) || c[1] >= len(pts) || !ok[c[0]] || !ok[c[1]] {
			continue
		}
		gocv.Line(img, pts[c[0]], pts[c[1]], style.Color, style.Thickness)
	}
	for i, p := range pts {
		if ok[i] {
			gocv.Circle(img, p, style.CircleRadius, style.Color, -1)
		}
	}
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

func toPixel(x, y float64, w, h int) image.Point {
	px := int(x * float64(w))
	py := int(y * float64(h))
	if px > w-1 {
		px = w - 1
	}
	if py > h-1 {
		py = h - 1
	}
	return image.Point{X: px, Y: py}
}
