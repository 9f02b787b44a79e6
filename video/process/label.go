package process

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// Label text is sized for a frame of this many rows and scaled up from there.
const labelBaseRows = 480.0

var (
	labelInk   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelPaper = color.RGBA{A: 255}
)

// DrawLabel writes text on a filled black box in the top-left corner of img
// and returns the box. The font grows with the frame height so that labels
// stay legible on HD footage.
func DrawLabel(img *gocv.Mat, text string) image.Rectangle {
	k := math.Max(1, float64(img.Rows())/labelBaseRows)
	scale := 0.5 * k
	weight := int(math.Round(k))
	margin := int(math.Round(3 * k))

	extent := gocv.GetTextSize(text, gocv.FontHersheySimplex, scale, weight)
	box := image.Rect(0, 0, extent.X+2*margin, extent.Y+2*margin)
	gocv.Rectangle(img, box, labelPaper, -1)
	gocv.PutText(img, text, image.Pt(margin, margin+extent.Y), gocv.FontHersheySimplex, scale, labelInk, weight)
	return box
}
