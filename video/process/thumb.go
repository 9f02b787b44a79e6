package process

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// ThumbWidth is the width of generated thumbnails; height keeps the aspect.
const ThumbWidth = 320

// WriteThumb stores a scaled JPEG of img at path.
func WriteThumb(path string, img gocv.Mat) error {
	if img.Empty() {
		return fmt.Errorf("empty frame")
	}
	h := img.Rows() * ThumbWidth / img.Cols()
	if h < 1 {
		h = 1
	}

	tmat := gocv.NewMat()
	defer tmat.Close()
	gocv.Resize(img, &tmat, image.Point{X: ThumbWidth, Y: h}, 0, 0, gocv.InterpolationArea)

	jpeg, err := gocv.IMEncode(gocv.JPEGFileExt, tmat)
	if err != nil {
		return err
	}
	defer jpeg.Close()

	return os.WriteFile(path, jpeg.GetBytes(), 0644)
}
