// Package vision prepares photos for OCR with OpenCV.
package vision

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/camden-git/sitephotosync/ocr"
)

// LabelMask isolates the painted label: crop to the label region, mask the
// orange paint in HSV, clean the mask with an open and a close, and write
// the inverted mask as dark text on white.
type LabelMask struct {
	Lower      gocv.Scalar
	Upper      gocv.Scalar
	KernelSize int
}

func NewLabelMask() *LabelMask {
	return &LabelMask{
		Lower:      gocv.NewScalar(20, 120, 120, 0),
		Upper:      gocv.NewScalar(25, 255, 255, 0),
		KernelSize: 4,
	}
}

func (m *LabelMask) Preprocess(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img := gocv.IMRead(src, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("vision: could not read image %s", src)
	}
	defer img.Close()

	roi := img.Region(ocr.LabelRegion(img.Cols(), img.Rows()))
	defer roi.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)

	orange := gocv.NewMat()
	defer orange.Close()
	gocv.InRangeWithScalar(hsv, m.Lower, m.Upper, &orange)

	text := gocv.NewMat()
	defer text.Close()
	gocv.BitwiseNot(orange, &text)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(m.KernelSize, m.KernelSize))
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(text, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)

	out := gocv.NewMat()
	defer out.Close()
	gocv.BitwiseNot(closed, &out)

	if ok := gocv.IMWrite(dst, out); !ok {
		return fmt.Errorf("vision: failed to write %s", dst)
	}
	return nil
}

var _ ocr.Preprocessor = (*LabelMask)(nil)
