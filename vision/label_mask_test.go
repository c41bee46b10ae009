package vision

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestLabelMaskWritesMask(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 300, 400, gocv.MatTypeCV8UC3)
	defer img.Close()
	// orange paint, BGR
	gocv.Rectangle(&img, image.Rect(10, 130, 100, 190), color.RGBA{R: 255, G: 170, B: 0, A: 255}, -1)
	require.True(t, gocv.IMWrite(src, img))

	dst := filepath.Join(dir, "label.png")
	require.NoError(t, NewLabelMask().Preprocess(context.Background(), src, dst))

	out := gocv.IMRead(dst, gocv.IMReadGrayScale)
	defer out.Close()
	require.False(t, out.Empty())
	assert.Equal(t, 160, out.Cols())
	assert.Equal(t, 90, out.Rows())
}

func TestLabelMaskMissingFile(t *testing.T) {
	err := NewLabelMask().Preprocess(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), "out.png")
	assert.Error(t, err)
}
