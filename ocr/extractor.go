// Package ocr reads the painted location label off inspection photos.
package ocr

import (
	"context"
	"image"
)

// Extractor returns the raw text found on a photo. No text is an empty
// string, not an error.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) (string, error)

func (f ExtractorFunc) ExtractText(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Preprocessor turns a photo into an image the OCR engine reads well and
// writes it to dst.
type Preprocessor interface {
	Preprocess(ctx context.Context, src, dst string) error
}

// LabelRegion returns the part of a width x height photo that carries the
// label. Labels are painted on the left, a little below the middle.
func LabelRegion(width, height int) image.Rectangle {
	if width > height {
		return image.Rect(0, height*4/10, width*4/10, height*7/10)
	}
	return image.Rect(0, height*4/10, width*5/10, height*8/10)
}
