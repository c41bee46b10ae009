package ocr

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelRegion(t *testing.T) {
	assert.Equal(t, image.Rect(0, 120, 400, 210), LabelRegion(1000, 300))
	assert.Equal(t, image.Rect(0, 400, 150, 800), LabelRegion(300, 1000))
	assert.Equal(t, image.Rect(0, 40, 50, 80), LabelRegion(100, 100))
}

// fakeTesseract writes a stand-in binary that always recognises output.
func fakeTesseract(t *testing.T, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	script := "#!/bin/sh\nprintf '" + output + "'\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

type copyPrep struct{ calls int }

func (p *copyPrep) Preprocess(ctx context.Context, src, dst string) error {
	p.calls++
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func TestTesseractExtractor(t *testing.T) {
	bin := fakeTesseract(t, "BLOCK A\\nL1 PLOT 7\\n")
	photo := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0o644))

	prep := &copyPrep{}
	text, err := NewTesseractExtractor(bin, prep, nil).ExtractText(context.Background(), photo)
	require.NoError(t, err)
	assert.Equal(t, "BLOCKAL1PLOT7", text)
	assert.Equal(t, 1, prep.calls)
}

func TestTesseractExtractorFailure(t *testing.T) {
	_, err := NewTesseractExtractor(filepath.Join(t.TempDir(), "missing"), nil, nil).
		ExtractText(context.Background(), "photo.jpg")
	assert.Error(t, err)
}
