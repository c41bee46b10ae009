package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// TesseractExtractor runs the tesseract command line tool, optionally on a
// preprocessed copy of the photo.
type TesseractExtractor struct {
	Bin  string
	Args []string
	Prep Preprocessor
	log  *zap.Logger
}

// DefaultTesseractArgs treat the label as a single uniform block of text.
var DefaultTesseractArgs = []string{"--psm", "6", "-l", "eng"}

func NewTesseractExtractor(bin string, prep Preprocessor, logger *zap.Logger) *TesseractExtractor {
	if bin == "" {
		bin = "tesseract"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TesseractExtractor{Bin: bin, Args: DefaultTesseractArgs, Prep: prep, log: logger.Named("ocr")}
}

func (t *TesseractExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	src := path
	if t.Prep != nil {
		dir, err := os.MkdirTemp("", "ocr-*")
		if err != nil {
			return "", fmt.Errorf("failed to create OCR work directory: %w", err)
		}
		defer os.RemoveAll(dir)

		src = filepath.Join(dir, "label.png")
		if err := t.Prep.Preprocess(ctx, path, src); err != nil {
			return "", fmt.Errorf("failed to preprocess %s: %w", path, err)
		}
	}

	args := append([]string{src, "stdout"}, t.Args...)
	cmd := exec.CommandContext(ctx, t.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract failed on %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	// detections are concatenated; the normalizer drops the separators anyway
	text := strings.Join(strings.Fields(string(out)), "")
	t.log.Debug("extracted text", zap.String("path", path), zap.String("text", text))
	return text, nil
}
