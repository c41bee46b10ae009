package media

import (
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimSpace(strings.TrimRight(val, "\x00"))
	if val == "" {
		return nil
	}
	return &val
}

// ReadMetadata extracts dimensions and capture details. Missing EXIF is not
// an error; only an unreadable file is.
func ReadMetadata(filePath string) (*Metadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	meta := &Metadata{}
	if config, _, err := image.DecodeConfig(file); err == nil {
		w, h := config.Width, config.Height
		meta.Width = &w
		meta.Height = &h
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("metadata: failed to seek file %s: %w", filePath, err)
	}

	exifData, err := exif.Decode(file)
	if err != nil {
		// messaging apps strip EXIF routinely
		return meta, nil
	}

	meta.CameraMake = getString(exifData, exif.Make)
	meta.CameraModel = getString(exifData, exif.Model)
	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}
	return meta, nil
}
