package media

import (
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
)

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// photoExtensions are the camera formats accepted from the messaging channel.
var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// IsPhoto checks if the filename is a JPEG photo.
func IsPhoto(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return photoExtensions[ext]
}

// ListImages returns the raster images directly inside dir in natural order.
// A missing directory yields no images and no error.
func ListImages(dir string) ([]string, error) {
	return listFiles(dir, IsRasterImage)
}

// ListPhotos is ListImages restricted to JPEG photos.
func ListPhotos(dir string) ([]string, error) {
	return listFiles(dir, IsPhoto)
}

func listFiles(dir string, keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !keep(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	natsort.Sort(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}
