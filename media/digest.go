package media

import (
	"crypto/sha256"
	"encoding/hex"
	"image"

	"github.com/disintegration/imaging"
)

// ExactDigest hashes the RGB pixel data of path with sha256. When size is
// positive the image is first resized to size x size, so that two copies
// that differ only in resolution collide. Alpha is dropped.
//
// Digests are only comparable between local copies; the remote service
// re-encodes uploads.
func ExactDigest(path string, size int) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", &ImageReadError{Path: path, Err: err}
	}
	return PixelDigest(img, size), nil
}

// PixelDigest is ExactDigest for an already decoded image.
func PixelDigest(img image.Image, size int) string {
	if size > 0 {
		img = imaging.Resize(img, size, size, imaging.Lanczos)
	}
	nrgba := imaging.Clone(img)

	h := sha256.New()
	b := nrgba.Bounds()
	rgb := make([]byte, 0, b.Dx()*3)
	for y := 0; y < b.Dy(); y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+b.Dx()*4]
		rgb = rgb[:0]
		for x := 0; x < len(row); x += 4 {
			rgb = append(rgb, row[x], row[x+1], row[x+2])
		}
		h.Write(rgb)
	}
	return hex.EncodeToString(h.Sum(nil))
}
