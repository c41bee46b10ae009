package media

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"github.com/disintegration/imaging"
)

// Fingerprint is a 64-bit gradient-difference hash (dHash). Bit i is set
// when pixel i+1 of its row is brighter than pixel i on a 9x8 grayscale
// thumbnail, rows top to bottom.
type Fingerprint uint64

const (
	hashWidth  = 8
	hashHeight = 8
)

var ErrImageRead = errors.New("image read failure")

// ImageReadError is returned for files that cannot be decoded as images.
type ImageReadError struct {
	Path string
	Err  error
}

func (e *ImageReadError) Error() string {
	return fmt.Sprintf("failed to read image %s: %v", e.Path, e.Err)
}

func (e *ImageReadError) Unwrap() []error { return []error{ErrImageRead, e.Err} }

// ComputeFingerprint hashes an already decoded image.
func ComputeFingerprint(img image.Image) Fingerprint {
	small := imaging.Resize(imaging.Grayscale(img), hashWidth+1, hashHeight, imaging.Lanczos)

	var fp Fingerprint
	bit := uint(0)
	for y := 0; y < hashHeight; y++ {
		row := small.Pix[y*small.Stride:]
		for x := 0; x < hashWidth; x++ {
			left := row[x*4]
			right := row[(x+1)*4]
			if right > left {
				fp |= 1 << bit
			}
			bit++
		}
	}
	return fp
}

// FingerprintFile decodes path (honouring EXIF orientation) and hashes it.
func FingerprintFile(path string) (Fingerprint, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return 0, &ImageReadError{Path: path, Err: err}
	}
	return ComputeFingerprint(img), nil
}

// Distance is the Hamming distance between two fingerprints.
func Distance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a ^ b))
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// ParseFingerprint reads the hex form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}
