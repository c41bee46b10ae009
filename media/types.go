package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// PhotoRecord is one photo file owned by a location bucket. The fingerprint
// is computed on first use and cached.
type PhotoRecord struct {
	Path      string
	Filename  string
	SizeBytes int64

	fpOnce sync.Once
	fp     Fingerprint
	fpErr  error
}

// NewPhotoRecord stats path and builds a record for it.
func NewPhotoRecord(path string) (*PhotoRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat photo %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("photo path %s is a directory", path)
	}
	return &PhotoRecord{
		Path:      path,
		Filename:  filepath.Base(path),
		SizeBytes: info.Size(),
	}, nil
}

// Fingerprint returns the cached perceptual fingerprint, computing it once.
// A failure is cached too: an unreadable file stays unreadable for the run.
func (p *PhotoRecord) Fingerprint() (Fingerprint, error) {
	p.fpOnce.Do(func() {
		p.fp, p.fpErr = FingerprintFile(p.Path)
	})
	return p.fp, p.fpErr
}

// PrimeFingerprint sets the cached fingerprint when it is already known. It is
// a no-op once the fingerprint has been computed.
func (p *PhotoRecord) PrimeFingerprint(fp Fingerprint) {
	p.fpOnce.Do(func() {
		p.fp = fp
	})
}

// relocated points the record at its new path after a move.
func (p *PhotoRecord) relocated(path string) {
	p.Path = path
	p.Filename = filepath.Base(path)
}

// Metadata contains EXIF and dimension information recorded with uploads.
type Metadata struct {
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"`
}
