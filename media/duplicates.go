package media

import "fmt"

// DefaultDuplicateThreshold is the largest Hamming distance at which two
// photos are still the same shot.
const DefaultDuplicateThreshold = 5

// Detector decides perceptual duplicates with a fixed distance threshold.
type Detector struct {
	Threshold int
}

func NewDetector(threshold int) Detector {
	if threshold < 0 {
		threshold = DefaultDuplicateThreshold
	}
	return Detector{Threshold: threshold}
}

// Within reports whether two fingerprints are at most Threshold bits apart.
func (d Detector) Within(a, b Fingerprint) bool {
	return Distance(a, b) <= d.Threshold
}

// AreDuplicates compares two photos by fingerprint. An unreadable photo
// yields an *ImageReadError naming that photo.
func (d Detector) AreDuplicates(a, b *PhotoRecord) (bool, error) {
	fa, err := a.Fingerprint()
	if err != nil {
		return false, err
	}
	if a == b {
		return true, nil
	}
	fb, err := b.Fingerprint()
	if err != nil {
		return false, err
	}
	return d.Within(fa, fb), nil
}

// FirstMatch returns the index of the first candidate that duplicates p, or
// -1. Unreadable candidates are skipped and returned as failures.
func (d Detector) FirstMatch(p *PhotoRecord, candidates []*PhotoRecord) (int, []error, error) {
	fp, err := p.Fingerprint()
	if err != nil {
		return -1, nil, err
	}
	var failures []error
	for i, c := range candidates {
		fc, err := c.Fingerprint()
		if err != nil {
			failures = append(failures, err)
			continue
		}
		if d.Within(fp, fc) {
			return i, failures, nil
		}
	}
	return -1, failures, nil
}

func (d Detector) String() string {
	return fmt.Sprintf("dhash<=%d", d.Threshold)
}
