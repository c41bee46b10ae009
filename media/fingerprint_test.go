package media

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFingerprintGradients(t *testing.T) {
	rising := ComputeFingerprint(gradient(90, 80, true))
	falling := ComputeFingerprint(gradient(90, 80, false))

	assert.Equal(t, Fingerprint(^uint64(0)), rising)
	assert.Equal(t, Fingerprint(0), falling)
	assert.Equal(t, 64, Distance(rising, falling))
}

func TestFingerprintSurvivesResize(t *testing.T) {
	dir := t.TempDir()
	big := record(t, writeImage(t, dir, "big.jpg", gradient(400, 300, true)))
	small := record(t, writeImage(t, dir, "small.png", gradient(90, 60, true)))

	dup, err := NewDetector(DefaultDuplicateThreshold).AreDuplicates(big, small)
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestAreDuplicatesIsReflexive(t *testing.T) {
	dir := t.TempDir()
	x := record(t, writeImage(t, dir, "x.png", gradient(64, 64, false)))

	for _, threshold := range []int{0, 1, 5, 64} {
		dup, err := Detector{Threshold: threshold}.AreDuplicates(x, x)
		require.NoError(t, err)
		assert.True(t, dup, "threshold %d", threshold)
	}
}

func TestDetectorThreshold(t *testing.T) {
	d := NewDetector(DefaultDuplicateThreshold)
	base := Fingerprint(0xF0F0F0F0F0F0F0F0)

	near := &PhotoRecord{Filename: "near"}
	near.PrimeFingerprint(base ^ 0b111) // distance 3
	far := &PhotoRecord{Filename: "far"}
	far.PrimeFingerprint(base ^ 0xFF) // distance 8
	orig := &PhotoRecord{Filename: "orig"}
	orig.PrimeFingerprint(base)

	dup, err := d.AreDuplicates(orig, near)
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = d.AreDuplicates(orig, far)
	require.NoError(t, err)
	assert.False(t, dup)

	assert.True(t, d.Within(base, base^0b11111))
	assert.False(t, d.Within(base, base^0b111111))
}

func TestNewDetectorDefaultsNegativeThreshold(t *testing.T) {
	assert.Equal(t, DefaultDuplicateThreshold, NewDetector(-1).Threshold)
	assert.Equal(t, 0, NewDetector(0).Threshold)
}

func TestFirstMatchSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	p := record(t, writeImage(t, dir, "p.png", gradient(50, 50, true)))
	broken := record(t, writeFile(t, dir, "broken.jpg", "not an image"))
	other := record(t, writeImage(t, dir, "other.png", gradient(50, 50, false)))
	same := record(t, writeImage(t, dir, "same.png", gradient(70, 70, true)))

	idx, failures, err := NewDetector(5).FirstMatch(p, []*PhotoRecord{broken, other, same})
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	require.Len(t, failures, 1)
	assert.True(t, errors.Is(failures[0], ErrImageRead))
}

func TestFingerprintFileCorrupt(t *testing.T) {
	path := writeFile(t, t.TempDir(), "corrupt.jpg", "garbage")

	_, err := FingerprintFile(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImageRead))

	var readErr *ImageReadError
	require.True(t, errors.As(err, &readErr))
	assert.Equal(t, path, readErr.Path)

	rec := record(t, path)
	_, err = rec.Fingerprint()
	assert.Error(t, err)
	_, err = NewDetector(5).AreDuplicates(rec, rec)
	assert.Error(t, err)
}

func TestFingerprintStringRoundTrip(t *testing.T) {
	fp := Fingerprint(0x0123456789abcdef)
	parsed, err := ParseFingerprint(fp.String())
	require.NoError(t, err)
	assert.Equal(t, fp, parsed)

	_, err = ParseFingerprint("zz")
	assert.Error(t, err)
}

func TestExactDigest(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png", gradient(32, 32, true))
	b := writeImage(t, filepath.Join(dir, "copy"), "a.png", gradient(32, 32, true))
	c := writeImage(t, dir, "c.png", gradient(32, 32, false))

	da, err := ExactDigest(a, 0)
	require.NoError(t, err)
	db, err := ExactDigest(b, 0)
	require.NoError(t, err)
	dc, err := ExactDigest(c, 0)
	require.NoError(t, err)

	assert.Equal(t, da, db)
	assert.NotEqual(t, da, dc)
	assert.Len(t, da, 64)

	_, err = ExactDigest(writeFile(t, dir, "bad.jpg", "x"), 0)
	assert.True(t, errors.Is(err, ErrImageRead))
}
