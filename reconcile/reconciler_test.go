package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/sitephotosync/media"
)

const base = media.Fingerprint(0xAAAA_5555_AAAA_5555)

func photo(name string, fp media.Fingerprint) *media.PhotoRecord {
	p := &media.PhotoRecord{Path: filepath.Join("/nonexistent", name), Filename: name}
	p.PrimeFingerprint(fp)
	return p
}

type fakeRemote struct {
	photos []*media.PhotoRecord
	err    error
	calls  int
}

func (f *fakeRemote) FetchRemote(ctx context.Context, code string) ([]*media.PhotoRecord, error) {
	f.calls++
	return f.photos, f.err
}

func names(list []*media.PhotoRecord) []string {
	out := []string{}
	for _, p := range list {
		out = append(out, p.Filename)
	}
	return out
}

func TestReconcileUnderCapacity(t *testing.T) {
	r1 := photo("remote1.jpg", base)
	r2 := photo("remote2.jpg", base^0xFFFF_0000)
	remote := &fakeRemote{photos: []*media.PhotoRecord{r1, r2}}

	a := photo("a.jpg", base^0b111)            // distance 3 from r1
	b := photo("b.jpg", base^0xFF)             // distance 8 from r1, far from r2
	c := photo("c.jpg", base^0b1)              // matches r1 first
	d := photo("d.jpg", base^0xFFFF_0000^0b11) // matches r2 only

	rec := New(media.NewDetector(5), 30, nil)
	plan, err := rec.Reconcile(context.Background(), "A_L1_Plot_7", []*media.PhotoRecord{a, b, c, d}, 12, remote)
	require.NoError(t, err)

	assert.Equal(t, 1, remote.calls)
	assert.False(t, plan.OverCapacity)
	assert.Equal(t, []string{"b.jpg"}, names(plan.ToUpload))
	assert.Equal(t, []string{"a.jpg", "c.jpg", "d.jpg"}, names(plan.ToDiscard))
	assert.Empty(t, plan.ToDefer)
	require.Len(t, plan.Matches, 3)
	assert.Same(t, r1, plan.Matches[1].Remote)
	assert.Same(t, r2, plan.Matches[2].Remote)
	assert.Equal(t, 4, plan.Total())
}

func TestReconcileAtCapacityDefersEverything(t *testing.T) {
	local := []*media.PhotoRecord{photo("a.jpg", base), photo("b.jpg", base^0xFF)}

	for _, remoteCount := range []int{30, 31, 100} {
		t.Run(fmt.Sprintf("remote=%d", remoteCount), func(t *testing.T) {
			remote := &fakeRemote{photos: []*media.PhotoRecord{photo("r.jpg", base)}}
			plan, err := New(media.NewDetector(5), DefaultCapacity, nil).
				Reconcile(context.Background(), "A_L1_Plot_7", local, remoteCount, remote)
			require.NoError(t, err)

			assert.True(t, plan.OverCapacity)
			assert.Empty(t, plan.ToUpload)
			assert.Empty(t, plan.ToDiscard)
			assert.Equal(t, local, plan.ToDefer)
			assert.Zero(t, remote.calls)
		})
	}
}

func TestReconcilePartitionIsExhaustive(t *testing.T) {
	remote := &fakeRemote{photos: []*media.PhotoRecord{photo("r1", base), photo("r2", ^base)}}
	rec := New(media.NewDetector(5), 30, nil)

	for n := 0; n < 12; n++ {
		var local []*media.PhotoRecord
		for i := 0; i < n; i++ {
			// spread fingerprints across near and far distances
			local = append(local, photo(fmt.Sprintf("p%02d.jpg", i), base^media.Fingerprint(uint64(1)<<uint(i*5)-1)))
		}
		for _, remoteCount := range []int{0, 29, 30} {
			plan, err := rec.Reconcile(context.Background(), "C_L3_Plot_26", local, remoteCount, remote)
			require.NoError(t, err)
			assert.Equal(t, len(local), plan.Total(), "n=%d remote=%d", n, remoteCount)

			seen := map[*media.PhotoRecord]int{}
			for _, list := range [][]*media.PhotoRecord{plan.ToUpload, plan.ToDiscard, plan.ToDefer} {
				for _, p := range list {
					seen[p]++
				}
			}
			for _, p := range local {
				assert.Equal(t, 1, seen[p], p.Filename)
			}
		}
	}
}

func TestReconcileKeepsInputOrder(t *testing.T) {
	var local []*media.PhotoRecord
	for i := 0; i < 5; i++ {
		local = append(local, photo(fmt.Sprintf("img%d.jpg", 5-i), base))
	}
	plan, err := New(media.NewDetector(5), 30, nil).Reconcile(context.Background(), "A_L1_Plot_1", local, 0, nil)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"img5.jpg", "img4.jpg", "img3.jpg", "img2.jpg", "img1.jpg"}, names(plan.ToUpload)); diff != "" {
		t.Errorf("upload order mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileUnreadablePhotos(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("nope"), 0o644))

	brokenLocal := &media.PhotoRecord{Path: corrupt, Filename: "corrupt.jpg"}
	brokenRemote := &media.PhotoRecord{Path: corrupt, Filename: "remote-corrupt.jpg"}
	good := photo("good.jpg", base)

	remote := &fakeRemote{photos: []*media.PhotoRecord{brokenRemote}}
	plan, err := New(media.NewDetector(5), 30, nil).
		Reconcile(context.Background(), "A_L1_Plot_1", []*media.PhotoRecord{brokenLocal, good}, 3, remote)
	require.NoError(t, err)

	assert.Equal(t, []string{"good.jpg"}, names(plan.ToUpload))
	assert.Equal(t, []string{"corrupt.jpg"}, names(plan.ToDefer))
	assert.False(t, plan.OverCapacity)
	require.NotEmpty(t, plan.ReadFailures)
	for _, err := range plan.ReadFailures {
		assert.True(t, errors.Is(err, media.ErrImageRead))
	}
}

func TestReconcileFetchError(t *testing.T) {
	remote := &fakeRemote{err: errors.New("download failed")}
	_, err := New(media.NewDetector(5), 30, nil).
		Reconcile(context.Background(), "A_L1_Plot_1", []*media.PhotoRecord{photo("a.jpg", base)}, 1, remote)
	assert.ErrorContains(t, err, "download failed")
}

func TestReconcileSkipsFetchWithoutLocalPhotos(t *testing.T) {
	remote := &fakeRemote{}
	plan, err := New(media.NewDetector(5), 30, nil).Reconcile(context.Background(), "A_L1_Plot_1", nil, 1, remote)
	require.NoError(t, err)
	assert.Zero(t, plan.Total())
	assert.Zero(t, remote.calls)
}

func TestNewDefaultsCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(media.NewDetector(5), 0, nil).Capacity())
	assert.Equal(t, 12, New(media.NewDetector(5), 12, nil).Capacity())
}
