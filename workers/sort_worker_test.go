package workers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/camden-git/sitephotosync/location"
	"github.com/camden-git/sitephotosync/ocr"
	"github.com/camden-git/sitephotosync/realtime"
	"github.com/camden-git/sitephotosync/traversal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testNormalizer(t *testing.T) *location.Normalizer {
	t.Helper()
	tables, err := location.NewTables(
		map[string]map[string][]string{"A": {"1": {"7"}}, "B": {"2": {"5"}}},
		map[string]string{"W0203": "A_L1_Plot_7"},
	)
	require.NoError(t, err)
	return location.NewNormalizer(tables, nil)
}

// labels maps a photo's base name to the text the fake extractor returns.
// Names missing from the map fail extraction.
func fakeExtractor(labels map[string]string) ocr.Extractor {
	return ocr.ExtractorFunc(func(ctx context.Context, path string) (string, error) {
		text, ok := labels[filepath.Base(path)]
		if !ok {
			return "", errors.New("tesseract exited with status 1")
		}
		return text, nil
	})
}

func writePhotos(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("photo "+name), 0o644))
	}
}

func TestSortDirectory(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "pics")
	sorted := filepath.Join(root, "sorted")
	writePhotos(t, inbox, "1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg", "notes.txt")

	labels := map[string]string{
		"1.jpg": "Block A L1 Plot 7",
		"2.jpg": "AL1PLOTW0203",
		"3.jpg": "BL2P5",
		"4.jpg": "",
	}
	sp := NewSortProcessor(fakeExtractor(labels), testNormalizer(t), sorted, 2, 3, nil)
	defer sp.Stop()

	stats, err := sp.SortDirectory(context.Background(), inbox)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"A_L1_Plot_7": 2, "B_L2_Plot_5": 1}, stats.Sorted)
	assert.Equal(t, 1, stats.Unsorted)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 5, stats.Total())

	assert.FileExists(t, filepath.Join(sorted, "A_L1_Plot_7", "1.jpg"))
	assert.FileExists(t, filepath.Join(sorted, "A_L1_Plot_7", "2.jpg"))
	assert.FileExists(t, filepath.Join(sorted, "B_L2_Plot_5", "3.jpg"))
	assert.FileExists(t, filepath.Join(sorted, location.UnsortedFolder, "4.jpg"))
	assert.FileExists(t, filepath.Join(inbox, "5.jpg"), "failed extraction stays in the inbox")
	assert.FileExists(t, filepath.Join(inbox, "notes.txt"))

	require.Len(t, stats.Unclassified, 1)
	out := stats.Unclassified[0]
	assert.Equal(t, traversal.OutcomeClassificationFailed, out.Kind)
	assert.Equal(t, location.UnsortedFolder, out.Code)
	assert.True(t, strings.HasPrefix(out.Reason, "4.jpg: "), out.Reason)
}

func TestTakeStatsResets(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "pics")
	writePhotos(t, inbox, "1.jpg")

	sp := NewSortProcessor(fakeExtractor(map[string]string{"1.jpg": "AL17"}), testNormalizer(t), filepath.Join(root, "sorted"), 0, 0, nil)
	defer sp.Stop()

	stats, err := sp.SortDirectory(context.Background(), inbox)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total())

	assert.Equal(t, 0, sp.TakeStats().Total())
}

func TestSortDirectoryMissingInbox(t *testing.T) {
	sp := NewSortProcessor(fakeExtractor(nil), testNormalizer(t), t.TempDir(), 1, 1, nil)
	defer sp.Stop()

	stats, err := sp.SortDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total())
}

func TestQueueJobSkipsPending(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	extractor := ocr.ExtractorFunc(func(ctx context.Context, path string) (string, error) {
		started <- struct{}{}
		<-release
		return "", nil
	})

	root := t.TempDir()
	writePhotos(t, root, "1.jpg")
	path := filepath.Join(root, "1.jpg")

	sp := NewSortProcessor(extractor, testNormalizer(t), filepath.Join(root, "sorted"), 1, 1, nil)
	defer sp.Stop()

	require.True(t, sp.QueueJob(SortJob{Path: path}))
	<-started
	assert.False(t, sp.QueueJob(SortJob{Path: path}), "photo is still being processed")

	close(release)
	sp.Flush()
	assert.Equal(t, 1, sp.TakeStats().Unsorted)
	assert.FileExists(t, filepath.Join(root, "sorted", location.UnsortedFolder, "1.jpg"))
}

func TestStopIsIdempotent(t *testing.T) {
	sp := NewSortProcessor(fakeExtractor(nil), testNormalizer(t), t.TempDir(), 1, 2, nil)
	sp.Stop()
	sp.Stop()

	err := sp.Submit(context.Background(), SortJob{Path: "x.jpg"})
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, sp.QueueJob(SortJob{Path: "y.jpg"}))
}

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Broadcast(event realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestSortDirectoryNotifies(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "pics")
	writePhotos(t, inbox, "1.jpg", "2.jpg", "3.jpg")

	labels := map[string]string{"1.jpg": "AL1P7", "2.jpg": "nothing here"}
	sp := NewSortProcessor(fakeExtractor(labels), testNormalizer(t), filepath.Join(root, "sorted"), 1, 1, nil)
	defer sp.Stop()
	rec := &recorder{}
	sp.SetNotifier(rec)

	_, err := sp.SortDirectory(context.Background(), inbox)
	require.NoError(t, err)

	byPath := make(map[string]realtime.Event)
	for _, e := range rec.events {
		assert.Equal(t, realtime.EventSort, e.Type)
		byPath[e.Path] = e
	}
	require.Len(t, byPath, 3)
	assert.Equal(t, realtime.StatusSorted, byPath["1.jpg"].Status)
	assert.Equal(t, "A_L1_Plot_7", byPath["1.jpg"].Code)
	assert.Equal(t, realtime.StatusUnsorted, byPath["2.jpg"].Status)
	assert.NotEmpty(t, byPath["2.jpg"].Error)
	assert.Equal(t, realtime.StatusFailed, byPath["3.jpg"].Status)
}
