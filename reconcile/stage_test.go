package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/sitephotosync/media"
)

const stageCode = "B_L2_Plot_5"

func stagedArchive(t *testing.T, names ...string) (*media.Archive, *media.Bucket, string) {
	t.Helper()
	root := t.TempDir()
	archive, err := media.NewArchive(filepath.Join(root, "archive"), media.DefaultLayout(),
		filepath.Join(root, "quarantine"), filepath.Join(root, "download"), nil)
	require.NoError(t, err)

	dir, err := archive.EnsureDir(stageCode, media.RoleNew)
	require.NoError(t, err)
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	bucket, err := archive.CollectBuckets()
	require.NoError(t, err)
	return archive, bucket, root
}

func TestStagerQuarantinesDiscards(t *testing.T) {
	archive, bucket, root := stagedArchive(t, "a.jpg", "b.jpg", "c.jpg")
	photos := bucket.Photos(stageCode)
	require.Len(t, photos, 3)

	plan := Plan{Code: stageCode, ToUpload: photos[:1], ToDiscard: photos[1:]}
	res, err := NewStager(archive, nil).Apply(bucket, plan)
	require.NoError(t, err)

	assert.Equal(t, StageResult{Quarantined: 2}, res)
	assert.FileExists(t, filepath.Join(root, "quarantine", "b.jpg"))
	assert.FileExists(t, filepath.Join(root, "quarantine", "c.jpg"))
	assert.Equal(t, []*media.PhotoRecord{photos[0]}, bucket.Photos(stageCode))
}

func TestStagerDefersOverCapacity(t *testing.T) {
	archive, bucket, _ := stagedArchive(t, "a.jpg", "b.jpg")
	photos := bucket.Photos(stageCode)

	plan := Plan{Code: stageCode, OverCapacity: true, ToDefer: photos}
	res, err := NewStager(archive, nil).Apply(bucket, plan)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Deferred)
	assert.False(t, bucket.Has(stageCode))

	deferred, err := archive.Dir(stageCode, media.RoleDeferred)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(deferred, "a.jpg"))
	assert.FileExists(t, filepath.Join(deferred, "b.jpg"))
}

func TestStagerHoldsUnreadableUnderCapacity(t *testing.T) {
	archive, bucket, _ := stagedArchive(t, "a.jpg")
	photos := bucket.Photos(stageCode)

	plan := Plan{Code: stageCode, ToDefer: photos}
	res, err := NewStager(archive, nil).Apply(bucket, plan)
	require.NoError(t, err)

	assert.Equal(t, StageResult{Held: 1}, res)
	assert.False(t, bucket.Has(stageCode))
	assert.FileExists(t, photos[0].Path)
}
