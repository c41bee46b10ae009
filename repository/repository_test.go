package repository

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camden-git/sitephotosync/database"
	"github.com/camden-git/sitephotosync/media"
	"github.com/camden-git/sitephotosync/traversal"
)

func openTestGorm(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "photos.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestRecordUploadSkipsKnownFilenames(t *testing.T) {
	repo := NewUploadRepository(openTestGorm(t))

	width, height := 1600, 1200
	created, err := repo.RecordUpload("A_L1_Plot_7", "2.3/photos_on_asite", "IMG_0001.jpg", 2048,
		&media.Metadata{Width: &width, Height: &height})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.RecordUpload("A_L1_Plot_7", "2.3/photos_on_asite", "IMG_0001.jpg", 2048, nil)
	require.NoError(t, err)
	assert.False(t, created)

	created, err = repo.RecordUpload("A_L1_Plot_7", "2.3/photos_on_asite", "IMG_0002.jpg", 4096, nil)
	require.NoError(t, err)
	assert.True(t, created)
	_, err = repo.RecordUpload("B_L1_Plot_1", "2.3/photos_on_asite", "IMG_0003.jpg", 1, nil)
	require.NoError(t, err)

	uploads, err := repo.ListByCode("A_L1_Plot_7")
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "IMG_0001.jpg", uploads[0].Filename)
	require.NotNil(t, uploads[0].Width)
	assert.Equal(t, 1600, *uploads[0].Width)
	assert.Equal(t, int64(4096), uploads[1].FileSize)

	n, err := repo.CountByCode("A_L1_Plot_7")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recorded, err := repo.IsRecorded("IMG_0003.jpg")
	require.NoError(t, err)
	assert.True(t, recorded)
}

func TestRunRepositorySaveAndLoad(t *testing.T) {
	repo := NewRunRepository(openTestGorm(t))

	older := traversal.NewReport()
	older.StartedAt = time.Now().Add(-time.Hour)
	older.Add(traversal.Uploaded("A_L1_Plot_1", 2))
	require.NoError(t, repo.SaveReport(older, nil))

	report := traversal.NewReport()
	report.Rows = 12
	report.EndOfTable = true
	report.Add(traversal.Outcome{Code: "A_L1_Plot_2", Kind: traversal.OutcomeUploaded, Uploaded: 3, Row: 7})
	report.Add(traversal.Outcome{Code: "A_L1_Plot_3", Kind: traversal.OutcomeDispatchFailed, Reason: "form rejected", Row: 8})
	report.Add(traversal.Outcome{Code: "A_L1_Plot_1", Kind: traversal.OutcomeSkippedNoPhotos, Row: 6})
	report.FinishedAt = time.Now()
	require.NoError(t, repo.SaveReport(report, errors.New("session lost")))

	latest, err := repo.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, report.RunID, latest.ID)
	assert.Equal(t, 3, latest.Uploaded)
	assert.Equal(t, 12, latest.Rows)
	require.NotNil(t, latest.Error)
	assert.Equal(t, "session lost", *latest.Error)
	require.Len(t, latest.Outcomes, 3)
	assert.Equal(t, "A_L1_Plot_1", latest.Outcomes[0].Code)
	require.NotNil(t, latest.Outcomes[2].Reason)
	assert.Equal(t, "form rejected", *latest.Outcomes[2].Reason)

	// saving again replaces outcomes instead of duplicating them
	report.Add(traversal.DeferredOverQuota("B_L1_Plot_1"))
	require.NoError(t, repo.SaveReport(report, nil))
	run, err := repo.GetRun(report.RunID)
	require.NoError(t, err)
	assert.Len(t, run.Outcomes, 4)
	assert.Nil(t, run.Error)

	_, err = repo.GetRun("missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
