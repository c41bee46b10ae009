package repository

import (
	"github.com/camden-git/sitephotosync/media"
	"github.com/camden-git/sitephotosync/models"
	"github.com/camden-git/sitephotosync/traversal"
)

// UploadRepositoryInterface defines the methods for upload record operations
type UploadRepositoryInterface interface {
	RecordUpload(code, subfolder, filename string, sizeBytes int64, meta *media.Metadata) (bool, error)
	IsRecorded(filename string) (bool, error)
	ListByCode(code string) ([]models.PhotoUpload, error)
	CountByCode(code string) (int64, error)
}

// RunRepositoryInterface defines the methods for run report operations
type RunRepositoryInterface interface {
	SaveReport(report *traversal.Report, runErr error) error
	GetRun(runID string) (*models.Run, error)
	LatestRun() (*models.Run, error)
}
