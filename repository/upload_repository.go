package repository

import (
	"errors"
	"fmt"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/camden-git/sitephotosync/media"
	"github.com/camden-git/sitephotosync/models"
)

// UploadRepository handles database operations for PhotoUpload records
type UploadRepository struct {
	DB *gorm.DB
}

func NewUploadRepository(db *gorm.DB) *UploadRepository {
	return &UploadRepository{DB: db}
}

// RecordUpload stores a photo known to be on the remote site. Filenames
// already recorded are skipped; it returns true when a row was created.
func (r *UploadRepository) RecordUpload(code, subfolder, filename string, sizeBytes int64, meta *media.Metadata) (bool, error) {
	recorded, err := r.IsRecorded(filename)
	if err != nil {
		return false, err
	}
	if recorded {
		return false, nil
	}

	upload := models.PhotoUpload{
		BuildingCode: code,
		Subfolder:    filepath.ToSlash(subfolder),
		Filename:     filename,
		FileSize:     sizeBytes,
	}
	if meta != nil {
		upload.Width = meta.Width
		upload.Height = meta.Height
		upload.TakenAt = meta.TakenAt
	}

	if err := r.DB.Create(&upload).Error; err != nil {
		return false, fmt.Errorf("failed to record upload %s for %s: %w", filename, code, err)
	}
	return true, nil
}

// IsRecorded reports whether a photo with filename was recorded before.
func (r *UploadRepository) IsRecorded(filename string) (bool, error) {
	var existing models.PhotoUpload
	err := r.DB.Select("id").Where("filename = ?", filename).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up upload %s: %w", filename, err)
	}
	return true, nil
}

// ListByCode returns the records of a location in insertion order.
func (r *UploadRepository) ListByCode(code string) ([]models.PhotoUpload, error) {
	var uploads []models.PhotoUpload
	err := r.DB.Where("building_code = ?", code).Order("id ASC").Find(&uploads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads for %s: %w", code, err)
	}
	return uploads, nil
}

func (r *UploadRepository) CountByCode(code string) (int64, error) {
	var n int64
	if err := r.DB.Model(&models.PhotoUpload{}).Where("building_code = ?", code).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count uploads for %s: %w", code, err)
	}
	return n, nil
}

var _ UploadRepositoryInterface = (*UploadRepository)(nil)
