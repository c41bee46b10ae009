package models

import "time"

// PhotoUpload records one photo known to be on the remote site, either
// uploaded by a run or downloaded from the site for comparison. It
// corresponds to the 'photos' table.
type PhotoUpload struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	BuildingCode string `gorm:"index;not null" json:"building_code"` // location code, e.g. A_L1_Plot_7
	Subfolder    string `gorm:"not null" json:"subfolder"`
	Filename     string `gorm:"index;not null" json:"filename"`
	FileSize     int64  `gorm:"not null" json:"file_size"`

	Width   *int   `gorm:"" json:"width,omitempty"`    // Nullable
	Height  *int   `gorm:"" json:"height,omitempty"`   // Nullable
	TakenAt *int64 `gorm:"" json:"taken_at,omitempty"` // Nullable, Unix timestamp

	DateAdded time.Time `gorm:"autoCreateTime" json:"date_added"`
}

// TableName explicitly sets the table name for GORM.
func (PhotoUpload) TableName() string {
	return "photos"
}
