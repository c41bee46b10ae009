package models

import "time"

// Run is one traversal of the location table.
type Run struct {
	ID           string     `gorm:"primaryKey" json:"run_id"`
	StartedAt    time.Time  `gorm:"index;not null" json:"started_at"`
	FinishedAt   *time.Time `gorm:"" json:"finished_at,omitempty"`
	Rows         int        `gorm:"column:rows_read;not null;default:0" json:"rows"`
	ReadFailures int        `gorm:"not null;default:0" json:"read_failures"`
	EndOfTable   bool       `gorm:"not null;default:false" json:"end_of_table"`
	Uploaded     int        `gorm:"not null;default:0" json:"uploaded"`
	Error        *string    `gorm:"" json:"error,omitempty"`

	Outcomes []LocationOutcome `gorm:"foreignKey:RunID;references:ID" json:"outcomes,omitempty"`
}

func (Run) TableName() string {
	return "runs"
}

// LocationOutcome is the result reported for one location in a run.
type LocationOutcome struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	RunID     string    `gorm:"index;not null" json:"run_id"`
	Code      string    `gorm:"index;not null" json:"code"`
	Kind      string    `gorm:"not null" json:"kind"`
	Uploaded  int       `gorm:"not null;default:0" json:"uploaded"`
	Reason    *string   `gorm:"" json:"reason,omitempty"`
	Row       int       `gorm:"column:table_row" json:"row"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LocationOutcome) TableName() string {
	return "location_outcomes"
}
