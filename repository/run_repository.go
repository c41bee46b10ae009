package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/sitephotosync/models"
	"github.com/camden-git/sitephotosync/traversal"
)

// RunRepository stores traversal reports
type RunRepository struct {
	DB *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{DB: db}
}

// SaveReport writes a run and its outcomes in one transaction. Saving the
// same run twice replaces its outcomes. runErr is the error the run ended
// with, if any.
func (r *RunRepository) SaveReport(report *traversal.Report, runErr error) error {
	if report == nil {
		return errors.New("nil report")
	}

	run := models.Run{
		ID:           report.RunID,
		StartedAt:    report.StartedAt,
		Rows:         report.Rows,
		ReadFailures: report.ReadFailures,
		EndOfTable:   report.EndOfTable,
		Uploaded:     report.TotalUploaded(),
	}
	if !report.FinishedAt.IsZero() {
		finished := report.FinishedAt
		run.FinishedAt = &finished
	}
	if runErr != nil {
		s := runErr.Error()
		run.Error = &s
	}

	outcomes := make([]models.LocationOutcome, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		lo := models.LocationOutcome{
			RunID:    report.RunID,
			Code:     o.Code,
			Kind:     string(o.Kind),
			Uploaded: o.Uploaded,
			Row:      o.Row,
		}
		if o.Reason != "" {
			reason := o.Reason
			lo.Reason = &reason
		}
		outcomes = append(outcomes, lo)
	}

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Omit("Outcomes").Create(&run).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", run.ID).Delete(&models.LocationOutcome{}).Error; err != nil {
			return err
		}
		if len(outcomes) == 0 {
			return nil
		}
		return tx.CreateInBatches(outcomes, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save report for run %s: %w", report.RunID, err)
	}
	return nil
}

// GetRun loads a run with its outcomes in table order.
func (r *RunRepository) GetRun(runID string) (*models.Run, error) {
	var run models.Run
	err := r.DB.Preload("Outcomes", func(db *gorm.DB) *gorm.DB {
		return db.Order("table_row ASC, id ASC")
	}).Where("id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &run, nil
}

// LatestRun returns the most recently started run.
func (r *RunRepository) LatestRun() (*models.Run, error) {
	var run models.Run
	err := r.DB.Order("started_at DESC").First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return r.GetRun(run.ID)
}

var _ RunRepositoryInterface = (*RunRepository)(nil)
