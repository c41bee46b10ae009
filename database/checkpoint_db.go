package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/sitephotosync/location"
	"github.com/camden-git/sitephotosync/traversal"
)

// checkpointID is the single row of traversal_checkpoints.
const checkpointID = 1

// GetCheckpoint loads the persisted resume point. It returns sql.ErrNoRows
// when none is saved.
func GetCheckpoint(ctx context.Context, db *sql.DB) (traversal.SavedCheckpoint, error) {
	queryBuilder := psql.Select("run_id", "last_code", "updated_at").
		From("traversal_checkpoints").
		Where(sq.Eq{"id": checkpointID}).
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return traversal.SavedCheckpoint{}, fmt.Errorf("failed to build SQL query for GetCheckpoint: %w", err)
	}

	var runID, lastCode string
	var updatedAt int64
	err = db.QueryRowContext(ctx, sqlStr, args...).Scan(&runID, &lastCode, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return traversal.SavedCheckpoint{}, sql.ErrNoRows
		}
		return traversal.SavedCheckpoint{}, fmt.Errorf("failed to query checkpoint: %w", err)
	}

	code, err := location.ParseCode(lastCode)
	if err != nil {
		return traversal.SavedCheckpoint{}, fmt.Errorf("stored checkpoint is corrupt: %w", err)
	}
	return traversal.SavedCheckpoint{RunID: runID, LastCode: code, SavedAt: time.Unix(updatedAt, 0)}, nil
}

// SetCheckpoint inserts or replaces the resume point.
func SetCheckpoint(ctx context.Context, db *sql.DB, cp traversal.SavedCheckpoint) error {
	if cp.LastCode.IsZero() {
		return errors.New("checkpoint has no location")
	}
	savedAt := cp.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	queryBuilder := psql.Insert("traversal_checkpoints").
		Columns("id", "run_id", "block", "level", "plot", "last_code", "updated_at").
		Values(checkpointID, cp.RunID, cp.LastCode.Block(), cp.LastCode.Level(), cp.LastCode.Plot(), cp.LastCode.String(), savedAt.Unix()).
		Suffix("ON CONFLICT(id) DO UPDATE SET").
		Suffix("run_id = excluded.run_id, block = excluded.block, level = excluded.level,").
		Suffix("plot = excluded.plot, last_code = excluded.last_code, updated_at = excluded.updated_at")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetCheckpoint: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", cp.LastCode, err)
	}
	return nil
}

func DeleteCheckpoint(ctx context.Context, db *sql.DB) error {
	sqlStr, args, err := psql.Delete("traversal_checkpoints").Where(sq.Eq{"id": checkpointID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for DeleteCheckpoint: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

// CheckpointStore implements traversal.CheckpointStore on top of sqlite.
type CheckpointStore struct {
	DB *sql.DB
}

func NewCheckpointStore(db *sql.DB) *CheckpointStore {
	return &CheckpointStore{DB: db}
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp traversal.SavedCheckpoint) error {
	return SetCheckpoint(ctx, s.DB, cp)
}

func (s *CheckpointStore) LoadCheckpoint(ctx context.Context) (traversal.SavedCheckpoint, bool, error) {
	cp, err := GetCheckpoint(ctx, s.DB)
	if errors.Is(err, sql.ErrNoRows) {
		return traversal.SavedCheckpoint{}, false, nil
	}
	if err != nil {
		return traversal.SavedCheckpoint{}, false, err
	}
	return cp, true, nil
}

func (s *CheckpointStore) ClearCheckpoint(ctx context.Context) error {
	return DeleteCheckpoint(ctx, s.DB)
}

var _ traversal.CheckpointStore = (*CheckpointStore)(nil)
