package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// InitDB opens the sqlite database holding the traversal checkpoint.
func InitDB(dataSourceName string, logger *zap.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable write-ahead logging so the status API can read during a run
	_, err = db.Exec("PRAGMA journal_mode=WAL;")
	if err != nil {
		logger.Warn("failed to set WAL mode", zap.Error(err))
	}

	sqlStmt := `
	CREATE TABLE IF NOT EXISTS traversal_checkpoints (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		run_id TEXT NOT NULL,
		block TEXT NOT NULL,
		level INTEGER NOT NULL,
		plot INTEGER NOT NULL,
		last_code TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err = db.Exec(sqlStmt)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create traversal_checkpoints table: %w", err)
	}

	logger.Info("database initialized successfully", zap.String("dsn", dataSourceName))
	return db, nil
}
