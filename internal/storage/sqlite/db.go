package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL DEFAULT '',
		channel_id       TEXT NOT NULL DEFAULT '',
		file_name        TEXT DEFAULT '',
		column_name      TEXT DEFAULT '',
		row_count        INTEGER NOT NULL DEFAULT 0,
		sample_size      INTEGER NOT NULL DEFAULT 0,
		bug_reports      INTEGER NOT NULL DEFAULT 0,
		feature_requests INTEGER NOT NULL DEFAULT 0,
		general_feedback INTEGER NOT NULL DEFAULT 0,
		bug_themes       INTEGER NOT NULL DEFAULT 0,
		feature_themes   INTEGER NOT NULL DEFAULT 0,
		llm_provider     TEXT DEFAULT '',
		llm_model        TEXT DEFAULT '',
		input_tokens     INTEGER NOT NULL DEFAULT 0,
		output_tokens    INTEGER NOT NULL DEFAULT 0,
		status           TEXT NOT NULL,
		failed_stage     TEXT DEFAULT '',
		error            TEXT DEFAULT '',
		started_at       DATETIME NOT NULL,
		finished_at      DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON analysis_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_user ON analysis_runs(user_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}
