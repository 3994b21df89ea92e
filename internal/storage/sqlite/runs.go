package sqlite

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"feedbackbot/internal/domain"
)

const runColumns = `id, user_id, channel_id, file_name, column_name, row_count, sample_size,
	bug_reports, feature_requests, general_feedback, bug_themes, feature_themes,
	llm_provider, llm_model, input_tokens, output_tokens, status, failed_stage, error,
	started_at, finished_at`

// InsertRun stores rec and returns its id. A missing id is generated.
func InsertRun(db *sql.DB, rec domain.RunRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := db.Exec(
		`INSERT INTO analysis_runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.ChannelID, rec.FileName, rec.ColumnName, rec.RowCount, rec.SampleSize,
		rec.BugReports, rec.FeatureRequests, rec.GeneralFeedback, rec.BugThemes, rec.FeatureThemes,
		rec.Provider, rec.Model, rec.InputTokens, rec.OutputTokens, rec.Status, rec.FailedStage, rec.Error,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func GetRecentRuns(db *sql.DB, limit int) ([]domain.RunRecord, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := db.Query(
		`SELECT `+runColumns+` FROM analysis_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var r domain.RunRecord
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.ChannelID, &r.FileName, &r.ColumnName, &r.RowCount, &r.SampleSize,
			&r.BugReports, &r.FeatureRequests, &r.GeneralFeedback, &r.BugThemes, &r.FeatureThemes,
			&r.Provider, &r.Model, &r.InputTokens, &r.OutputTokens, &r.Status, &r.FailedStage, &r.Error,
			&r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type RunStats struct {
	TotalRuns       int
	FailedRuns      int
	ItemsAnalyzed   int
	BugReports      int
	FeatureRequests int
	GeneralFeedback int
	InputTokens     int64
	OutputTokens    int64
}

func GetRunStats(db *sql.DB, since time.Time) (RunStats, error) {
	var s RunStats
	err := db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(sample_size), 0),
		        COALESCE(SUM(bug_reports), 0),
		        COALESCE(SUM(feature_requests), 0),
		        COALESCE(SUM(general_feedback), 0),
		        COALESCE(SUM(input_tokens), 0),
		        COALESCE(SUM(output_tokens), 0)
		 FROM analysis_runs WHERE started_at >= ?`,
		domain.RunStatusFailed, since.UTC(),
	).Scan(&s.TotalRuns, &s.FailedRuns, &s.ItemsAnalyzed,
		&s.BugReports, &s.FeatureRequests, &s.GeneralFeedback,
		&s.InputTokens, &s.OutputTokens)
	return s, err
}

type StageFailureStat struct {
	Stage    string
	Failures int
}

// GetFailuresByStage counts failed runs per pipeline stage, most frequent
// first. Runs that failed before the pipeline started have no stage.
func GetFailuresByStage(db *sql.DB, since time.Time) ([]StageFailureStat, error) {
	rows, err := db.Query(
		`SELECT COALESCE(NULLIF(failed_stage, ''), 'input'), COUNT(*) as cnt
		 FROM analysis_runs
		 WHERE status = ? AND started_at >= ?
		 GROUP BY 1
		 ORDER BY cnt DESC`,
		domain.RunStatusFailed, since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageFailureStat
	for rows.Next() {
		var s StageFailureStat
		if err := rows.Scan(&s.Stage, &s.Failures); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneRunsBefore deletes runs started before cutoff and returns how many
// were removed.
func PruneRunsBefore(db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM analysis_runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
