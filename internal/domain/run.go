package domain

import "time"

const (
	RunStatusDone   = "done"
	RunStatusFailed = "failed"
)

// RunRecord is the metadata kept about one analysis. It never holds feedback
// text or the report itself.
type RunRecord struct {
	ID              string
	UserID          string
	ChannelID       string
	FileName        string
	ColumnName      string
	RowCount        int
	SampleSize      int
	BugReports      int
	FeatureRequests int
	GeneralFeedback int
	BugThemes       int
	FeatureThemes   int
	Provider        string
	Model           string
	InputTokens     int64
	OutputTokens    int64
	Status          string
	FailedStage     string
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}

func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
