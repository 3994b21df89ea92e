package slackbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"feedbackbot/internal/domain"
	"feedbackbot/internal/intake"
	"feedbackbot/internal/logger"
	"feedbackbot/internal/pipeline"
	"feedbackbot/internal/report"
	"feedbackbot/internal/storage/sqlite"
)

// analysisRequest names the file and column to analyze. ColumnIndex wins
// over Column when it is not negative.
type analysisRequest struct {
	UserID      string
	ChannelID   string
	FileID      string
	Column      string
	ColumnIndex int
}

func (b *Bot) handleAnalyze(ctx context.Context, cmd slack.SlashCommand) {
	if !b.cfg.IsAnalystID(cmd.UserID) {
		b.postEphemeralTo(cmd.ChannelID, cmd.UserID, "Sorry, only analysts can use this command.")
		b.log.Info("analyze denied", zap.String("user", cmd.UserID))
		return
	}

	file, err := b.findLatestCSV(cmd.UserID, cmd.ChannelID)
	if err != nil {
		b.reportFailure(cmd.ChannelID, cmd.UserID, err)
		return
	}

	column := parseColumnArg(cmd.Text)
	if column != "" {
		b.runAnalysis(ctx, analysisRequest{
			UserID:      cmd.UserID,
			ChannelID:   cmd.ChannelID,
			FileID:      file.ID,
			Column:      column,
			ColumnIndex: -1,
		})
		return
	}

	f, table, err := b.downloadTable(file.ID)
	if err != nil {
		b.reportFailure(cmd.ChannelID, cmd.UserID, err)
		return
	}
	b.postEphemeralBlocks(cmd.ChannelID, cmd.UserID, "Pick the review column to analyze.",
		columnPickerBlocks(*f, table.Columns())...)
}

func (b *Bot) handleAnalyzeAction(ctx context.Context, channelID, userID, fileID string, columnIndex int) {
	if !b.cfg.IsAnalystID(userID) {
		b.postEphemeralTo(channelID, userID, "Sorry, only analysts can use this command.")
		return
	}
	if columnIndex < 0 {
		b.postEphemeralTo(channelID, userID, "Pick the column that contains the customer review text first.")
		return
	}
	b.runAnalysis(ctx, analysisRequest{
		UserID:      userID,
		ChannelID:   channelID,
		FileID:      strings.TrimSpace(fileID),
		ColumnIndex: columnIndex,
	})
}

// parseColumnArg accepts a bare or quoted column name.
func parseColumnArg(text string) string {
	text = strings.TrimSpace(text)
	for _, q := range []string{`"`, `'`, "`", "“"} {
		closing := q
		if q == "“" {
			closing = "”"
		}
		if len(text) >= len(q)+len(closing) && strings.HasPrefix(text, q) && strings.HasSuffix(text, closing) {
			return strings.TrimSpace(text[len(q) : len(text)-len(closing)])
		}
	}
	return text
}

// runAnalysis downloads the table, samples the column, runs the pipeline and
// posts the report. Every attempt is recorded in run history.
func (b *Bot) runAnalysis(ctx context.Context, req analysisRequest) {
	rec := domain.RunRecord{
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		Provider:  b.provider,
		Model:     b.model,
		StartedAt: time.Now(),
	}
	log := b.log.With(zap.String("user", req.UserID), zap.String("file_id", req.FileID))

	fail := func(err error) {
		rec.FinishedAt = time.Now()
		rec.Status = domain.RunStatusFailed
		rec.Error = logger.Truncate(err.Error(), 500)
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			rec.FailedStage = string(stageErr.Stage)
		}
		b.recordRun(rec)
		b.reportFailure(req.ChannelID, req.UserID, err)
	}

	file, table, err := b.downloadTable(req.FileID)
	if err != nil {
		fail(err)
		return
	}
	rec.FileName = file.Name

	column := req.Column
	if req.ColumnIndex >= 0 {
		cols := table.Columns()
		if req.ColumnIndex >= len(cols) {
			fail(&intake.InputError{Msg: fmt.Sprintf("column %d no longer exists in %s", req.ColumnIndex+1, file.Name)})
			return
		}
		column = cols[req.ColumnIndex]
	}
	rec.ColumnName = column

	items, err := table.FeedbackColumn(column)
	if err != nil {
		fail(err)
		return
	}
	sample := intake.Sample(items, b.cfg.SampleSize, b.newRand())
	rec.RowCount = len(items)
	rec.SampleSize = len(sample)

	log.Info("analysis started",
		zap.String("column", column),
		zap.Int("rows", len(items)),
		zap.Int("sample", len(sample)),
	)
	b.postEphemeralTo(req.ChannelID, req.UserID,
		fmt.Sprintf("Analyzing %d of %d feedback rows from *%s*... This may take a few minutes.", len(sample), len(items), file.Name))

	res, err := b.analyzer.Run(ctx, sample, b.progressObserver(req, log))
	if res != nil {
		rec.InputTokens = res.Usage.InputTokens
		rec.OutputTokens = res.Usage.OutputTokens
	}
	if err != nil {
		fail(err)
		return
	}

	rec.BugReports = len(res.Batch.BugReports)
	rec.FeatureRequests = len(res.Batch.FeatureRequests)
	rec.GeneralFeedback = len(res.Batch.GeneralFeedback)
	rec.BugThemes = res.BugThemes.Len()
	rec.FeatureThemes = res.FeatureThemes.Len()

	if err := b.publishReport(req, reportSummary{
		FileName:    file.Name,
		Column:      column,
		RowCount:    len(items),
		Result:      res,
		RequestedBy: req.UserID,
	}); err != nil {
		fail(err)
		return
	}

	rec.FinishedAt = time.Now()
	rec.Status = domain.RunStatusDone
	b.recordRun(rec)
	log.Info("analysis complete",
		zap.Duration("elapsed", rec.Duration()),
		zap.Int("bug_themes", rec.BugThemes),
		zap.Int("feature_themes", rec.FeatureThemes),
	)
}

// progressObserver logs every transition and tells the user once when
// summarizing starts.
func (b *Bot) progressObserver(req analysisRequest, log *zap.Logger) pipeline.Observer {
	var once sync.Once
	return func(ev pipeline.Event) {
		log.Debug("pipeline transition",
			zap.String("stage", string(ev.Stage)),
			zap.String("state", string(ev.State)),
			zap.String("node", string(ev.Node)),
		)
		if ev.Node == pipeline.NodeStateRunning &&
			(ev.State == pipeline.StateSummarizingBugs || ev.State == pipeline.StateSummarizingFeatures) {
			once.Do(func() {
				b.postEphemeralTo(req.ChannelID, req.UserID, "Feedback classified. Summarizing bug and feature themes...")
			})
		}
	}
}

func (b *Bot) publishReport(req analysisRequest, s reportSummary) error {
	md := s.Result.Report.Markdown
	_, _, err := b.api.PostMessage(req.ChannelID,
		slack.MsgOptionText(report.Title, false),
		slack.MsgOptionBlocks(reportBlocks(s, report.ToSlackMrkdwn(md))...),
	)
	if err != nil {
		return fmt.Errorf("posting report: %w", err)
	}

	_, err = b.api.UploadFileV2(slack.UploadFileV2Parameters{
		Reader:   strings.NewReader(md),
		FileSize: len(md),
		Filename: reportFileName(time.Now()),
		Title:    fmt.Sprintf("%s %s", b.cfg.TeamName, report.Title),
		Channel:  req.ChannelID,
	})
	if err != nil {
		// The report is already visible in the channel.
		b.log.Warn("report upload failed", zap.String("channel", req.ChannelID), zap.Error(err))
	}
	return nil
}

func (b *Bot) recordRun(rec domain.RunRecord) {
	if b.db == nil {
		return
	}
	if _, err := sqlite.InsertRun(b.db, rec); err != nil {
		b.log.Error("record run failed", zap.Error(err))
	}
}

// reportFailure sends the single failure notice for a run. Input problems
// and stage failures are logged at different levels.
func (b *Bot) reportFailure(channelID, userID string, err error) {
	var inputErr *intake.InputError
	var stageErr *pipeline.StageError
	switch {
	case errors.As(err, &inputErr):
		b.log.Info("analysis rejected input", zap.String("user", userID), zap.Error(err))
	case errors.As(err, &stageErr):
		b.log.Error("analysis stage failed", zap.String("user", userID), zap.String("stage", string(stageErr.Stage)), zap.Error(err))
	default:
		b.log.Error("analysis failed", zap.String("user", userID), zap.Error(err))
	}
	b.postEphemeralTo(channelID, userID, failureMessage(err))
}

func failureMessage(err error) string {
	return "An error occurred: " + err.Error()
}
