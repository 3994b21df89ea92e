package slackbot

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"feedbackbot/internal/intake"
)

const (
	maxCSVBytes      = 20 << 20
	recentFilesLimit = 20
)

func isCSVFile(f slack.File) bool {
	return strings.EqualFold(f.Filetype, "csv") ||
		strings.HasSuffix(strings.ToLower(f.Name), ".csv")
}

// latestCSV picks the most recently created CSV among files.
func latestCSV(files []slack.File) (slack.File, bool) {
	var best slack.File
	found := false
	for _, f := range files {
		if !isCSVFile(f) {
			continue
		}
		if !found || f.Created > best.Created {
			best = f
			found = true
		}
	}
	return best, found
}

// findLatestCSV returns the caller's most recent CSV shared in channelID.
func (b *Bot) findLatestCSV(userID, channelID string) (slack.File, error) {
	files, _, err := b.api.GetFiles(slack.GetFilesParameters{
		User:    userID,
		Channel: channelID,
		Count:   recentFilesLimit,
	})
	if err != nil {
		return slack.File{}, fmt.Errorf("listing shared files: %w", err)
	}
	f, ok := latestCSV(files)
	if !ok {
		return slack.File{}, &intake.InputError{
			Msg: fmt.Sprintf("no CSV file from you in this channel; share a .csv file, then run %s again", commandAnalyze),
		}
	}
	return f, nil
}

// downloadTable fetches a shared file by id and parses it as CSV.
func (b *Bot) downloadTable(fileID string) (*slack.File, *intake.Table, error) {
	f, _, _, err := b.api.GetFileInfo(fileID, 0, 0)
	if err != nil {
		return nil, nil, &intake.InputError{Msg: "could not load the shared file", Err: err}
	}
	if !isCSVFile(*f) {
		return nil, nil, &intake.InputError{Msg: fmt.Sprintf("%s is not a CSV file", f.Name)}
	}
	if f.Size > maxCSVBytes {
		return nil, nil, &intake.InputError{Msg: fmt.Sprintf("%s is too large (%d bytes, limit %d)", f.Name, f.Size, maxCSVBytes)}
	}

	var buf bytes.Buffer
	if err := b.api.GetFile(f.URLPrivateDownload, &buf); err != nil {
		return nil, nil, &intake.InputError{Msg: "could not download the shared file", Err: err}
	}
	table, err := intake.ReadTable(&buf)
	if err != nil {
		return nil, nil, err
	}
	b.log.Info("csv downloaded",
		zap.String("file_id", f.ID),
		zap.String("name", f.Name),
		zap.Int("bytes", buf.Len()),
		zap.Int("rows", table.RowCount()),
		zap.Int("columns", len(table.Columns())),
	)
	return f, table, nil
}
