package slackbot

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"feedbackbot/internal/config"
	"feedbackbot/internal/domain"
	"feedbackbot/internal/pipeline"
	"feedbackbot/internal/storage/sqlite"
)

type postedMessage struct {
	channelID string
	userID    string
	text      string
	blocks    string
}

type fakeSlack struct {
	mu        sync.Mutex
	files     []slack.File
	contents  map[string]string
	ephemeral []postedMessage
	messages  []postedMessage
	uploads   []slack.UploadFileV2Parameters
}

func newFakeSlack(files ...slack.File) *fakeSlack {
	return &fakeSlack{files: files, contents: make(map[string]string)}
}

func (f *fakeSlack) addCSV(id, name, content string, created int64) {
	f.files = append(f.files, slack.File{
		ID:                 id,
		Name:               name,
		Filetype:           "csv",
		Size:               len(content),
		Created:            slack.JSONTime(created),
		URLPrivateDownload: "https://files.example.com/" + id,
	})
	f.contents["https://files.example.com/"+id] = content
}

func capture(channelID, userID string, options []slack.MsgOption) postedMessage {
	_, values, _ := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	return postedMessage{channelID: channelID, userID: userID, text: values.Get("text"), blocks: values.Get("blocks")}
}

func (f *fakeSlack) PostEphemeral(channelID, userID string, options ...slack.MsgOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemeral = append(f.ephemeral, capture(channelID, userID, options))
	return "1700000000.000100", nil
}

func (f *fakeSlack) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, capture(channelID, "", options))
	return channelID, "1700000000.000200", nil
}

func (f *fakeSlack) GetFiles(params slack.GetFilesParameters) ([]slack.File, *slack.Paging, error) {
	return f.files, &slack.Paging{}, nil
}

func (f *fakeSlack) GetFileInfo(fileID string, count, page int) (*slack.File, []slack.Comment, *slack.Paging, error) {
	for i := range f.files {
		if f.files[i].ID == fileID {
			file := f.files[i]
			return &file, nil, nil, nil
		}
	}
	return nil, nil, nil, fmt.Errorf("file_not_found")
}

func (f *fakeSlack) GetFile(downloadURL string, writer io.Writer) error {
	content, ok := f.contents[downloadURL]
	if !ok {
		return fmt.Errorf("404 for %s", downloadURL)
	}
	_, err := io.WriteString(writer, content)
	return err
}

func (f *fakeSlack) UploadFileV2(params slack.UploadFileV2Parameters) (*slack.FileSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, params)
	return &slack.FileSummary{ID: "F-report", Title: params.Title}, nil
}

func (f *fakeSlack) ephemeralTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.ephemeral))
	for _, m := range f.ephemeral {
		out = append(out, m.text)
	}
	return out
}

type fakeAnalyzer struct {
	result *pipeline.Result
	err    error
	events []pipeline.Event
	sample []domain.FeedbackItem
}

func (a *fakeAnalyzer) Run(ctx context.Context, sample []domain.FeedbackItem, observe pipeline.Observer) (*pipeline.Result, error) {
	a.sample = sample
	for _, ev := range a.events {
		observe(ev)
	}
	return a.result, a.err
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.InitDB(dbPath)
	if err != nil {
		t.Fatalf("init test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestBot(t *testing.T, api *fakeSlack, analyzer Analyzer) (*Bot, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	cfg := config.Config{SampleSize: 200, TeamName: "Mobile"}
	bot := New(Options{
		Config:   cfg,
		DB:       db,
		API:      api,
		Analyzer: analyzer,
		Provider: "anthropic",
		Model:    "claude-test",
		Logger:   zap.NewNop(),
	})
	bot.newRand = func() *rand.Rand { return rand.New(rand.NewSource(1)) }
	return bot, db
}
