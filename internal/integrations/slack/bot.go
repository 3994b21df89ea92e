package slackbot

import (
	"context"
	"database/sql"
	"io"
	"math/rand"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"feedbackbot/internal/config"
	"feedbackbot/internal/domain"
	"feedbackbot/internal/intake"
	"feedbackbot/internal/pipeline"
)

const (
	commandAnalyze = "/analyze-feedback"
	commandStats   = "/feedback-stats"
	commandHelp    = "/feedback-help"

	actionAnalyzeRun   = "analyze_feedback_run"
	actionColumnSelect = "analyze_feedback_column"
	blockColumnSelect  = "analyze_feedback_column_block"
	blockAnalyzeRun    = "analyze_feedback_run_block"
)

// slackAPI is the subset of *slack.Client the bot calls.
type slackAPI interface {
	PostEphemeral(channelID, userID string, options ...slack.MsgOption) (string, error)
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	GetFiles(params slack.GetFilesParameters) ([]slack.File, *slack.Paging, error)
	GetFileInfo(fileID string, count, page int) (*slack.File, []slack.Comment, *slack.Paging, error)
	GetFile(downloadURL string, writer io.Writer) error
	UploadFileV2(params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
}

// Analyzer runs the feedback pipeline over one sample.
type Analyzer interface {
	Run(ctx context.Context, sample []domain.FeedbackItem, observe pipeline.Observer) (*pipeline.Result, error)
}

type Options struct {
	Config   config.Config
	DB       *sql.DB
	API      slackAPI
	Analyzer Analyzer
	Provider string
	Model    string
	Logger   *zap.Logger
}

type Bot struct {
	cfg      config.Config
	db       *sql.DB
	api      slackAPI
	analyzer Analyzer
	provider string
	model    string
	log      *zap.Logger
	newRand  func() *rand.Rand
}

func New(opts Options) *Bot {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		cfg:      opts.Config,
		db:       opts.DB,
		api:      opts.API,
		analyzer: opts.Analyzer,
		provider: opts.Provider,
		model:    opts.Model,
		log:      log,
		newRand:  intake.NewRand,
	}
}

// Run serves Socket Mode events until ctx is done or the connection fails.
// Every command and interaction is handled in its own goroutine.
func (b *Bot) Run(ctx context.Context, client *socketmode.Client) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				b.dispatch(ctx, client, evt)
			}
		}
	}()

	b.log.Info("slack bot connecting via Socket Mode")
	return client.RunContext(ctx)
}

func (b *Bot) dispatch(ctx context.Context, client *socketmode.Client, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		b.log.Info("slack bot connected")
	case socketmode.EventTypeSlashCommand:
		client.Ack(*evt.Request)
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		b.log.Info("slash command received",
			zap.String("command", cmd.Command),
			zap.String("user", cmd.UserID),
			zap.String("channel", cmd.ChannelID),
		)
		go b.handleSlashCommand(ctx, cmd)
	case socketmode.EventTypeEventsAPI:
		client.Ack(*evt.Request)
		event, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		go b.handleEventsAPI(event)
	case socketmode.EventTypeInteractive:
		client.Ack(*evt.Request)
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		go b.handleInteraction(ctx, callback)
	}
}

func (b *Bot) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	switch cmd.Command {
	case commandAnalyze:
		b.handleAnalyze(ctx, cmd)
	case commandStats:
		b.handleStats(cmd)
	case commandHelp:
		b.handleHelp(cmd)
	}
}

func (b *Bot) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MemberJoinedChannelEvent:
		b.log.Info("member joined", zap.String("user", ev.User), zap.String("channel", ev.Channel))
		b.postEphemeralTo(ev.Channel, ev.User, welcomeText(b.cfg.TeamName))
	}
}

func (b *Bot) handleInteraction(ctx context.Context, cb slack.InteractionCallback) {
	if cb.Type != slack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		return
	}
	act := cb.ActionCallback.BlockActions[0]
	channelID := cb.Channel.ID
	if channelID == "" {
		channelID = cb.Container.ChannelID
	}
	userID := cb.User.ID

	switch act.ActionID {
	case actionAnalyzeRun:
		b.handleAnalyzeAction(ctx, channelID, userID, act.Value, selectedColumn(cb))
	case actionColumnSelect:
		// The choice is read from the block state when the button is pressed.
	}
}

func (b *Bot) postEphemeralTo(channelID, userID, text string) {
	if _, err := b.api.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false)); err != nil {
		b.log.Warn("post ephemeral failed", zap.String("channel", channelID), zap.Error(err))
	}
}

func (b *Bot) postEphemeralBlocks(channelID, userID, fallback string, blocks ...slack.Block) {
	_, err := b.api.PostEphemeral(channelID, userID,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		b.log.Warn("post ephemeral blocks failed", zap.String("channel", channelID), zap.Error(err))
	}
}
