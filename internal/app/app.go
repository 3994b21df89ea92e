package app

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"feedbackbot/internal/config"
	"feedbackbot/internal/history"
	"feedbackbot/internal/httpx"
	"feedbackbot/internal/integrations/llm"
	slackbot "feedbackbot/internal/integrations/slack"
	"feedbackbot/internal/logger"
	"feedbackbot/internal/pipeline"
	"feedbackbot/internal/storage/sqlite"
)

func Main() {
	cfg, err := config.Load()
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			log.Fatalf("Invalid configuration: %v", cfgErr)
		}
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	zlog.Info("config loaded",
		zap.String("team", cfg.TeamName),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("llm_model", llm.ResolveModel(cfg.LLMProvider, cfg.LLMModel)),
		zap.Int("sample_size", cfg.SampleSize),
		zap.Bool("concurrent_summaries", cfg.ConcurrentSummaries()),
		zap.Int("llm_retry_attempts", cfg.LLMRetryAttempts),
		zap.Int("analysts", len(cfg.AnalystSlackIDs)),
		zap.String("glossary_path", cfg.LLMGlossaryPath),
		zap.Duration("external_http_timeout", appliedHTTPTimeout),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		zlog.Fatal("failed to init database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer db.Close()
	zlog.Info("database initialized", zap.String("path", cfg.DBPath))

	client, err := llm.New(ctx, cfg, httpx.ExternalHTTPClient(), zlog)
	if err != nil {
		zlog.Fatal("failed to init LLM client", zap.Error(err))
	}
	analyzer, err := pipeline.FromConfig(cfg, client, zlog)
	if err != nil {
		zlog.Fatal("failed to build pipeline", zap.Error(err))
	}

	pruneDone := history.StartPruneScheduler(ctx, cfg, db, zlog)

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
		slack.OptionHTTPClient(httpx.ExternalHTTPClient()),
	)
	socket := socketmode.New(api)

	bot := slackbot.New(slackbot.Options{
		Config:   cfg,
		DB:       db,
		API:      api,
		Analyzer: analyzer,
		Provider: client.Provider(),
		Model:    client.Model(),
		Logger:   zlog,
	})

	zlog.Info("starting feedback bot")
	err = bot.Run(ctx, socket)
	stop()
	<-pruneDone
	if err != nil && !errors.Is(err, context.Canceled) {
		zlog.Fatal("slack bot error", zap.Error(err))
	}
	zlog.Info("feedback bot stopped")
}
