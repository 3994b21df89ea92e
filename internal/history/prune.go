package history

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"feedbackbot/internal/config"
	"feedbackbot/internal/storage/sqlite"
)

// PruneOnce deletes run records older than retentionDays relative to now.
func PruneOnce(db *sql.DB, retentionDays int, now time.Time, log *zap.Logger) (int64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	removed, err := sqlite.PruneRunsBefore(db, cutoff)
	if err != nil {
		return 0, err
	}
	log.Info("run history pruned", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	return removed, nil
}

// StartPruneScheduler prunes run history on the configured 5-field cron
// schedule until ctx is done. The returned channel closes when the
// scheduler goroutine exits; it is closed immediately when pruning is off.
func StartPruneScheduler(ctx context.Context, cfg config.Config, db *sql.DB, log *zap.Logger) <-chan struct{} {
	stopped := make(chan struct{})
	if !cfg.HistoryPruneEnabled() {
		log.Info("history pruning disabled")
		close(stopped)
		return stopped
	}

	schedule := strings.TrimSpace(cfg.HistoryPruneSchedule)
	sched, err := parseSchedule(schedule)
	if err != nil {
		log.Warn("invalid history_prune_schedule, pruning disabled", zap.String("schedule", schedule), zap.Error(err))
		close(stopped)
		return stopped
	}
	log.Info("history pruning scheduled",
		zap.String("cron", schedule),
		zap.Int("retention_days", cfg.HistoryRetentionDays),
	)

	go func() {
		defer close(stopped)
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Debug("next history prune", zap.Time("at", next), zap.Duration("in", wait.Round(time.Minute)))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if _, err := PruneOnce(db, cfg.HistoryRetentionDays, time.Now(), log); err != nil {
				log.Error("history prune failed", zap.Error(err))
			}
		}
	}()
	return stopped
}

func parseSchedule(schedule string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(schedule)
}
