package slackbot

import (
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"feedbackbot/internal/domain"
	"feedbackbot/internal/storage/sqlite"
)

const statsWindowDays = 30

func (b *Bot) handleStats(cmd slack.SlashCommand) {
	if !b.cfg.IsAnalystID(cmd.UserID) {
		b.postEphemeralTo(cmd.ChannelID, cmd.UserID, "Sorry, only analysts can use this command.")
		return
	}

	allTime, err := sqlite.GetRunStats(b.db, time.Time{})
	if err != nil {
		b.postEphemeralTo(cmd.ChannelID, cmd.UserID, fmt.Sprintf("Error loading stats: %v", err))
		b.log.Error("feedback-stats all-time error", zap.Error(err))
		return
	}
	since := time.Now().AddDate(0, 0, -statsWindowDays)
	recent, err := sqlite.GetRunStats(b.db, since)
	if err != nil {
		b.log.Warn("feedback-stats recent error (non-fatal)", zap.Error(err))
		recent = sqlite.RunStats{}
	}
	failures, err := sqlite.GetFailuresByStage(b.db, since)
	if err != nil {
		b.log.Warn("feedback-stats failures error (non-fatal)", zap.Error(err))
	}
	runs, err := sqlite.GetRecentRuns(b.db, 5)
	if err != nil {
		b.log.Warn("feedback-stats recent runs error (non-fatal)", zap.Error(err))
	}

	b.postEphemeralTo(cmd.ChannelID, cmd.UserID, formatStats(allTime, recent, failures, runs))
	b.log.Info("feedback-stats sent", zap.String("user", cmd.UserID))
}

func formatStats(allTime, recent sqlite.RunStats, failures []sqlite.StageFailureStat, runs []domain.RunRecord) string {
	var sb strings.Builder
	sb.WriteString("*Feedback Analysis Dashboard*\n\n")

	sb.WriteString("*All-time Overview*\n")
	writeRunStats(&sb, allTime)

	sb.WriteString(fmt.Sprintf("\n*Last %d Days*\n", statsWindowDays))
	writeRunStats(&sb, recent)

	if len(failures) > 0 {
		sb.WriteString(fmt.Sprintf("\n*Failures by Stage (last %d days)*\n", statsWindowDays))
		for _, f := range failures {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", f.Stage, f.Failures))
		}
	}

	if len(runs) > 0 {
		sb.WriteString("\n*Recent Runs*\n")
		for _, r := range runs {
			line := fmt.Sprintf("- %s <@%s> %s", r.StartedAt.Local().Format("Jan 2 15:04"), r.UserID, r.Status)
			if r.FileName != "" {
				line += fmt.Sprintf(" `%s`", r.FileName)
			}
			if r.Status == domain.RunStatusDone {
				line += fmt.Sprintf(" (%d sampled, %d bug / %d feature themes)", r.SampleSize, r.BugThemes, r.FeatureThemes)
			} else if r.FailedStage != "" {
				line += fmt.Sprintf(" at %s", r.FailedStage)
			}
			sb.WriteString(line + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeRunStats(sb *strings.Builder, s sqlite.RunStats) {
	sb.WriteString(fmt.Sprintf("- Runs: %d (%d failed)\n", s.TotalRuns, s.FailedRuns))
	sb.WriteString(fmt.Sprintf("- Feedback items analyzed: %d\n", s.ItemsAnalyzed))
	if s.ItemsAnalyzed > 0 {
		sb.WriteString(fmt.Sprintf("- Bug reports: %d, feature requests: %d\n", s.BugReports, s.FeatureRequests))
	}
	sb.WriteString(fmt.Sprintf("- Tokens used: %s\n", formatTokenCount(s.InputTokens+s.OutputTokens)))
}

func (b *Bot) handleHelp(cmd slack.SlashCommand) {
	b.postEphemeralTo(cmd.ChannelID, cmd.UserID, helpText(b.cfg.SampleSize))
}

func helpText(sampleSize int) string {
	lines := []string{
		"*Feedback Bot Commands*",
		"",
		fmt.Sprintf("`%s` - Analyze the most recent CSV you shared in this channel. You pick the review column, then press *Analyze Feedback*.", commandAnalyze),
		fmt.Sprintf("`%s <column>` - Skip the picker and analyze that column directly.", commandAnalyze),
		fmt.Sprintf(">Up to %d non-empty rows are sampled at random; each run may pick a different sample.", sampleSize),
		">The report lists the top bug themes and the top feature requests.",
		"",
		fmt.Sprintf("`%s` - Show run history and token usage.", commandStats),
		fmt.Sprintf("`%s` - Show this help.", commandHelp),
	}
	return strings.Join(lines, "\n")
}

func welcomeText(teamName string) string {
	if teamName == "" {
		teamName = "the team"
	}
	return fmt.Sprintf("Welcome to %s! I'm Feedback Bot. I turn customer feedback exports into a Voice of the Customer report.\n\n"+
		"Share a .csv file in this channel and run `%s` to get started, or `%s` for details.",
		teamName, commandAnalyze, commandHelp)
}
