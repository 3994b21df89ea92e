package slackbot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/slack-go/slack"

	"feedbackbot/internal/pipeline"
)

const (
	maxSectionChars  = 3000
	maxMessageBlocks = 50
	maxSelectOptions = 100
	maxOptionChars   = 75
)

func columnPickerBlocks(file slack.File, columns []string) []slack.Block {
	intro := fmt.Sprintf("Found *%s*. Which column contains the customer review text?", file.Name)
	if len(columns) > maxSelectOptions {
		intro += fmt.Sprintf("\n_Only the first %d columns are listed; use `%s <column>` for the others._", maxSelectOptions, commandAnalyze)
		columns = columns[:maxSelectOptions]
	}

	options := make([]*slack.OptionBlockObject, 0, len(columns))
	for i, col := range columns {
		label := col
		if label == "" {
			label = fmt.Sprintf("(column %d)", i+1)
		}
		options = append(options, slack.NewOptionBlockObject(
			strconv.Itoa(i),
			slack.NewTextBlockObject(slack.PlainTextType, truncateRunes(label, maxOptionChars), false, false),
			nil,
		))
	}
	columnSelect := slack.NewOptionsSelectBlockElement(
		slack.OptTypeStatic,
		slack.NewTextBlockObject(slack.PlainTextType, "Review column", false, false),
		actionColumnSelect,
		options...,
	)
	if guess := guessReviewColumn(columns); guess >= 0 {
		columnSelect.InitialOption = options[guess]
	}

	button := slack.NewButtonBlockElement(
		actionAnalyzeRun,
		file.ID,
		slack.NewTextBlockObject(slack.PlainTextType, "Analyze Feedback", false, false),
	)
	button.Style = slack.StylePrimary

	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, intro, false, false), nil, nil),
		slack.NewActionBlock(blockColumnSelect, columnSelect),
		slack.NewActionBlock(blockAnalyzeRun, button),
	}
}

// guessReviewColumn preselects a column whose header looks like free text.
func guessReviewColumn(columns []string) int {
	for _, hint := range []string{"review", "feedback", "comment", "text"} {
		for i, col := range columns {
			if strings.Contains(strings.ToLower(col), hint) {
				return i
			}
		}
	}
	return -1
}

// selectedColumn reads the column index chosen in the picker, or -1.
func selectedColumn(cb slack.InteractionCallback) int {
	if cb.BlockActionState == nil {
		return -1
	}
	action, ok := cb.BlockActionState.Values[blockColumnSelect][actionColumnSelect]
	if !ok {
		return -1
	}
	idx, err := strconv.Atoi(strings.TrimSpace(action.SelectedOption.Value))
	if err != nil || idx < 0 {
		return -1
	}
	return idx
}

type reportSummary struct {
	FileName    string
	Column      string
	RowCount    int
	Result      *pipeline.Result
	RequestedBy string
}

func reportBlocks(s reportSummary, mrkdwn string) []slack.Block {
	res := s.Result
	meta := fmt.Sprintf("Sampled %d of %d feedback rows from *%s* (column _%s_) for <@%s> • %d bug reports • %d feature requests • tokens used: %s",
		res.SampleSize, s.RowCount, s.FileName, s.Column, s.RequestedBy,
		len(res.Batch.BugReports), len(res.Batch.FeatureRequests),
		formatTokenCount(res.Usage.TotalTokens()),
	)

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "Analysis Complete", false, false)),
		slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, meta, false, false)),
	}
	chunks := splitMrkdwn(mrkdwn, maxSectionChars)
	room := maxMessageBlocks - len(blocks) - 1
	truncated := len(chunks) > room
	if truncated {
		chunks = chunks[:room]
	}
	for _, chunk := range chunks {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, chunk, false, false), nil, nil))
	}
	if truncated {
		blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, "_Report truncated; see the attached markdown file._", false, false)))
	}
	return blocks
}

// splitMrkdwn cuts text into chunks of at most max bytes, preferring line
// boundaries. Lines longer than max are split on rune boundaries.
func splitMrkdwn(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		for len(line) > max {
			flush()
			cut := max
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > max {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return chunks
}

func reportFileName(now time.Time) string {
	return fmt.Sprintf("voice-of-customer-%s.md", now.Format("2006-01-02-1504"))
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func formatTokenCount(tokens int64) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	}
	rounded := (tokens + 50) / 100
	whole := rounded / 10
	decimal := rounded % 10
	if decimal == 0 {
		return fmt.Sprintf("%dk", whole)
	}
	return fmt.Sprintf("%d.%dk", whole, decimal)
}
