package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"feedbackbot/internal/domain"
	"feedbackbot/internal/integrations/llm"
	"feedbackbot/internal/report"
)

// Composer writes the final report from the two theme summaries. Only the
// executive summary comes from the model; the body is rendered from the
// summaries verbatim.
type Composer struct {
	llm llm.Completer
	log *zap.Logger
}

func NewComposer(completer llm.Completer, log *zap.Logger) *Composer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{llm: completer, log: log}
}

type composerResponse struct {
	ExecutiveSummary string `json:"executive_summary"`
}

func (c *Composer) Compose(ctx context.Context, bugs, features domain.ThemeSummary) (domain.Report, domain.Usage, error) {
	systemPrompt, userPrompt := buildComposerPrompts(bugs, features)
	resp, err := c.llm.Complete(ctx, llm.Request{Stage: string(StageCompose), System: systemPrompt, User: userPrompt})
	if err != nil {
		return domain.Report{}, resp.Usage, fmt.Errorf("compose report: %w", err)
	}

	summary, err := parseComposerResponse(resp.Text)
	if err != nil {
		return domain.Report{}, resp.Usage, err
	}

	markdown := report.Render(summary, bugs, features)
	if err := report.Validate(markdown); err != nil {
		return domain.Report{}, resp.Usage, fmt.Errorf("rendered report is invalid: %w", err)
	}
	c.log.Info("report composed",
		zap.Int("bug_themes", bugs.Len()),
		zap.Int("feature_themes", features.Len()),
		zap.Int("size", len(markdown)),
	)
	return domain.Report{ExecutiveSummary: summary, Markdown: markdown}, resp.Usage, nil
}

func parseComposerResponse(responseText string) (string, error) {
	responseText = llm.StripCodeFence(responseText)

	var parsed composerResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		return "", fmt.Errorf("parsing composer response: %w (response: %s)", err, truncateForError(responseText))
	}
	summary := strings.TrimSpace(parsed.ExecutiveSummary)
	if summary == "" {
		return "", fmt.Errorf("composer response has an empty executive_summary")
	}
	return summary, nil
}
