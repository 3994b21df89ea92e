package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"feedbackbot/internal/domain"
	"feedbackbot/internal/integrations/llm"
)

// Summarizer distills one bucket into at most domain.MaxThemes themes.
type Summarizer struct {
	kind domain.ThemeKind
	llm  llm.Completer
	log  *zap.Logger
}

func NewSummarizer(kind domain.ThemeKind, completer llm.Completer, log *zap.Logger) *Summarizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Summarizer{kind: kind, llm: completer, log: log}
}

type themeItem struct {
	Theme       string `json:"theme"`
	Explanation string `json:"explanation"`
}

func (s *Summarizer) stage() StageID {
	if s.kind == domain.ThemeKindFeature {
		return StageFeatureThemes
	}
	return StageBugThemes
}

// Summarize groups items into recurring themes. An empty bucket returns an
// empty summary without calling the model.
func (s *Summarizer) Summarize(ctx context.Context, items []domain.FeedbackItem) (domain.ThemeSummary, domain.Usage, error) {
	summary := domain.ThemeSummary{Kind: s.kind}
	if len(items) == 0 {
		return summary, domain.Usage{}, nil
	}

	systemPrompt, userPrompt := buildSummarizerPrompts(s.kind, items)
	resp, err := s.llm.Complete(ctx, llm.Request{Stage: string(s.stage()), System: systemPrompt, User: userPrompt})
	if err != nil {
		return summary, resp.Usage, fmt.Errorf("summarize %d %s items: %w", len(items), s.kind, err)
	}

	themes, err := parseThemeResponse(resp.Text)
	if err != nil {
		return summary, resp.Usage, err
	}
	summary.Themes = themes
	s.log.Info("themes identified",
		zap.String("kind", string(s.kind)),
		zap.Int("items", len(items)),
		zap.Strings("themes", summary.Names()),
	)
	return summary, resp.Usage, nil
}

func parseThemeResponse(responseText string) ([]domain.Theme, error) {
	responseText = llm.StripCodeFence(responseText)

	var parsed []themeItem
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		return nil, fmt.Errorf("parsing theme response: %w (response: %s)", err, truncateForError(responseText))
	}
	if len(parsed) > domain.MaxThemes {
		return nil, fmt.Errorf("theme response has %d themes, at most %d allowed", len(parsed), domain.MaxThemes)
	}

	themes := make([]domain.Theme, 0, len(parsed))
	for i, p := range parsed {
		name := strings.TrimSpace(p.Theme)
		explanation := strings.TrimSpace(p.Explanation)
		if name == "" {
			return nil, fmt.Errorf("theme %d has no name", i+1)
		}
		if explanation == "" {
			return nil, fmt.Errorf("theme %q has no explanation", name)
		}
		themes = append(themes, domain.Theme{Name: name, Explanation: explanation})
	}
	return themes, nil
}
