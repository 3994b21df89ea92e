package pipeline

import (
	"context"
	"strings"
	"testing"

	"feedbackbot/internal/domain"
	"feedbackbot/internal/integrations/llm"
)

func TestSummarizeBoundsThemes(t *testing.T) {
	six := make([]domain.Theme, 6)
	for i := range six {
		six[i] = domain.Theme{Name: "Theme " + string(rune('A'+i)), Explanation: "why"}
	}
	tests := []struct {
		name      string
		response  string
		wantErr   string
		wantCount int
	}{
		{name: "five themes", response: themesJSON(t, six[:5]...), wantCount: 5},
		{name: "fewer than three", response: themesJSON(t, six[:2]...), wantCount: 2},
		{name: "empty list", response: "[]", wantCount: 0},
		{name: "six themes", response: themesJSON(t, six...), wantErr: "at most 5"},
		{name: "blank theme", response: `[{"theme":"  ","explanation":"x"}]`, wantErr: "no name"},
		{name: "blank explanation", response: `[{"theme":"Crashes","explanation":""}]`, wantErr: "no explanation"},
		{name: "prose", response: "- Crashes\n- Slowness", wantErr: "parsing theme response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeLLM().reply(StageBugThemes, tt.response)
			s := NewSummarizer(domain.ThemeKindBug, fake, nil)

			summary, _, err := s.Summarize(context.Background(), feedback("crash on login"))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if summary.Len() != tt.wantCount {
				t.Fatalf("got %d themes, want %d", summary.Len(), tt.wantCount)
			}
			if summary.Kind != domain.ThemeKindBug {
				t.Fatalf("unexpected kind %q", summary.Kind)
			}
		})
	}
}

func TestSummarizeEmptyBucketMakesNoCall(t *testing.T) {
	fake := newFakeLLM()
	s := NewSummarizer(domain.ThemeKindFeature, fake, nil)
	summary, _, err := s.Summarize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Len() != 0 || summary.Kind != domain.ThemeKindFeature {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no model call, got %d", len(fake.calls))
	}
}

func TestSummarizerUsesStageAndPersona(t *testing.T) {
	fake := newFakeLLM().reply(StageFeatureThemes, "[]")
	s := NewSummarizer(domain.ThemeKindFeature, fake, nil)
	if _, _, err := s.Summarize(context.Background(), feedback("please add dark mode")); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	calls := fake.callsFor(StageFeatureThemes)
	if len(calls) != 1 {
		t.Fatalf("expected one feature_themes call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].User, "Feature requests (1):\n- please add dark mode") {
		t.Fatalf("unexpected user prompt:\n%s", calls[0].User)
	}
	if !strings.Contains(calls[0].System, "dark mode") {
		t.Fatalf("expected feature persona in system prompt:\n%s", calls[0].System)
	}
}

func TestComposeRendersThemesVerbatim(t *testing.T) {
	bugs := domain.ThemeSummary{Kind: domain.ThemeKindBug, Themes: []domain.Theme{
		{Name: "Login crashes", Explanation: "The app closes right after sign-in."},
	}}
	features := domain.ThemeSummary{Kind: domain.ThemeKindFeature}

	fake := newFakeLLM().reply(StageCompose, `{"executive_summary": "Stability of sign-in is the top issue."}`)
	rep, usage, err := NewComposer(fake, nil).Compose(context.Background(), bugs, features)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if usage.OutputTokens == 0 {
		t.Fatal("expected usage")
	}
	for _, want := range []string{
		"Stability of sign-in is the top issue.",
		"1. **Login crashes**: The app closes right after sign-in.",
		"No recurring feature requests were identified.",
	} {
		if !strings.Contains(rep.Markdown, want) {
			t.Fatalf("report missing %q:\n%s", want, rep.Markdown)
		}
	}
	if rep.ExecutiveSummary != "Stability of sign-in is the top issue." {
		t.Fatalf("unexpected executive summary %q", rep.ExecutiveSummary)
	}
}

func TestComposeAcceptsFeedbackWordingInThemes(t *testing.T) {
	features := domain.ThemeSummary{Kind: domain.ThemeKindFeature, Themes: []domain.Theme{
		{Name: "In-app feedback form", Explanation: "Users want a button to send general feedback without leaving the app."},
	}}

	fake := newFakeLLM().reply(StageCompose, `{"executive_summary": "Customers want an easier way to reach the team."}`)
	rep, _, err := NewComposer(fake, nil).Compose(context.Background(), domain.ThemeSummary{Kind: domain.ThemeKindBug}, features)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(rep.Markdown, "send general feedback without leaving the app") {
		t.Fatalf("feature explanation missing from report:\n%s", rep.Markdown)
	}
}

func TestComposeRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "markdown instead of json", response: "# Report\n\nAll good."},
		{name: "blank summary", response: `{"executive_summary": "   "}`},
		{name: "mentions general feedback", response: `{"executive_summary": "General feedback was positive."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeLLM().reply(StageCompose, tt.response)
			_, _, err := NewComposer(fake, nil).Compose(context.Background(), domain.ThemeSummary{}, domain.ThemeSummary{})
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestComposerPromptCarriesOnlyThemes(t *testing.T) {
	var seen llm.Request
	fake := newFakeLLM().on(StageCompose, func(req llm.Request) (string, error) {
		seen = req
		return `{"executive_summary": "Summary."}`, nil
	})
	bugs := domain.ThemeSummary{Themes: []domain.Theme{{Name: "Slow sync", Explanation: "Sync lags."}}}
	if _, _, err := NewComposer(fake, nil).Compose(context.Background(), bugs, domain.ThemeSummary{}); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(seen.User, "1. Slow sync: Sync lags.") || !strings.Contains(seen.User, "(none identified)") {
		t.Fatalf("unexpected composer prompt:\n%s", seen.User)
	}
}
