package report

import (
	"strings"
	"testing"

	"feedbackbot/internal/domain"
)

func TestToSlackMrkdwn(t *testing.T) {
	md := "# Voice of the Customer Report\n\n" +
		"## Top Bug Themes\n\n" +
		"1. **Crash on upload**: photos > 10MB fail & the app exits\n" +
		"2. **Slow sync**: see [status](https://status.example.com)\n\n" +
		"Some *emphasis* and `code`.\n"

	got := ToSlackMrkdwn(md)

	for _, want := range []string{
		"*Voice of the Customer Report*",
		"*Top Bug Themes*",
		"1. *Crash on upload*: photos &gt; 10MB fail &amp; the app exits",
		"2. *Slow sync*: see <https://status.example.com|status>",
		"Some _emphasis_ and `code`.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "**") || strings.Contains(got, "#") {
		t.Fatalf("markdown syntax leaked into mrkdwn:\n%s", got)
	}
}

func TestToSlackMrkdwnBulletList(t *testing.T) {
	got := ToSlackMrkdwn("- first\n- second\n")
	if got != "• first\n• second" {
		t.Fatalf("unexpected bullet rendering: %q", got)
	}
}

func TestToSlackMrkdwnUnescapesThemeText(t *testing.T) {
	bugs := domain.ThemeSummary{Kind: domain.ThemeKindBug, Themes: []domain.Theme{
		{Name: "snake_case keys & <br> tags", Explanation: "Exports use `raw` [ids]."},
	}}
	got := ToSlackMrkdwn(Render("Summary.", bugs, domain.ThemeSummary{Kind: domain.ThemeKindFeature}))

	for _, want := range []string{
		"1. *snake_case keys &amp; &lt;br&gt; tags*: Exports use `raw` [ids].",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, `\`) {
		t.Fatalf("markdown escapes leaked into mrkdwn:\n%s", got)
	}
}
