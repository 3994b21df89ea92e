package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"feedbackbot/internal/domain"
)

const maxPromptItemChars = 1500

const classifierPersona = `You are a customer feedback triage specialist. You read a customer's comment and understand its core intent. You are meticulous and make sure every item reaches the right team.`

const bugAnalystPersona = `You are a senior QA engineer and product analyst with a keen eye for patterns. You don't just see "the app crashed"; you see "a pattern of crashes on the payment screen for iOS users". You group similar bug reports to find the underlying problem.`

const featureAnalystPersona = `You are a product manager who synthesizes user needs. You can read fifty requests for "dark mode", "night mode" and "black screen" and recognise them as a single demand: "User demand for dark mode".`

const composerPersona = `You are a senior product manager presenting the voice of the customer to leadership. Your writing is clear, data-driven and actionable. You skip the fluff and go straight to the insights that matter for building a better product.`

func buildClassifierPrompts(items []domain.FeedbackItem, guide string) (string, string) {
	guideBlock := ""
	if strings.TrimSpace(guide) != "" {
		guideBlock = "\nClassification guide (semantic hints only; still answer with one of the three categories):\n" + guide + "\n"
	}

	systemPrompt := fmt.Sprintf(`%s

Classify every feedback item into exactly one category:
- bug_report: something is broken, crashes, shows an error, loses data, behaves incorrectly or is unacceptably slow
- feature_request: asks for new functionality, an improvement or a change in behaviour
- general_feedback: praise, general complaints without a concrete defect or request, questions, anything else

Every id from the input must appear exactly once in your answer.
%s
Respond with JSON only (no markdown):
[{"id": 1, "category": "bug_report"}, {"id": 2, "category": "general_feedback"}, ...]`, classifierPersona, guideBlock)

	var b strings.Builder
	fmt.Fprintf(&b, "Feedback items (%d):\n", len(items))
	for i, item := range items {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, promptText(item))
	}
	return systemPrompt, b.String()
}

func buildSummarizerPrompts(kind domain.ThemeKind, items []domain.FeedbackItem) (string, string) {
	persona, task, label := bugAnalystPersona,
		"Identify the top recurring bug themes. Do not list individual bugs; name the theme they share and explain what the reports have in common and how widespread it is.",
		"Bug reports"
	if kind == domain.ThemeKindFeature {
		persona, task, label = featureAnalystPersona,
			"Identify the most requested features or themes. Group similar requests into broader demands and explain what users are asking for and how often.",
			"Feature requests"
	}

	systemPrompt := fmt.Sprintf(`%s

%s
Return between 3 and %d themes, ordered from most to least significant. If the input does not support 3 distinct themes, return fewer; never invent themes.
Keep each explanation to one or two sentences.

Respond with JSON only (no markdown):
[{"theme": "Short theme name", "explanation": "Brief explanation"}, ...]`, persona, task, domain.MaxThemes)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", label, len(items))
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", promptText(item))
	}
	return systemPrompt, b.String()
}

func buildComposerPrompts(bugs, features domain.ThemeSummary) (string, string) {
	systemPrompt := fmt.Sprintf(`%s

Write the executive summary of a management-ready Voice of the Customer report from the bug themes and feature request themes below.
Use 3 to 5 sentences of plain prose: no headings, no lists. Base every statement on the themes given; do not mention any other kind of feedback.

Respond with JSON only (no markdown):
{"executive_summary": "..."}`, composerPersona)

	var b strings.Builder
	writeThemeBlock(&b, "Top bug themes", bugs)
	b.WriteString("\n")
	writeThemeBlock(&b, "Top feature request themes", features)
	return systemPrompt, b.String()
}

func writeThemeBlock(b *strings.Builder, title string, summary domain.ThemeSummary) {
	b.WriteString(title + ":\n")
	if summary.Len() == 0 {
		b.WriteString("(none identified)\n")
		return
	}
	for i, theme := range summary.Themes {
		fmt.Fprintf(b, "%d. %s: %s\n", i+1, theme.Name, theme.Explanation)
	}
}

// promptText puts one item on a single line so numbering stays unambiguous.
func promptText(item domain.FeedbackItem) string {
	text := strings.Join(strings.Fields(string(item)), " ")
	if len(text) > maxPromptItemChars {
		text = cutAtRune(text, maxPromptItemChars) + "..."
	}
	return text
}

// cutAtRune shortens s to at most max bytes without splitting a rune.
func cutAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
