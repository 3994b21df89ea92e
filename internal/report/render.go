package report

import (
	"fmt"
	"regexp"
	"strings"

	"feedbackbot/internal/domain"
)

const (
	Title                  = "Voice of the Customer Report"
	HeadingSummary         = "Executive Summary"
	HeadingBugThemes       = "Top Bug Themes"
	HeadingFeatureRequests = "Top Feature Requests"
)

// Render builds the report markdown from the executive summary and the two
// theme summaries. General feedback has no section.
func Render(executiveSummary string, bugs, features domain.ThemeSummary) string {
	var b strings.Builder
	b.WriteString("# " + Title + "\n\n")

	b.WriteString("## " + HeadingSummary + "\n\n")
	b.WriteString(flattenBlock(executiveSummary))
	b.WriteString("\n\n")

	b.WriteString("## " + HeadingBugThemes + "\n\n")
	writeThemes(&b, bugs, "No recurring bug themes were identified.")
	b.WriteString("\n")

	b.WriteString("## " + HeadingFeatureRequests + "\n\n")
	writeThemes(&b, features, "No recurring feature requests were identified.")

	return b.String()
}

func writeThemes(b *strings.Builder, summary domain.ThemeSummary, empty string) {
	if summary.Len() == 0 {
		b.WriteString(empty + "\n")
		return
	}
	for i, theme := range summary.Themes {
		name := escapeInline(theme.Name)
		explanation := escapeInline(theme.Explanation)
		if explanation == "" {
			fmt.Fprintf(b, "%d. **%s**\n", i+1, name)
			continue
		}
		fmt.Fprintf(b, "%d. **%s**: %s\n", i+1, name, explanation)
	}
}

// inlineEscaper backslash-escapes the characters that would start inline
// markup, so theme text reads verbatim once parsed.
var inlineEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"&", `\&`,
)

// escapeInline puts a theme on one list line. Runs of whitespace collapse to
// a single space; every other character survives.
func escapeInline(s string) string {
	return inlineEscaper.Replace(strings.Join(strings.Fields(s), " "))
}

const containerMarkers = `(?:>[ \t]*|(?:[-*+]|\d{1,9}[.)])(?:[ \t]+|$))*`

var (
	// headingMarker matches an ATX heading marker, optionally behind
	// blockquote and list markers.
	headingMarker   = regexp.MustCompile(`^(` + containerMarkers + `)#{1,6}(?:[ \t]+|$)`)
	containerPrefix = regexp.MustCompile(`^` + containerMarkers)
)

// flattenBlock keeps paragraph breaks but demotes heading lines, so model
// text cannot add sections to the report outline.
func flattenBlock(s string) string {
	lines := strings.Split(strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for headingMarker.MatchString(trimmed) {
			trimmed = strings.TrimSpace(headingMarker.ReplaceAllString(trimmed, "$1"))
		}
		if isUnderline(trimmed) || isUnderline(containerPrefix.ReplaceAllString(trimmed, "")) {
			// setext underline or thematic break
			continue
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isUnderline(s string) bool {
	return s != "" && strings.Trim(s, "=- \t") == ""
}
