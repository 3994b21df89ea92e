package report

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var parser = goldmark.New().Parser()

type Heading struct {
	Level int
	Text  string
}

func parse(markdown string) (ast.Node, []byte) {
	src := []byte(markdown)
	return parser.Parse(text.NewReader(src)), src
}

// Outline lists the headings of a markdown document in order.
func Outline(markdown string) []Heading {
	doc, src := parse(markdown)
	var headings []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			headings = append(headings, Heading{Level: h.Level, Text: strings.TrimSpace(plainText(h, src))})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return headings
}

// Validate parses markdown and checks the fixed report outline: the title,
// then executive summary, bug themes and feature requests as the only
// sections, in that order. The executive summary must not talk about general
// feedback; theme text is not checked.
func Validate(markdown string) error {
	if strings.TrimSpace(markdown) == "" {
		return fmt.Errorf("report is empty")
	}
	want := []string{HeadingSummary, HeadingBugThemes, HeadingFeatureRequests}
	var sections []string
	titles := 0
	for _, h := range Outline(markdown) {
		switch h.Level {
		case 1:
			titles++
		case 2:
			sections = append(sections, h.Text)
		default:
			return fmt.Errorf("report has an unexpected level %d heading %q", h.Level, h.Text)
		}
	}
	if titles != 1 {
		return fmt.Errorf("report must have exactly one title heading, found %d", titles)
	}
	if len(sections) != len(want) {
		return fmt.Errorf("report sections = %q, want %q", sections, want)
	}
	for i := range want {
		if sections[i] != want[i] {
			return fmt.Errorf("report section %d = %q, want %q", i+1, sections[i], want[i])
		}
	}
	if mentionsGeneralFeedback(sectionText(markdown, HeadingSummary)) {
		return fmt.Errorf("executive summary must not mention general feedback")
	}
	return nil
}

// sectionText returns the plain text of the blocks under the level 2
// heading named section.
func sectionText(markdown, section string) string {
	doc, src := parse(markdown)
	var b strings.Builder
	inside := false
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= 2 {
			inside = h.Level == 2 && strings.TrimSpace(plainText(h, src)) == section
			continue
		}
		if inside {
			b.WriteString(plainText(n, src))
			b.WriteByte(' ')
		}
	}
	return b.String()
}

var generalFeedbackNormalizer = strings.NewReplacer("_", " ", "-", " ")

func mentionsGeneralFeedback(s string) bool {
	norm := strings.Join(strings.Fields(generalFeedbackNormalizer.Replace(strings.ToLower(s))), " ")
	return strings.Contains(norm, "general feedback")
}

func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.WriteString(textValue(v, src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		default:
			b.WriteString(plainText(c, src))
		}
	}
	return b.String()
}

// textValue resolves backslash escapes except in raw (code span) text.
func textValue(t *ast.Text, src []byte) string {
	value := t.Segment.Value(src)
	if t.IsRaw() {
		return string(value)
	}
	return string(util.UnescapePunctuations(value))
}
