package report

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
)

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// ToSlackMrkdwn converts report markdown into Slack's mrkdwn dialect.
// Headings become bold lines; lists, emphasis, code and links are mapped to
// their Slack equivalents.
func ToSlackMrkdwn(markdown string) string {
	doc, src := parse(markdown)
	var b strings.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		writeBlock(&b, n, src, 0)
	}
	return strings.TrimSpace(b.String())
}

func writeBlock(b *strings.Builder, n ast.Node, src []byte, depth int) {
	switch v := n.(type) {
	case *ast.Heading:
		b.WriteString("*" + strings.TrimSpace(inline(v, src)) + "*\n\n")
	case *ast.Paragraph, *ast.TextBlock:
		b.WriteString(inline(v, src) + "\n\n")
	case *ast.List:
		writeList(b, v, src, depth)
		if depth == 0 {
			b.WriteString("\n")
		}
	case *ast.ThematicBreak:
		b.WriteString("──────────\n\n")
	case *ast.Blockquote:
		var inner strings.Builder
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			writeBlock(&inner, c, src, depth)
		}
		for _, line := range strings.Split(strings.TrimSpace(inner.String()), "\n") {
			b.WriteString("> " + line + "\n")
		}
		b.WriteString("\n")
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		b.WriteString("```\n")
		lines := v.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		b.WriteString("```\n\n")
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			writeBlock(b, c, src, depth)
		}
	}
}

func writeList(b *strings.Builder, list *ast.List, src []byte, depth int) {
	indent := strings.Repeat("    ", depth)
	num := list.Start
	if num == 0 {
		num = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d.", num)
			num++
		}
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if nested, ok := c.(*ast.List); ok {
				writeList(b, nested, src, depth+1)
				continue
			}
			text := inline(c, src)
			if first {
				b.WriteString(indent + marker + " " + text + "\n")
				first = false
			} else {
				b.WriteString(indent + "  " + text + "\n")
			}
		}
	}
}

func inline(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.WriteString(slackEscaper.Replace(textValue(v, src)))
			if v.HardLineBreak() {
				b.WriteString("\n")
			} else if v.SoftLineBreak() {
				b.WriteString(" ")
			}
		case *ast.String:
			b.WriteString(slackEscaper.Replace(string(v.Value)))
		case *ast.Emphasis:
			mark := "_"
			if v.Level >= 2 {
				mark = "*"
			}
			b.WriteString(mark + inline(v, src) + mark)
		case *ast.CodeSpan:
			b.WriteString("`" + plainText(v, src) + "`")
		case *ast.Link:
			b.WriteString(fmt.Sprintf("<%s|%s>", v.Destination, inline(v, src)))
		case *ast.AutoLink:
			b.WriteString(fmt.Sprintf("<%s>", v.URL(src)))
		default:
			b.WriteString(inline(c, src))
		}
	}
	return b.String()
}
