package logger

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap/zapcore"
)

func TestNewRejectsUnknownLevelAndFormat(t *testing.T) {
	if _, err := New("verbose", "console"); err == nil {
		t.Fatal("expected unknown level to fail")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatal("expected unknown format to fail")
	}
	log, err := New("debug", "json")
	if err != nil {
		t.Fatalf("New(debug, json) failed: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level to be enabled")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate kept-short = %q", got)
	}
	got := Truncate(strings.Repeat("x", 20), 5)
	if !strings.HasPrefix(got, "xxxxx... [truncated") || !strings.Contains(got, "total_length=20") {
		t.Fatalf("unexpected truncated output: %q", got)
	}
	if got := Truncate("ééé", 3); !strings.HasPrefix(got, "é... [truncated") || !utf8.ValidString(got) {
		t.Fatalf("Truncate split a rune: %q", got)
	}
}
