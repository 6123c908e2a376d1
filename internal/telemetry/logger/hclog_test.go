package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSplitLevel(t *testing.T) {
	tests := []struct {
		line  string
		level slog.Level
		msg   string
	}{
		{"[DEBUG] memberlist: probing", slog.LevelDebug, "memberlist: probing"},
		{"[WARN]  memberlist: refuting suspect", slog.LevelWarn, "memberlist: refuting suspect"},
		{"[ERROR] memberlist: push/pull failed", slog.LevelError, "memberlist: push/pull failed"},
		{"[INFO]  memberlist: joined", slog.LevelInfo, "memberlist: joined"},
		{"no prefix", slog.LevelInfo, "no prefix"},
	}

	for _, tt := range tests {
		level, msg := splitLevel(tt.line)
		if level != tt.level || msg != tt.msg {
			t.Errorf("splitLevel(%q) = %v, %q; want %v, %q", tt.line, level, msg, tt.level, tt.msg)
		}
	}
}

func TestStdLogger_InfersLevels(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLevel("debug")
	defer SetLevel("info")

	std := StdLogger("memberlist", base)
	std.Printf("[WARN] memberlist: suspect node 7")

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("output = %q, want level=WARN", out)
	}
	if !strings.Contains(out, "suspect node 7") {
		t.Errorf("output = %q, want original message", out)
	}
}
