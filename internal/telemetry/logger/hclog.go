package logger

import (
	"bytes"
	"context"
	"log"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// HCLog returns an hclog.Logger whose output is re-emitted through base.
// Lines carry the level hclog assigned to them.
func HCLog(name string, base *slog.Logger) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		Level:       hclog.LevelFromString(GetLevel()),
		Output:      &slogWriter{logger: base},
		DisableTime: true,
	})
}

// StdLogger returns a *log.Logger for libraries such as memberlist that only
// accept the standard logger. "[WARN]"-style prefixes are mapped to levels.
func StdLogger(name string, base *slog.Logger) *log.Logger {
	return HCLog(name, base).StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})
}

// slogWriter parses hclog's "[LEVEL] name: message" lines.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		level, msg := splitLevel(string(line))
		if msg == "" {
			continue
		}
		w.logger.Log(context.Background(), level, msg)
	}
	return len(p), nil
}

func splitLevel(line string) (slog.Level, string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return slog.LevelInfo, line
	}
	end := strings.Index(line, "]")
	if end < 0 {
		return slog.LevelInfo, line
	}
	msg := strings.TrimSpace(line[end+1:])
	switch strings.ToUpper(line[1:end]) {
	case "TRACE", "DEBUG":
		return slog.LevelDebug, msg
	case "WARN", "WARNING":
		return slog.LevelWarn, msg
	case "ERROR", "ERR":
		return slog.LevelError, msg
	default:
		return slog.LevelInfo, msg
	}
}
