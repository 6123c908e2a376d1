package logger

import (
	"log/slog"
	"strings"
)

// redactedValue replaces values logged under a credential-like key.
const redactedValue = "***REDACTED***"

// maskedPrefixes mark values that are shortened rather than hidden, so two
// sessions can still be told apart in the logs.
var maskedPrefixes = []string{
	"token_",  // session tokens from the static authenticator
	"Bearer ", // admin Authorization header
}

// credentialWords match attribute keys whose values are never logged.
var credentialWords = []string{
	"password", "pass", "secret", "token", "key", "credential", "authorization", "bearer",
}

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			out = append(out, redactSensitive(ga))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		for _, p := range maskedPrefixes {
			if rest, ok := strings.CutPrefix(v, p); ok {
				return slog.String(a.Key, p+shorten(rest))
			}
		}
		if sensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}
	return a
}

// shorten keeps three characters from each end of s.
func shorten(s string) string {
	if len(s) <= 6 {
		return "***"
	}
	return s[:3] + "..." + s[len(s)-3:]
}

func sensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, w := range credentialWords {
		if strings.Contains(key, w) {
			return true
		}
	}
	return false
}
