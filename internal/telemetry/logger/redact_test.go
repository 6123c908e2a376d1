package logger

import (
	"bytes"
	"testing"
)

func TestRedact_ThroughLogger(t *testing.T) {
	restoreLevel(t)

	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"token", "token_alice_1700000000123", "token_ali...123"},
		{"session", "token_abcdef", "token_***"},
		{"header", "Bearer adminsecret", "Bearer adm...ret"},
		{"password", "alice123", redactedValue},
		{"PASS", "hunter2", redactedValue},
		{"admin_token", "s3cr3t", redactedValue},
		{"credential", "cred123", redactedValue},
		{"authorization", "Basic abc", redactedValue},
		{"password", "", ""},
		{"username", "alice", "alice"},
		{"session_id", "sess-01hxyz", "sess-01hxyz"},
		{"message", "hello", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			l, buf := newBufferLogger(t)
			l.Info("sample", tt.key, tt.value)

			entry := decodeEntry(t, buf)
			if got := entry[tt.key]; got != tt.want {
				t.Errorf("%s = %v, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRedact_Groups(t *testing.T) {
	restoreLevel(t)
	l, buf := newBufferLogger(t)

	l.Slog().WithGroup("auth").Info("attempt", "username", "bob", "password", "bob123")

	if bytes.Contains(buf.Bytes(), []byte("bob123")) {
		t.Errorf("password leaked in group: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"username":"bob"`)) {
		t.Errorf("username lost in group: %s", buf.String())
	}
}

func TestSensitiveKey(t *testing.T) {
	for key, want := range map[string]bool{
		"password":   true,
		"api_key":    true,
		"secret":     true,
		"username":   false,
		"request_id": false,
		"leader_id":  false,
	} {
		if got := sensitiveKey(key); got != want {
			t.Errorf("sensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
