package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" {
		t.Error("Version is empty")
	}
	if info.Commit == "" || len(info.Commit) > 12 {
		t.Errorf("Commit = %q", info.Commit)
	}
	if info.BuildTime == "" {
		t.Error("BuildTime is empty")
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestGet_Injected(t *testing.T) {
	oldV, oldC, oldT := Version, Commit, BuildTime
	defer func() { Version, Commit, BuildTime = oldV, oldC, oldT }()

	Version, Commit, BuildTime = "v1.2.3", "0123456789abcdef", "2024-01-01T00:00:00Z"
	info := Get()

	if info.Version != "v1.2.3" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.Commit != "0123456789ab" {
		t.Errorf("Commit = %q, want shortened hash", info.Commit)
	}
	if !strings.Contains(String(), "v1.2.3 (0123456789ab) built at 2024-01-01T00:00:00Z") {
		t.Errorf("String() = %q", String())
	}
}
