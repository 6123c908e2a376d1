package localserver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/service"
	"github.com/devansh-12/messaging-app/internal/telemetry/logger"
)

type fakeControl struct {
	info    service.LeaderInfo
	users   []string
	started bool
	err     error
}

func (f *fakeControl) LeaderInfo(context.Context) (service.LeaderInfo, error) {
	return f.info, f.err
}

func (f *fakeControl) ListUsers(context.Context) ([]string, error) {
	return f.users, f.err
}

func (f *fakeControl) TriggerElection(context.Context) (bool, error) {
	return f.started, f.err
}

func leader(id int64) *int64 { return &id }

func TestHandler_Execute(t *testing.T) {
	ctl := &fakeControl{
		info:    service.LeaderInfo{CurrentLeader: leader(9), MyID: 3, RingNodes: []int64{3, 5, 9}},
		users:   []string{"alice", "bob"},
		started: true,
	}
	h := NewHandler(HandlerConfig{Control: ctl})

	tests := []struct {
		cmd  string
		want string
	}{
		{"status", "node_id=3 leader=9 is_leader=false ring=3,5,9\n"},
		{"users", "alice\nbob\n"},
		{"elect", "election started\n"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			var out bytes.Buffer
			if err := h.Execute(context.Background(), &out, tt.cmd, nil); err != nil {
				t.Fatalf("Execute(%s) error = %v", tt.cmd, err)
			}
			if out.String() != tt.want {
				t.Errorf("Execute(%s) = %q, want %q", tt.cmd, out.String(), tt.want)
			}
		})
	}
}

func TestHandler_StatusWithoutLeader(t *testing.T) {
	h := NewHandler(HandlerConfig{Control: &fakeControl{
		info: service.LeaderInfo{MyID: 4, IsLeader: false, RingNodes: []int64{4}},
	}})
	var out bytes.Buffer
	if err := h.Execute(context.Background(), &out, "status", nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "leader=none") {
		t.Errorf("status = %q, want leader=none", out.String())
	}
}

func TestHandler_ElectAlreadyRunning(t *testing.T) {
	h := NewHandler(HandlerConfig{Control: &fakeControl{started: false}})
	var out bytes.Buffer
	if err := h.Execute(context.Background(), &out, "elect", nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.String() != "election already running\n" {
		t.Errorf("elect = %q", out.String())
	}
}

func TestHandler_Errors(t *testing.T) {
	boom := errors.New("loop stopped")
	h := NewHandler(HandlerConfig{Control: &fakeControl{err: boom}})

	if err := h.Execute(context.Background(), io.Discard, "status", nil); !errors.Is(err, boom) {
		t.Errorf("status error = %v, want %v", err, boom)
	}
	if err := h.Execute(context.Background(), io.Discard, "bogus", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("bogus error = %v, want ErrUnknownCommand", err)
	}
	for _, cmd := range []string{"reload", "shutdown"} {
		if err := h.Execute(context.Background(), io.Discard, cmd, nil); err == nil {
			t.Errorf("%s without hook should fail", cmd)
		}
	}
	if err := NewHandler(HandlerConfig{}).Execute(context.Background(), io.Discard, "users", nil); err == nil {
		t.Error("users without control should fail")
	}
}

func TestHandler_LogLevel(t *testing.T) {
	prev := logger.GetLevel()
	defer logger.SetLevel(prev)

	h := NewHandler(HandlerConfig{})
	var out bytes.Buffer
	if err := h.Execute(context.Background(), &out, "loglevel", []string{"WARNING"}); err != nil {
		t.Fatalf("loglevel error = %v", err)
	}
	if out.String() != "warn\n" {
		t.Errorf("loglevel = %q, want %q", out.String(), "warn\n")
	}
	if logger.GetLevel() != "warn" {
		t.Errorf("GetLevel() = %q, want warn", logger.GetLevel())
	}

	if err := h.Execute(context.Background(), io.Discard, "loglevel", []string{"loud"}); err == nil {
		t.Error("invalid level should fail")
	}
}

func TestHandler_Hooks(t *testing.T) {
	var reloaded, stopped atomic.Bool
	h := NewHandler(HandlerConfig{
		Reload:   func() error { reloaded.Store(true); return nil },
		Shutdown: func() { stopped.Store(true) },
	})
	if err := h.Execute(context.Background(), io.Discard, "reload", nil); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if err := h.Execute(context.Background(), io.Discard, "shutdown", nil); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}
	if !reloaded.Load() || !stopped.Load() {
		t.Errorf("reloaded = %v, stopped = %v, want both true", reloaded.Load(), stopped.Load())
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// socketPath keeps the path short enough for sun_path.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "rc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "node.sock")
}

func startServer(t *testing.T, cfg HandlerConfig) *Server {
	t.Helper()
	srv := New(socketPath(t), NewHandler(cfg), quietLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

// roundTrip sends one command and reads up to the status line.
func roundTrip(t *testing.T, rw *bufio.ReadWriter, cmd string) []string {
	t.Helper()
	if _, err := rw.WriteString(cmd + "\n"); err != nil {
		t.Fatal(err)
	}
	if err := rw.Flush(); err != nil {
		t.Fatal(err)
	}
	var lines []string
	for {
		line, err := rw.ReadString('\n')
		if err != nil {
			t.Fatalf("read reply to %q: %v (got %v)", cmd, err, lines)
		}
		line = strings.TrimSuffix(line, "\n")
		lines = append(lines, line)
		if line == "OK" || strings.HasPrefix(line, "ERR ") {
			return lines
		}
	}
}

func TestServer_Commands(t *testing.T) {
	srv := startServer(t, HandlerConfig{Control: &fakeControl{users: []string{"alice"}}})

	info, err := os.Stat(srv.Path())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("socket perm = %o, want 600", perm)
	}

	conn, err := net.Dial("unix", srv.Path())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	if got := roundTrip(t, rw, "users"); strings.Join(got, "|") != "alice|OK" {
		t.Errorf("users = %v, want [alice OK]", got)
	}
	if got := roundTrip(t, rw, "frobnicate"); !strings.HasPrefix(got[len(got)-1], "ERR unknown command") {
		t.Errorf("frobnicate = %v, want ERR unknown command", got)
	}
	// Commands are case-insensitive.
	if got := roundTrip(t, rw, "USERS"); got[len(got)-1] != "OK" {
		t.Errorf("USERS = %v, want OK", got)
	}
}

func TestServer_ReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	// Leave the file behind as a crashed process would.
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	ln.Close()

	srv := New(path, NewHandler(HandlerConfig{}), quietLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() over stale socket error = %v", err)
	}
	srv.Shutdown(context.Background())

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("socket file after Shutdown: err = %v, want not exist", err)
	}
}

func TestServer_RefusesRegularFile(t *testing.T) {
	path := socketPath(t)
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	srv := New(path, NewHandler(HandlerConfig{}), quietLogger())
	if err := srv.Start(); err == nil {
		srv.Shutdown(context.Background())
		t.Fatal("Start() over a regular file should fail")
	}
}

func TestServer_ShutdownClosesIdleConnections(t *testing.T) {
	srv := startServer(t, HandlerConfig{})
	conn, err := net.Dial("unix", srv.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("connection still open after Shutdown")
	}
}
