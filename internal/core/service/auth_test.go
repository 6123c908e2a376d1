package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/domain"
)

func bridge(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPAuthenticator(t *testing.T) {
	srv := bridge(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("user") == "alice" && r.PostForm.Get("pass") == "alice123" {
			w.Write([]byte(`{"success": true, "token": "tok-alice"}`))
			return
		}
		w.Write([]byte(`{"success": false}`))
	})

	a := NewHTTPAuthenticator(srv.URL+"/", WithInitialBackoff(time.Millisecond))

	tests := []struct {
		name      string
		user      string
		pass      string
		wantToken string
		wantErr   error
	}{
		{"valid", "alice", "alice123", "tok-alice", nil},
		{"wrong password", "alice", "nope", "", domain.ErrInvalidCredentials},
		{"unknown user", "mallory", "x", "", domain.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := a.Authenticate(context.Background(), tt.user, tt.pass)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if tok != tt.wantToken {
				t.Errorf("Authenticate() token = %q, want %q", tok, tt.wantToken)
			}
		})
	}
}

func TestHTTPAuthenticator_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := bridge(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"success": true, "token": "t"}`))
	})

	a := NewHTTPAuthenticator(srv.URL, WithInitialBackoff(time.Millisecond), WithRetries(5))
	tok, err := a.Authenticate(context.Background(), "bob", "bob123")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if tok != "t" {
		t.Errorf("Authenticate() token = %q, want t", tok)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("bridge calls = %d, want 3", got)
	}
}

func TestHTTPAuthenticator_RejectionNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := bridge(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"success": false}`))
	})

	a := NewHTTPAuthenticator(srv.URL, WithInitialBackoff(time.Millisecond))
	if _, err := a.Authenticate(context.Background(), "bob", "bad"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("Authenticate() error = %v, want ErrInvalidCredentials", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("bridge calls = %d, want 1", got)
	}
}

func TestHTTPAuthenticator_Unavailable(t *testing.T) {
	srv := bridge(t, func(w http.ResponseWriter, r *http.Request) {})
	url := srv.URL
	srv.Close()

	a := NewHTTPAuthenticator(url, WithInitialBackoff(time.Millisecond), WithRetries(2))
	_, err := a.Authenticate(context.Background(), "alice", "alice123")
	if !errors.Is(err, domain.ErrAuthUnavailable) {
		t.Fatalf("Authenticate() error = %v, want ErrAuthUnavailable", err)
	}
	if domain.Reason(err) != "auth_unavailable" {
		t.Errorf("Reason() = %q, want auth_unavailable", domain.Reason(err))
	}
}

func TestHTTPAuthenticator_EmptyToken(t *testing.T) {
	srv := bridge(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	})
	a := NewHTTPAuthenticator(srv.URL)
	if _, err := a.Authenticate(context.Background(), "a", "b"); !errors.Is(err, domain.ErrAuthUnavailable) {
		t.Errorf("Authenticate() error = %v, want ErrAuthUnavailable", err)
	}
}

func TestStaticAuthenticator(t *testing.T) {
	a, err := NewStaticAuthenticator(nil)
	if err != nil {
		t.Fatalf("NewStaticAuthenticator() error = %v", err)
	}
	a.now = func() time.Time { return time.UnixMilli(1700000000123) }

	if got := strings.Join(a.Users(), ","); got != "admin,alice,bob" {
		t.Errorf("Users() = %s, want admin,alice,bob", got)
	}

	tok, err := a.Authenticate(context.Background(), "alice", "alice123")
	if err != nil {
		t.Fatalf("Authenticate(alice) error = %v", err)
	}
	if tok != "token_alice_1700000000123" {
		t.Errorf("token = %q, want token_alice_1700000000123", tok)
	}

	for _, c := range [][2]string{{"alice", "bob123"}, {"carol", "carol"}, {"", ""}} {
		if _, err := a.Authenticate(context.Background(), c[0], c[1]); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("Authenticate(%q) error = %v, want ErrInvalidCredentials", c[0], err)
		}
	}
}

func TestStaticAuthenticator_RejectsEmptyName(t *testing.T) {
	if _, err := NewStaticAuthenticator(map[string]string{"": "x"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("NewStaticAuthenticator() error = %v, want ErrInvalidArgument", err)
	}
}

type countingAuth struct {
	calls int
	err   error
}

func (c *countingAuth) Authenticate(context.Context, string, string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "ok", nil
}

func TestRateLimitedAuthenticator(t *testing.T) {
	next := &countingAuth{err: domain.ErrInvalidCredentials}
	a := NewRateLimitedAuthenticator(next, 0.001, 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := a.Authenticate(ctx, "alice", "bad"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v, want ErrInvalidCredentials", i, err)
		}
	}
	_, err := a.Authenticate(ctx, "alice", "bad")
	if !errors.Is(err, domain.ErrLoginRateLimited) {
		t.Fatalf("third attempt error = %v, want ErrLoginRateLimited", err)
	}
	if next.calls != 2 {
		t.Errorf("wrapped calls = %d, want 2", next.calls)
	}

	// Other usernames have their own bucket.
	if _, err := a.Authenticate(ctx, "bob", "bad"); errors.Is(err, domain.ErrLoginRateLimited) {
		t.Error("bob was limited by alice's attempts")
	}
}

func TestRateLimitedAuthenticator_SuccessResets(t *testing.T) {
	next := &countingAuth{}
	a := NewRateLimitedAuthenticator(next, 0.001, 1).(*RateLimitedAuthenticator)

	if _, err := a.Authenticate(context.Background(), "alice", "alice123"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if a.limiters.Len() != 0 {
		t.Errorf("limiters.Len() = %d after success, want 0", a.limiters.Len())
	}
}

func TestRateLimitedAuthenticator_Disabled(t *testing.T) {
	next := &countingAuth{}
	if got := NewRateLimitedAuthenticator(next, 0, 5); got != Authenticator(next) {
		t.Error("NewRateLimitedAuthenticator(0) should return the wrapped authenticator")
	}
}
