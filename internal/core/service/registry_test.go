package service

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/devansh-12/messaging-app/internal/core/domain"
)

func mustSession(t *testing.T, user string) *ClientSession {
	t.Helper()
	s, err := NewClientSession(&fakeConn{}, user, "tok")
	if err != nil {
		t.Fatalf("NewClientSession() error = %v", err)
	}
	return s
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	alice := mustSession(t, "alice")
	bob := mustSession(t, "bob")

	if !strings.HasPrefix(alice.ID, domain.SessionIDPrefix) {
		t.Errorf("session id = %q, want prefix %q", alice.ID, domain.SessionIDPrefix)
	}
	if alice.RemoteAddr != "127.0.0.1:50000" {
		t.Errorf("RemoteAddr = %q", alice.RemoteAddr)
	}

	for _, s := range []*ClientSession{bob, alice} {
		if err := r.Add(s); err != nil {
			t.Fatalf("Add(%s) error = %v", s.Username, err)
		}
	}
	if err := r.Add(mustSession(t, "alice")); !errors.Is(err, domain.ErrAlreadyOnline) {
		t.Errorf("Add(duplicate) error = %v, want ErrAlreadyOnline", err)
	}

	if got := r.Usernames(); !slices.Equal(got, []string{"alice", "bob"}) {
		t.Errorf("Usernames() = %v", got)
	}
	if all := r.All(); len(all) != 2 || all[0] != alice {
		t.Errorf("All() = %v, want alice first", all)
	}
	if s, ok := r.ByUsername("bob"); !ok || s != bob {
		t.Error("ByUsername(bob) miss")
	}
	if s, ok := r.Get(alice.ID); !ok || s != alice {
		t.Error("Get(alice) miss")
	}

	if !r.Remove(alice.ID) {
		t.Error("Remove(alice) = false")
	}
	if r.Remove(alice.ID) {
		t.Error("second Remove(alice) = true")
	}
	if _, ok := r.ByUsername("alice"); ok {
		t.Error("alice still indexed by name")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}
