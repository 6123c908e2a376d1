package domain

import (
	"strings"
	"testing"
)

func TestGenerateSessionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateSessionID()
		if err != nil {
			t.Fatalf("GenerateSessionID() error = %v", err)
		}
		if !strings.HasPrefix(id, SessionIDPrefix) {
			t.Errorf("id %q missing prefix %q", id, SessionIDPrefix)
		}
		if len(id) != len(SessionIDPrefix)+26 {
			t.Errorf("len(%q) = %d, want %d", id, len(id), len(SessionIDPrefix)+26)
		}
		if id != strings.ToLower(id) {
			t.Errorf("id %q is not lowercase", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestParsePeer(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Node
		wantErr bool
	}{
		{
			name:  "ipv4",
			input: "7@10.0.0.2:8700",
			want:  Node{ID: 7, Address: "10.0.0.2", Port: 8700, Alive: true},
		},
		{
			name:  "hostname with spaces",
			input: "  12@node-c:8702 ",
			want:  Node{ID: 12, Address: "node-c", Port: 8702, Alive: true},
		},
		{name: "missing id", input: "10.0.0.2:8700", wantErr: true},
		{name: "non numeric id", input: "x@10.0.0.2:8700", wantErr: true},
		{name: "missing port", input: "3@10.0.0.2", wantErr: true},
		{name: "bad port", input: "3@10.0.0.2:99999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeer(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePeer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParsePeer() = %+v, want %+v", got, tt.want)
			}
			if got.Endpoint() != strings.TrimSpace(tt.input)[strings.Index(strings.TrimSpace(tt.input), "@")+1:] {
				t.Errorf("Endpoint() = %q", got.Endpoint())
			}
		})
	}
}

func TestLeaderState(t *testing.T) {
	if p := NoLeader().Ptr(); p != nil {
		t.Errorf("NoLeader().Ptr() = %v, want nil", *p)
	}

	s := LeaderOf(12, 12)
	if !s.IsSelf || !s.Known {
		t.Errorf("LeaderOf(12, 12) = %+v, want known self", s)
	}
	if p := s.Ptr(); p == nil || *p != 12 {
		t.Errorf("Ptr() = %v, want 12", p)
	}

	if LeaderOf(12, 3).IsSelf {
		t.Error("LeaderOf(12, 3).IsSelf = true, want false")
	}
}
