package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionIDPrefix prefixes every client session id.
const SessionIDPrefix = "sess-"

// Session is the data half of a logged-in client connection.
type Session struct {
	// ID is "sess-" followed by a lowercase ULID, so ids sort by login millisecond.
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Token      string    `json:"-"`
	RemoteAddr string    `json:"remoteAddr"`
	LoggedInAt time.Time `json:"loggedInAt"`

	// LastSeenLamport is the highest Lamport time seen from this client.
	LastSeenLamport int64 `json:"lastSeenLamport"`
}

// GenerateSessionID generates a new session id.
func GenerateSessionID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternal.WithCause(err)
	}
	return SessionIDPrefix + strings.ToLower(id.String()), nil
}
