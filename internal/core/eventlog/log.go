// Package eventlog keeps the append-only audit trail of coordinated events.
//
// Each entry is stamped with a fresh Lamport time and the leader known at
// append time. Entries are never modified or removed; the log lives as long
// as the process.
package eventlog

import (
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/pkg/lamport"
)

// LeaderFunc reports the current leader id, if one is known.
type LeaderFunc func() (int64, bool)

// Log is the event log. It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []domain.EventLogEntry

	clock  *lamport.Clock
	leader LeaderFunc
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the wall clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// WithLogger sets the logger that mirrors appended entries at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// New creates an empty log stamping entries from clock.
func New(clock *lamport.Clock, leader LeaderFunc, opts ...Option) *Log {
	if leader == nil {
		leader = func() (int64, bool) { return 0, false }
	}
	l := &Log{
		clock:  clock,
		leader: leader,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records an event and returns the Lamport time assigned to it.
// details is copied.
func (l *Log) Append(eventType domain.EventType, details map[string]any) int64 {
	l.mu.Lock()
	ts := l.clock.Tick()
	entry := domain.EventLogEntry{
		LamportTime: ts,
		Type:        eventType,
		Details:     maps.Clone(details),
		WallClock:   l.now(),
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	if id, ok := l.leader(); ok {
		entry.CoordinatorID = &id
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.logger.Debug("event appended",
		"type", string(eventType),
		"lamport_time", ts)
	return ts
}

// Tail returns copies of the most recent limit entries in append order,
// or all entries if fewer exist. A non-positive limit returns nothing.
func (l *Log) Tail(limit int) []domain.EventLogEntry {
	if limit <= 0 {
		return []domain.EventLogEntry{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	start := len(l.entries) - limit
	if start < 0 {
		start = 0
	}
	out := make([]domain.EventLogEntry, 0, len(l.entries)-start)
	for _, e := range l.entries[start:] {
		out = append(out, e.Clone())
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
