package domain

import (
	"maps"
	"time"
)

// EventType classifies an event log entry.
type EventType string

// Event types recorded in the event log.
const (
	EventLoginAttempt EventType = "LOGIN_ATTEMPT"
	EventLoginFail    EventType = "LOGIN_FAIL"
	EventUserJoin     EventType = "USER_JOIN"
	EventUserLeave    EventType = "USER_LEAVE"

	EventChatMessage    EventType = "CHAT_MESSAGE"
	EventPrivateMessage EventType = "PRIVATE_MESSAGE"

	EventAdminListUsers EventType = "ADMIN_LIST_USERS"
	EventAdminAnnounce  EventType = "ADMIN_ANNOUNCE"
	EventAdminKick      EventType = "ADMIN_KICK"

	EventElectionStarted EventType = "ELECTION_STARTED"
	EventLeaderElected   EventType = "LEADER_ELECTED"
	EventNodeAdded       EventType = "NODE_ADDED"
	EventNodeRemoved     EventType = "NODE_REMOVED"

	EventCoordinatedBroadcast EventType = "LEADER_COORDINATED_BROADCAST"
)

// EventLogEntry is one immutable record in the event log.
type EventLogEntry struct {
	LamportTime   int64          `json:"lamportTime"`
	Type          EventType      `json:"type"`
	Details       map[string]any `json:"details"`
	WallClock     time.Time      `json:"wallClock"`
	CoordinatorID *int64         `json:"coordinatorId"`
}

// Clone returns a deep-enough copy: the details map is duplicated so callers
// cannot reach back into the log.
func (e EventLogEntry) Clone() EventLogEntry {
	out := e
	if e.Details != nil {
		out.Details = maps.Clone(e.Details)
	}
	if e.CoordinatorID != nil {
		id := *e.CoordinatorID
		out.CoordinatorID = &id
	}
	return out
}
