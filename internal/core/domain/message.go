package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Kind is the wire "type" discriminator of a message envelope.
type Kind string

// Message kinds.
const (
	KindLogin           Kind = "login"
	KindChat            Kind = "chat"
	KindPrivate         Kind = "pm"
	KindSystem          Kind = "system"
	KindError           Kind = "error"
	KindElection        Kind = "election"
	KindCoordinator     Kind = "coordinator"
	KindLeaderHeartbeat Kind = "leaderHeartbeat"
)

// Login reply statuses.
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// Message is one decoded envelope. The set of implementations is closed;
// handlers implement Visitor to process every kind.
type Message interface {
	Kind() Kind
	Accept(v Visitor) error
}

// Visitor handles each message variant. Adding a variant adds a method here,
// so every handler stops compiling until it deals with the new kind.
type Visitor interface {
	VisitLogin(*Login) error
	VisitLoginReply(*LoginReply) error
	VisitChat(*Chat) error
	VisitPrivate(*PrivateMessage) error
	VisitSystem(*System) error
	VisitError(*ErrorMessage) error
	VisitElection(*Election) error
	VisitCoordinator(*Coordinator) error
	VisitLeaderHeartbeat(*LeaderHeartbeat) error
}

// Stampable is a message that carries ordering metadata when broadcast.
type Stampable interface {
	Message
	Stamp(lamportTime int64, coordinatedBy *int64)
}

// Timestamped is a message that may carry the sender's Lamport time.
type Timestamped interface {
	Timestamp() (int64, bool)
}

// Login is the client's first frame.
type Login struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	LamportTime *int64 `json:"lamportTime,omitempty"`
}

// LoginReply answers a Login.
type LoginReply struct {
	Status        string `json:"status"`
	Token         string `json:"token,omitempty"`
	Reason        string `json:"reason,omitempty"`
	LamportTime   int64  `json:"lamportTime"`
	CurrentLeader *int64 `json:"currentLeader,omitempty"`
	NodeID        *int64 `json:"nodeId,omitempty"`
}

// Chat is a room-wide message.
type Chat struct {
	Message       string `json:"message"`
	From          string `json:"from,omitempty"`
	LamportTime   *int64 `json:"lamportTime,omitempty"`
	CoordinatedBy *int64 `json:"coordinatedBy,omitempty"`
}

// PrivateMessage is addressed to one user.
type PrivateMessage struct {
	To            string `json:"to"`
	Message       string `json:"message"`
	From          string `json:"from,omitempty"`
	LamportTime   *int64 `json:"lamportTime,omitempty"`
	CoordinatedBy *int64 `json:"coordinatedBy,omitempty"`
}

// System is a server-originated notice.
type System struct {
	Message       string `json:"message"`
	LamportTime   *int64 `json:"lamportTime,omitempty"`
	CoordinatedBy *int64 `json:"coordinatedBy,omitempty"`
}

// ErrorMessage reports a protocol or routing error to one connection.
type ErrorMessage struct {
	Reason string `json:"error"`
}

// Election carries the candidate list around the ring.
type Election struct {
	CandidateIDs []int64 `json:"candidateIds"`
	InitiatorID  int64   `json:"initiatorId"`
}

// Coordinator announces the election winner around the ring.
type Coordinator struct {
	LeaderID    int64 `json:"leaderId"`
	InitiatorID int64 `json:"initiatorId"`
}

// LeaderHeartbeat is emitted periodically by the leader.
// WallClock is Unix seconds with fractional part.
type LeaderHeartbeat struct {
	LeaderID  int64   `json:"leaderId"`
	WallClock float64 `json:"wallClock"`
}

func (*Login) Kind() Kind           { return KindLogin }
func (*LoginReply) Kind() Kind      { return KindLogin }
func (*Chat) Kind() Kind            { return KindChat }
func (*PrivateMessage) Kind() Kind  { return KindPrivate }
func (*System) Kind() Kind          { return KindSystem }
func (*ErrorMessage) Kind() Kind    { return KindError }
func (*Election) Kind() Kind        { return KindElection }
func (*Coordinator) Kind() Kind     { return KindCoordinator }
func (*LeaderHeartbeat) Kind() Kind { return KindLeaderHeartbeat }

func (m *Login) Accept(v Visitor) error           { return v.VisitLogin(m) }
func (m *LoginReply) Accept(v Visitor) error      { return v.VisitLoginReply(m) }
func (m *Chat) Accept(v Visitor) error            { return v.VisitChat(m) }
func (m *PrivateMessage) Accept(v Visitor) error  { return v.VisitPrivate(m) }
func (m *System) Accept(v Visitor) error          { return v.VisitSystem(m) }
func (m *ErrorMessage) Accept(v Visitor) error    { return v.VisitError(m) }
func (m *Election) Accept(v Visitor) error        { return v.VisitElection(m) }
func (m *Coordinator) Accept(v Visitor) error     { return v.VisitCoordinator(m) }
func (m *LeaderHeartbeat) Accept(v Visitor) error { return v.VisitLeaderHeartbeat(m) }

// Stamp implements Stampable.
func (m *Chat) Stamp(lamportTime int64, coordinatedBy *int64) {
	m.LamportTime, m.CoordinatedBy = &lamportTime, coordinatedBy
}

// Stamp implements Stampable.
func (m *PrivateMessage) Stamp(lamportTime int64, coordinatedBy *int64) {
	m.LamportTime, m.CoordinatedBy = &lamportTime, coordinatedBy
}

// Stamp implements Stampable.
func (m *System) Stamp(lamportTime int64, coordinatedBy *int64) {
	m.LamportTime, m.CoordinatedBy = &lamportTime, coordinatedBy
}

// Timestamp implements Timestamped.
func (m *Login) Timestamp() (int64, bool) { return deref(m.LamportTime) }

// Timestamp implements Timestamped.
func (m *Chat) Timestamp() (int64, bool) { return deref(m.LamportTime) }

// Timestamp implements Timestamped.
func (m *PrivateMessage) Timestamp() (int64, bool) { return deref(m.LamportTime) }

// Timestamp implements Timestamped.
func (m *System) Timestamp() (int64, bool) { return deref(m.LamportTime) }

// NewHeartbeat builds a heartbeat stamped with t.
func NewHeartbeat(leaderID int64, t time.Time) *LeaderHeartbeat {
	return &LeaderHeartbeat{
		LeaderID:  leaderID,
		WallClock: float64(t.UnixNano()) / float64(time.Second),
	}
}

// Time converts WallClock back to a time.Time.
func (m *LeaderHeartbeat) Time() time.Time {
	sec := int64(m.WallClock)
	nsec := int64((m.WallClock - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

func deref(p *int64) (int64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Encode marshals m with its "type" field.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, ErrInternal.WithDetails("encode " + string(m.Kind())).WithCause(err)
	}
	kind, _ := json.Marshal(string(m.Kind()))

	var buf bytes.Buffer
	buf.Grow(len(body) + len(kind) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(kind)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// Decode parses one frame into its variant. Failures are ErrBadJSON or
// ErrUnknownType.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type   Kind    `json:"type"`
		Status *string `json:"status"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, ErrBadJSON.WithCause(err)
	}

	var m Message
	switch head.Type {
	case KindLogin:
		if head.Status != nil {
			m = &LoginReply{}
		} else {
			m = &Login{}
		}
	case KindChat:
		m = &Chat{}
	case KindPrivate:
		m = &PrivateMessage{}
	case KindSystem:
		m = &System{}
	case KindError:
		m = &ErrorMessage{}
	case KindElection:
		m = &Election{}
	case KindCoordinator:
		m = &Coordinator{}
	case KindLeaderHeartbeat:
		m = &LeaderHeartbeat{}
	default:
		return nil, ErrUnknownType.WithDetails(string(head.Type))
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, ErrBadJSON.WithCause(err)
	}
	return m, nil
}
