package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/node"
	"github.com/devansh-12/messaging-app/internal/telemetry/metric"
)

// Websocket close codes used by the chat service.
const (
	CloseNormal     = 1000
	CloseSendFailed = 1011
	CloseKicked     = 4000
)

// DefaultLoginTimeout bounds the login handshake.
const DefaultLoginTimeout = 15 * time.Second

// ChatConfig configures a ChatService.
type ChatConfig struct {
	Node         *node.Node
	Auth         Authenticator
	Sessions     *Registry
	Metrics      *metric.Registry
	LoginTimeout time.Duration
	Logger       *slog.Logger
}

// ChatService routes client traffic: logins, room chat, private messages
// and disconnects. Every registry mutation and every send runs on the node
// loop, so clients observe one total order of deliveries.
type ChatService struct {
	node         *node.Node
	auth         Authenticator
	sessions     *Registry
	metrics      *metric.Registry
	loginTimeout time.Duration
	logger       *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(cfg ChatConfig) *ChatService {
	if cfg.Sessions == nil {
		cfg.Sessions = NewRegistry()
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = DefaultLoginTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ChatService{
		node:         cfg.Node,
		auth:         cfg.Auth,
		sessions:     cfg.Sessions,
		metrics:      cfg.Metrics,
		loginTimeout: cfg.LoginTimeout,
		logger:       cfg.Logger.With("component", "chat"),
	}
}

// Sessions returns the session registry.
func (s *ChatService) Sessions() *Registry {
	return s.sessions
}

// LoginTimeout returns how long a connection may take to log in.
func (s *ChatService) LoginTimeout() time.Duration {
	return s.loginTimeout
}

// Login authenticates a client and registers its session.
//
// The reply is written to conn before Login returns. On failure no session
// exists and the returned error carries the wire reason.
func (s *ChatService) Login(ctx context.Context, conn Conn, login *domain.Login) (*ClientSession, error) {
	username := strings.TrimSpace(login.Username)

	err := s.node.Do(ctx, func() {
		s.merge(login, nil)
		s.node.Log.Append(domain.EventLoginAttempt, map[string]any{
			"username": username,
			"remote":   conn.RemoteAddr(),
		})
	})
	if err != nil {
		return nil, domain.ErrServiceUnavailable.WithCause(err)
	}

	var tok string
	authErr := error(domain.ErrInvalidCredentials.WithDetails("empty username"))
	if username != "" {
		tok, authErr = s.auth.Authenticate(ctx, username, login.Password)
	}

	var (
		sess   *ClientSession
		result error
	)
	// The outcome must land even if the handshake deadline passed while
	// the authenticator was running.
	err = s.node.Do(context.WithoutCancel(ctx), func() {
		if authErr != nil {
			result = authErr
			s.rejectLogin(conn, username, authErr)
			return
		}

		cs, err := NewClientSession(conn, username, tok)
		if err == nil {
			err = s.sessions.Add(cs)
		}
		if err != nil {
			result = err
			s.rejectLogin(conn, username, err)
			return
		}

		s.node.Log.Append(domain.EventUserJoin, map[string]any{
			"username":  username,
			"sessionId": cs.ID,
		})

		nodeID := s.node.ID
		reply := &domain.LoginReply{
			Status:        domain.StatusOK,
			Token:         tok,
			LamportTime:   s.node.Clock.Now(),
			CurrentLeader: s.node.LeaderState().Ptr(),
			NodeID:        &nodeID,
		}
		if err := s.sendTo(cs, reply); err != nil {
			result = domain.ErrSessionClosed.WithCause(err)
			s.disconnect(cs, CloseSendFailed, "send failed")
			return
		}

		s.Broadcast(&domain.System{Message: username + " joined"}, cs.ID, nil)
		sess = cs
	})
	if err != nil {
		return nil, domain.ErrServiceUnavailable.WithCause(err)
	}

	if result != nil {
		s.metrics.ObserveLogin(domain.Reason(result))
		s.logger.Info("login failed", "username", username, "reason", domain.Reason(result))
		return nil, result
	}
	s.metrics.ObserveLogin("ok")
	s.logger.Info("user joined", "username", username, "session_id", sess.ID)
	return sess, nil
}

// rejectLogin runs on the loop.
func (s *ChatService) rejectLogin(conn Conn, username string, cause error) {
	reason := domain.Reason(cause)
	s.node.Log.Append(domain.EventLoginFail, map[string]any{
		"username": username,
		"reason":   reason,
	})

	frame, err := domain.Encode(&domain.LoginReply{
		Status:      domain.StatusFail,
		Reason:      reason,
		LamportTime: s.node.Clock.Now(),
	})
	if err != nil {
		s.logger.Error("encode login reply", "error", err)
		return
	}
	if err := conn.Send(frame); err != nil {
		s.logger.Debug("login reply not delivered", "username", username, "error", err)
	}
}

// Receive decodes one frame from a logged-in session and dispatches it on
// the loop.
func (s *ChatService) Receive(sess *ClientSession, frame []byte) {
	msg, err := domain.Decode(frame)
	if err != nil {
		s.node.Submit(func() { s.sendError(sess, err) })
		return
	}
	s.node.Submit(func() {
		if _, ok := s.sessions.Get(sess.ID); !ok {
			return
		}
		s.merge(msg, sess)
		if err := msg.Accept(clientVisitor{s: s, sess: sess}); err != nil {
			s.sendError(sess, err)
		}
	})
}

// Close handles a connection that ended on the client side.
func (s *ChatService) Close(sess *ClientSession) {
	s.node.Submit(func() { s.disconnect(sess, CloseNormal, "connection closed") })
}

// Broadcast stamps msg and sends it to every session except exclude. It
// must run on the loop.
//
// With ts nil the leader stamps through its coordinator path and marks the
// message coordinatedBy; other nodes tick their own clock. Sessions whose
// send fails are disconnected. Broadcast returns the number of recipients.
func (s *ChatService) Broadcast(msg domain.Stampable, exclude string, ts *int64) int {
	lamport, by := s.stamp(ts)
	msg.Stamp(lamport, by)

	frame, err := domain.Encode(msg)
	if err != nil {
		s.logger.Error("encode broadcast", "kind", msg.Kind(), "error", err)
		return 0
	}

	var (
		sent   int
		failed []*ClientSession
	)
	for _, cs := range s.sessions.All() {
		if cs.ID == exclude {
			continue
		}
		if err := cs.Send(frame); err != nil {
			failed = append(failed, cs)
			continue
		}
		sent++
	}

	if by != nil {
		s.node.Leader.RecordBroadcast(msg.Kind(), lamport, sent)
	}
	s.metrics.ObserveBroadcast(by != nil)

	for _, cs := range failed {
		s.metrics.ObserveSendFailure()
		s.logger.Warn("broadcast send failed", "username", cs.Username, "session_id", cs.ID)
		s.disconnect(cs, CloseSendFailed, "send failed")
	}
	return sent
}

// Unicast stamps msg and sends it to one user. It must run on the loop.
func (s *ChatService) Unicast(username string, msg domain.Stampable) error {
	cs, ok := s.sessions.ByUsername(username)
	if !ok {
		return domain.ErrUserNotOnline.WithDetails(username)
	}

	lamport, by := s.stamp(nil)
	msg.Stamp(lamport, by)
	if err := s.sendTo(cs, msg); err != nil {
		s.metrics.ObserveSendFailure()
		s.disconnect(cs, CloseSendFailed, "send failed")
		return domain.ErrUserNotOnline.WithDetails(username).WithCause(err)
	}
	return nil
}

// Kick closes a user's connection with code 4000 "kicked". It must run on
// the loop.
func (s *ChatService) Kick(username string) bool {
	cs, ok := s.sessions.ByUsername(username)
	if !ok {
		return false
	}
	return s.disconnect(cs, CloseKicked, "kicked")
}

// disconnect removes cs, closes its connection and tells the room. It
// reports false when cs was already gone.
func (s *ChatService) disconnect(cs *ClientSession, code int, reason string) bool {
	if !s.sessions.Remove(cs.ID) {
		return false
	}
	if err := cs.Close(code, reason); err != nil {
		s.logger.Debug("close session", "session_id", cs.ID, "error", err)
	}

	s.node.Log.Append(domain.EventUserLeave, map[string]any{
		"username":  cs.Username,
		"sessionId": cs.ID,
		"reason":    reason,
	})
	s.logger.Info("user left", "username", cs.Username, "reason", reason)
	s.Broadcast(&domain.System{Message: cs.Username + " left"}, "", nil)
	return true
}

func (s *ChatService) stamp(ts *int64) (int64, *int64) {
	if ts != nil {
		return *ts, nil
	}
	if s.node.IsLeader() && s.node.Leader.Active() {
		id := s.node.ID
		return s.node.Leader.Stamp(), &id
	}
	return s.node.Clock.Tick(), nil
}

// merge folds an inbound Lamport time into the clock.
func (s *ChatService) merge(msg any, sess *ClientSession) {
	t, ok := msg.(domain.Timestamped)
	if !ok {
		return
	}
	ts, ok := t.Timestamp()
	if !ok {
		return
	}
	s.node.Clock.Merge(ts)
	if sess != nil && ts > sess.LastSeenLamport {
		sess.LastSeenLamport = ts
	}
}

func (s *ChatService) sendTo(cs *ClientSession, msg domain.Message) error {
	frame, err := domain.Encode(msg)
	if err != nil {
		return err
	}
	return cs.Send(frame)
}

func (s *ChatService) sendError(cs *ClientSession, cause error) {
	if err := s.sendTo(cs, &domain.ErrorMessage{Reason: domain.Reason(cause)}); err != nil {
		s.logger.Debug("error reply not delivered", "session_id", cs.ID, "error", err)
	}
}

// SessionCount, RingSize, LamportTime and IsLeader let the service serve as
// a metric.Source.
func (s *ChatService) SessionCount() int  { return s.sessions.Len() }
func (s *ChatService) RingSize() int      { return s.node.Ring.Len() }
func (s *ChatService) LamportTime() int64 { return s.node.Clock.Now() }
func (s *ChatService) IsLeader() bool     { return s.node.IsLeader() }

// clientVisitor handles frames from a logged-in client.
type clientVisitor struct {
	s    *ChatService
	sess *ClientSession
}

func (v clientVisitor) VisitChat(m *domain.Chat) error {
	v.s.node.Log.Append(domain.EventChatMessage, map[string]any{
		"from":    v.sess.Username,
		"message": m.Message,
	})
	// The sender gets its own message back with the stamp everyone else sees.
	v.s.Broadcast(&domain.Chat{Message: m.Message, From: v.sess.Username}, "", nil)
	return nil
}

func (v clientVisitor) VisitPrivate(m *domain.PrivateMessage) error {
	v.s.node.Log.Append(domain.EventPrivateMessage, map[string]any{
		"from": v.sess.Username,
		"to":   m.To,
	})
	return v.s.Unicast(m.To, &domain.PrivateMessage{
		To:      m.To,
		Message: m.Message,
		From:    v.sess.Username,
	})
}

func (v clientVisitor) VisitLogin(*domain.Login) error {
	return domain.ErrUnexpectedType.WithDetails("already logged in")
}

func (v clientVisitor) VisitLoginReply(*domain.LoginReply) error { return domain.ErrUnexpectedType }
func (v clientVisitor) VisitSystem(*domain.System) error         { return domain.ErrUnexpectedType }
func (v clientVisitor) VisitError(*domain.ErrorMessage) error    { return domain.ErrUnexpectedType }
func (v clientVisitor) VisitElection(*domain.Election) error     { return domain.ErrUnexpectedType }
func (v clientVisitor) VisitCoordinator(*domain.Coordinator) error {
	return domain.ErrUnexpectedType
}
func (v clientVisitor) VisitLeaderHeartbeat(*domain.LeaderHeartbeat) error {
	return domain.ErrUnexpectedType
}
