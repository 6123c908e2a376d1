package chatserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/service"
)

// Defaults for Config fields left zero.
const (
	DefaultReadLimit  = 64 << 10
	DefaultSendBuffer = 64
	DefaultPongWait   = 60 * time.Second
)

// Config configures the chat server.
type Config struct {
	Addr string
	Chat *service.ChatService

	// ReadLimit caps one inbound frame in bytes.
	ReadLimit int64

	// SendBuffer is the number of frames queued per connection before
	// sends start failing.
	SendBuffer int

	// PongWait is how long a connection may stay silent after login.
	// Pings go out at nine tenths of it.
	PongWait time.Duration

	Logger *slog.Logger
}

// Server accepts websocket chat clients.
type Server struct {
	cfg      Config
	chat     *service.ChatService
	upgrader websocket.Upgrader
	server   *http.Server
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	running  bool
	conns    map[*conn]struct{}
}

// New creates a chat server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = DefaultPongWait
	}

	s := &Server{
		cfg:  cfg,
		chat: cfg.Chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: cfg.Logger.With("component", "chat"),
		conns:  make(map[*conn]struct{}),
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the websocket endpoint. Clients may connect on any path.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleConnection)
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln in the background.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("chat server already running")
	}
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	s.logger.Info("chat server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("chat server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting clients and closes every open connection with
// 1001 (going away).
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	open := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		open = append(open, c)
	}
	s.mu.Unlock()

	s.logger.Info("chat server shutting down", "connections", len(open))

	var err error
	if wasRunning {
		err = s.server.Shutdown(ctx)
	}
	for _, c := range open {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
	for _, c := range open {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *Server) track(c *conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	ws.SetReadLimit(s.cfg.ReadLimit)

	c := newConn(ws, s.cfg.SendBuffer, s.logger)
	s.track(c)
	defer s.untrack(c)
	go c.writePump(s.cfg.PongWait * 9 / 10)

	sess, ok := s.handshake(c)
	if !ok {
		<-c.done
		return
	}

	ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("client read error", "username", sess.Username, "error", err)
			}
			break
		}
		s.chat.Receive(sess, frame)
	}

	s.chat.Close(sess)
	c.Close(service.CloseNormal, "connection closed")
	<-c.done
}

// handshake reads the login frame and registers the session. On failure the
// connection is already closing.
func (s *Server) handshake(c *conn) (*service.ClientSession, bool) {
	deadline := time.Now().Add(s.chat.LoginTimeout())
	c.ws.SetReadDeadline(deadline)

	_, frame, err := c.ws.ReadMessage()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			s.reject(c, domain.ErrLoginTimeout)
		} else {
			c.abort()
		}
		return nil, false
	}

	msg, err := domain.Decode(frame)
	if err != nil {
		s.reject(c, err)
		return nil, false
	}
	login, ok := msg.(*domain.Login)
	if !ok {
		s.reject(c, domain.ErrExpectedLogin)
		return nil, false
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	sess, err := s.chat.Login(ctx, c, login)
	if err != nil {
		code := service.CloseNormal
		if errors.Is(err, domain.ErrServiceUnavailable) || errors.Is(err, domain.ErrAuthUnavailable) {
			code = service.CloseSendFailed
		}
		c.Close(code, domain.Reason(err))
		return nil, false
	}
	return sess, true
}

// reject answers a handshake protocol error and closes with 1008.
func (s *Server) reject(c *conn, cause error) {
	reason := domain.Reason(cause)
	s.logger.Info("handshake rejected", "remote", c.RemoteAddr(), "reason", reason)

	if frame, err := domain.Encode(&domain.ErrorMessage{Reason: reason}); err == nil {
		c.Send(frame)
	}
	c.Close(websocket.ClosePolicyViolation, reason)
}
