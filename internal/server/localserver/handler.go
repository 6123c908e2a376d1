package localserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devansh-12/messaging-app/internal/core/service"
	"github.com/devansh-12/messaging-app/internal/telemetry/logger"
)

// Control is the subset of the admin service exposed on the socket.
type Control interface {
	LeaderInfo(ctx context.Context) (service.LeaderInfo, error)
	ListUsers(ctx context.Context) ([]string, error)
	TriggerElection(ctx context.Context) (bool, error)
}

// HandlerConfig configures a Handler. Nil hooks make their command
// unavailable.
type HandlerConfig struct {
	Control  Control
	Reload   func() error
	Shutdown func()
}

// Handler executes local management commands.
type Handler struct {
	cfg HandlerConfig
}

// ErrUnknownCommand is returned for commands the handler does not know.
var ErrUnknownCommand = errors.New("unknown command")

// NewHandler creates a new Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// Execute runs one command and writes its output lines to w. The caller
// writes the status line.
func (h *Handler) Execute(ctx context.Context, w io.Writer, cmd string, args []string) error {
	switch cmd {
	case "status":
		return h.handleStatus(ctx, w)
	case "users":
		return h.handleUsers(ctx, w)
	case "elect":
		return h.handleElect(ctx, w)
	case "loglevel":
		return h.handleLogLevel(w, args)
	case "reload":
		return h.handleReload()
	case "shutdown":
		return h.handleShutdown(w)
	case "help":
		_, err := io.WriteString(w, "commands: status users elect loglevel reload shutdown help\n")
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (h *Handler) handleStatus(ctx context.Context, w io.Writer) error {
	if h.cfg.Control == nil {
		return errors.New("status unavailable")
	}
	info, err := h.cfg.Control.LeaderInfo(ctx)
	if err != nil {
		return err
	}
	leader := "none"
	if info.CurrentLeader != nil {
		leader = strconv.FormatInt(*info.CurrentLeader, 10)
	}
	ids := make([]string, len(info.RingNodes))
	for i, id := range info.RingNodes {
		ids[i] = strconv.FormatInt(id, 10)
	}
	_, err = fmt.Fprintf(w, "node_id=%d leader=%s is_leader=%t ring=%s\n",
		info.MyID, leader, info.IsLeader, strings.Join(ids, ","))
	return err
}

func (h *Handler) handleUsers(ctx context.Context, w io.Writer) error {
	if h.cfg.Control == nil {
		return errors.New("users unavailable")
	}
	users, err := h.cfg.Control.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if _, err := fmt.Fprintln(w, u); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) handleElect(ctx context.Context, w io.Writer) error {
	if h.cfg.Control == nil {
		return errors.New("elect unavailable")
	}
	started, err := h.cfg.Control.TriggerElection(ctx)
	if err != nil {
		return err
	}
	if !started {
		_, err = io.WriteString(w, "election already running\n")
		return err
	}
	_, err = io.WriteString(w, "election started\n")
	return err
}

func (h *Handler) handleLogLevel(w io.Writer, args []string) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w, logger.GetLevel())
		return err
	}
	level := strings.ToLower(args[0])
	if !logger.ValidLevel(level) {
		return fmt.Errorf("invalid log level %q", args[0])
	}
	logger.SetLevel(level)
	_, err := fmt.Fprintln(w, logger.GetLevel())
	return err
}

func (h *Handler) handleReload() error {
	if h.cfg.Reload == nil {
		return errors.New("reload unavailable")
	}
	return h.cfg.Reload()
}

func (h *Handler) handleShutdown(w io.Writer) error {
	if h.cfg.Shutdown == nil {
		return errors.New("shutdown unavailable")
	}
	if _, err := io.WriteString(w, "shutting down\n"); err != nil {
		return err
	}
	h.cfg.Shutdown()
	return nil
}
