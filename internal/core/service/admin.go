package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/node"
)

// DefaultEventLogLimit is used when a caller passes a negative limit.
const DefaultEventLogLimit = 50

// AnnouncePrefix marks administrator broadcasts.
const AnnouncePrefix = "[ADMIN] "

// LeaderInfo is a node's view of the ring and its leader.
type LeaderInfo struct {
	CurrentLeader *int64  `json:"currentLeader"`
	MyID          int64   `json:"myId"`
	IsLeader      bool    `json:"isLeader"`
	RingNodes     []int64 `json:"ringNodes"`
}

// AdminService is the control plane. Each operation runs on the node loop.
type AdminService struct {
	node   *node.Node
	chat   *ChatService
	logger *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(n *node.Node, chat *ChatService, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		node:   n,
		chat:   chat,
		logger: logger.With("component", "admin"),
	}
}

// ListUsers returns the sorted usernames of connected clients.
func (a *AdminService) ListUsers(ctx context.Context) ([]string, error) {
	var users []string
	err := a.do(ctx, func() {
		users = a.chat.sessions.Usernames()
		a.node.Log.Append(domain.EventAdminListUsers, map[string]any{"count": len(users)})
	})
	a.logger.Info("admin list users", "count", len(users))
	return users, err
}

// Announce broadcasts "[ADMIN] <message>" to every client. A blank message
// is not sent.
func (a *AdminService) Announce(ctx context.Context, message string) (bool, error) {
	if strings.TrimSpace(message) == "" {
		return false, nil
	}

	var recipients int
	err := a.do(ctx, func() {
		a.node.Log.Append(domain.EventAdminAnnounce, map[string]any{"message": message})
		recipients = a.chat.Broadcast(&domain.System{Message: AnnouncePrefix + message}, "", nil)
	})
	if err != nil {
		return false, err
	}
	a.logger.Info("admin announce", "recipients", recipients)
	return true, nil
}

// Kick disconnects username. It reports false when the user is not online.
func (a *AdminService) Kick(ctx context.Context, username string) (bool, error) {
	var kicked bool
	err := a.do(ctx, func() {
		kicked = a.chat.Kick(username)
		a.node.Log.Append(domain.EventAdminKick, map[string]any{
			"username": username,
			"kicked":   kicked,
		})
	})
	a.logger.Info("admin kick", "username", username, "kicked", kicked)
	return kicked, err
}

// EventLog returns at most limit of the most recent entries, oldest first.
// Zero returns none; a negative limit selects DefaultEventLogLimit.
func (a *AdminService) EventLog(ctx context.Context, limit int) ([]domain.EventLogEntry, error) {
	if limit < 0 {
		limit = DefaultEventLogLimit
	}
	if limit == 0 {
		return []domain.EventLogEntry{}, nil
	}
	var entries []domain.EventLogEntry
	err := a.do(ctx, func() { entries = a.node.Log.Tail(limit) })
	return entries, err
}

// LeaderInfo reports the leader and ring as seen by this node.
func (a *AdminService) LeaderInfo(ctx context.Context) (LeaderInfo, error) {
	var info LeaderInfo
	err := a.do(ctx, func() {
		s := a.node.LeaderState()
		info = LeaderInfo{
			CurrentLeader: s.Ptr(),
			MyID:          a.node.ID,
			IsLeader:      s.IsSelf,
			RingNodes:     a.node.Ring.IDs(),
		}
	})
	return info, err
}

// TriggerElection starts an election. It reports false while one is
// already running.
func (a *AdminService) TriggerElection(ctx context.Context) (bool, error) {
	var started bool
	err := a.do(ctx, func() { started = a.node.Election.Start("admin request") })
	a.logger.Info("admin trigger election", "started", started)
	return started, err
}

func (a *AdminService) do(ctx context.Context, task func()) error {
	if err := a.node.Do(ctx, task); err != nil {
		return domain.ErrServiceUnavailable.WithCause(err)
	}
	return nil
}
