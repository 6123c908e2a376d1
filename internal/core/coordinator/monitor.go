package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/ring"
)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Ring *ring.Membership

	// Remove drops a node from the ring, starting an election if it was
	// the leader. Usually election.Engine.RemoveNode.
	Remove func(id int64, reason string) bool

	// Schedule queues a task on the owning event loop.
	Schedule func(task func())

	// Timeout is how long a follower waits for a heartbeat before giving
	// up on the leader.
	Timeout time.Duration

	// CheckInterval is how often the deadline is checked. Defaults to a
	// third of Timeout.
	CheckInterval time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// Monitor watches the current leader's heartbeats on a follower.
type Monitor struct {
	cfg    MonitorConfig
	selfID int64
	logger *slog.Logger

	mu       sync.Mutex
	leader   domain.LeaderState
	lastSeen time.Time
}

// NewMonitor creates a monitor with no leader to watch.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHeartbeatTimeout
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = cfg.Timeout / 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Schedule == nil {
		cfg.Schedule = func(task func()) { task() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		cfg:    cfg,
		selfID: cfg.Ring.SelfID(),
		logger: cfg.Logger.With("component", "leader_monitor"),
	}
}

// OnLeaderChange resets the deadline for the new leader. A previous leader
// with a higher id than the new one cannot have taken part in the election
// that replaced it, so it is dropped from the ring.
func (m *Monitor) OnLeaderChange(s domain.LeaderState) {
	m.mu.Lock()
	prev := m.leader
	m.leader = s
	m.lastSeen = m.cfg.Now()
	m.mu.Unlock()

	if !superseded(prev, s) {
		return
	}
	m.logger.Warn("previous leader superseded by lower id",
		"leader_id", prev.LeaderID,
		"new_leader_id", s.LeaderID)
	m.cfg.Schedule(func() { m.cfg.Remove(prev.LeaderID, "superseded by lower leader") })
}

func superseded(prev, next domain.LeaderState) bool {
	return prev.Known && !prev.IsSelf && next.Known && next.LeaderID < prev.LeaderID
}

// Observe records a heartbeat. Heartbeats from a node other than the
// current leader are only used to refresh that node's ring entry.
func (m *Monitor) Observe(hb *domain.LeaderHeartbeat) {
	now := m.cfg.Now()
	m.cfg.Ring.MarkHeartbeat(hb.LeaderID, now)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.leader.Known || m.leader.LeaderID != hb.LeaderID {
		m.logger.Debug("heartbeat from non-leader ignored",
			"from", hb.LeaderID,
			"leader_id", m.leader.LeaderID)
		return
	}
	m.lastSeen = now
}

// LastSeen returns when the current leader was last heard from.
func (m *Monitor) LastSeen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}

// Check removes the leader if its heartbeat deadline has passed. It reports
// whether the leader was removed. Must run on the owning loop.
func (m *Monitor) Check() bool {
	m.mu.Lock()
	leader := m.leader
	overdue := leader.Known && !leader.IsSelf && m.cfg.Now().Sub(m.lastSeen) > m.cfg.Timeout
	silent := m.cfg.Now().Sub(m.lastSeen)
	if overdue {
		// Further checks wait for the next leader.
		m.leader = domain.NoLeader()
	}
	m.mu.Unlock()

	if !overdue {
		return false
	}

	m.logger.Warn("leader heartbeat timed out",
		"leader_id", leader.LeaderID,
		"silent_for", silent)
	m.cfg.Remove(leader.LeaderID, "heartbeat timeout")
	return true
}

// Run schedules Check every CheckInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.logger.Info("leader monitor started",
		"timeout", m.cfg.Timeout,
		"check_interval", m.cfg.CheckInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cfg.Schedule(func() { m.Check() })
		}
	}
}
