// Package coordinator implements the duties of the elected leader and the
// follower-side liveness check on it.
//
// Leader is active only while the local node is the leader. It emits
// periodic heartbeats to every other ring member and stamps broadcasts that
// arrive without a Lamport time. Monitor runs on followers and removes the
// leader from the ring when its heartbeats stop, which triggers a new
// election.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/eventlog"
	"github.com/devansh-12/messaging-app/internal/core/ring"
	"github.com/devansh-12/messaging-app/pkg/lamport"
)

// Defaults.
const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultHeartbeatTimeout  = 15 * time.Second
	DefaultSendTimeout       = 2 * time.Second
	DefaultMaxMissed         = 3
)

// HeartbeatSender delivers a heartbeat to one peer.
type HeartbeatSender interface {
	SendHeartbeat(ctx context.Context, to domain.Node, hb *domain.LeaderHeartbeat) error
}

// LeaderConfig configures a Leader.
type LeaderConfig struct {
	Ring   *ring.Membership
	Clock  *lamport.Clock
	Log    *eventlog.Log
	Sender HeartbeatSender

	Interval    time.Duration
	SendTimeout time.Duration
	Now         func() time.Time

	// OnHeartbeat is called after each heartbeat round with the number of
	// peers reached and missed.
	OnHeartbeat func(sent, failed int)

	// Remove is called from the heartbeat goroutine for a peer that missed
	// MaxMissed heartbeats in a row. It must hand the removal to the
	// owning loop.
	Remove    func(id int64, reason string)
	MaxMissed int

	Logger *slog.Logger
}

// Leader performs leader duties while the local node holds leadership.
type Leader struct {
	cfg    LeaderConfig
	selfID int64
	logger *slog.Logger

	active atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLeader creates an inactive Leader.
func NewLeader(cfg LeaderConfig) *Leader {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHeartbeatInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.MaxMissed <= 0 {
		cfg.MaxMissed = DefaultMaxMissed
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Leader{
		cfg:    cfg,
		selfID: cfg.Ring.SelfID(),
		logger: cfg.Logger.With("component", "leader"),
	}
}

// Active reports whether leader duties are running.
func (l *Leader) Active() bool {
	return l.active.Load()
}

// OnLeaderChange starts or stops leader duties to match s.
func (l *Leader) OnLeaderChange(s domain.LeaderState) {
	if s.IsSelf {
		l.activate()
		return
	}
	l.deactivate()
}

// Stamp returns a fresh Lamport time for a broadcast that arrived without one.
func (l *Leader) Stamp() int64 {
	return l.cfg.Clock.Tick()
}

// RecordBroadcast audits a leader-coordinated send.
func (l *Leader) RecordBroadcast(kind domain.Kind, lamportTime int64, recipients int) {
	l.cfg.Log.Append(domain.EventCoordinatedBroadcast, map[string]any{
		"kind":        string(kind),
		"lamportTime": lamportTime,
		"recipients":  recipients,
	})
}

// Stop halts leader duties and waits for the heartbeat goroutine to exit.
func (l *Leader) Stop() {
	l.deactivate()
	l.wg.Wait()
}

func (l *Leader) activate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active.Load() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.active.Store(true)
	l.wg.Add(1)
	go l.run(ctx)

	l.logger.Info("leader duties started", "interval", l.cfg.Interval)
}

func (l *Leader) deactivate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active.Load() {
		return
	}
	l.active.Store(false)
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.logger.Info("leader duties stopped")
}

func (l *Leader) run(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	missed := make(map[int64]int)
	for {
		if !l.active.Load() {
			return
		}
		l.beat(ctx, missed)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// beat sends one heartbeat to every other ring member. missed counts
// consecutive failures per peer; a peer reaching MaxMissed is removed.
func (l *Leader) beat(ctx context.Context, missed map[int64]int) {
	hb := domain.NewHeartbeat(l.selfID, l.cfg.Now())
	peers := l.cfg.Ring.Peers()

	var sent, failed int
	for _, peer := range peers {
		if ctx.Err() != nil {
			return
		}
		sendCtx, cancel := context.WithTimeout(ctx, l.cfg.SendTimeout)
		err := l.cfg.Sender.SendHeartbeat(sendCtx, peer, hb)
		cancel()
		if err == nil {
			sent++
			delete(missed, peer.ID)
			continue
		}
		if ctx.Err() != nil {
			return
		}

		failed++
		missed[peer.ID]++
		l.logger.Debug("heartbeat not delivered",
			"peer_id", peer.ID,
			"missed", missed[peer.ID],
			"error", err)
		if missed[peer.ID] >= l.cfg.MaxMissed && l.cfg.Remove != nil {
			delete(missed, peer.ID)
			l.logger.Warn("peer missed heartbeats, removing", "peer_id", peer.ID)
			l.cfg.Remove(peer.ID, "heartbeat failed")
		}
	}

	if l.cfg.OnHeartbeat != nil {
		l.cfg.OnHeartbeat(sent, failed)
	}
}
