// Package election implements ring leader election.
//
// An election message carrying a candidate list travels from the initiator
// through successive ring successors. A node appends its own id only when it
// is larger than every id already present, so the highest reachable id is
// always included. When the message returns to the initiator the largest
// candidate wins and a coordinator announcement travels the ring.
//
// All handlers are meant to run on the node's event loop. Sends run through
// Spawn so a slow peer never stalls the loop; their outcome is handled back
// on the loop through Schedule.
package election

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/ring"
)

// DefaultForwardTimeout bounds a single send to a successor.
const DefaultForwardTimeout = 2 * time.Second

// State is the election state of one node.
type State int

// Election states.
const (
	Idle State = iota
	InProgress
	Completed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Transport delivers election traffic to another node. A returned error
// means the peer is unreachable.
type Transport interface {
	SendElection(ctx context.Context, to domain.Node, msg *domain.Election) error
	SendCoordinator(ctx context.Context, to domain.Node, msg *domain.Coordinator) error
}

// Config configures an Engine.
type Config struct {
	Ring      *ring.Membership
	Transport Transport

	// Schedule queues a task on the owning event loop. It must not run the
	// task synchronously.
	Schedule func(task func())

	// Spawn runs a blocking send. Defaults to a new goroutine.
	Spawn func(task func())

	// ForwardTimeout bounds each send. Defaults to DefaultForwardTimeout.
	ForwardTimeout time.Duration

	// Timeout abandons an election that has not completed in time and
	// starts a new one. Zero disables it.
	Timeout time.Duration

	// OnLeaderChange is called on the loop whenever the leader view changes.
	OnLeaderChange func(domain.LeaderState)

	// OnEvent is called on the loop for auditable election events.
	OnEvent func(eventType domain.EventType, details map[string]any)

	Logger *slog.Logger
}

// Engine is the election state machine of one node.
type Engine struct {
	cfg    Config
	selfID int64
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	initiator  int64
	candidates []int64
	leader     domain.LeaderState
	round      uint64
}

// New creates an engine in the Idle state with no known leader.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Schedule == nil {
		cfg.Schedule = func(task func()) { go task() }
	}
	if cfg.Spawn == nil {
		cfg.Spawn = func(task func()) { go task() }
	}
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = DefaultForwardTimeout
	}
	selfID := cfg.Ring.SelfID()
	return &Engine{
		cfg:    cfg,
		selfID: selfID,
		logger: cfg.Logger.With("node_id", selfID),
		leader: domain.NoLeader(),
	}
}

// SelfID returns the local node id.
func (e *Engine) SelfID() int64 {
	return e.selfID
}

// State returns the current election state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Leader returns the current leader view.
func (e *Engine) Leader() domain.LeaderState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leader
}

// IsLeader reports whether this node is the acting leader.
func (e *Engine) IsLeader() bool {
	return e.Leader().IsSelf
}

// Start begins an election initiated by this node. It returns false without
// side effects if an election started here is still in progress.
func (e *Engine) Start(reason string) bool {
	e.mu.Lock()
	if e.state == InProgress {
		e.mu.Unlock()
		return false
	}
	e.state = InProgress
	e.initiator = e.selfID
	e.candidates = []int64{e.selfID}
	e.round++
	round := e.round
	e.mu.Unlock()

	e.logger.Info("election started", "reason", reason)
	e.emit(domain.EventElectionStarted, map[string]any{
		"initiatorId": e.selfID,
		"reason":      reason,
	})

	msg := &domain.Election{CandidateIDs: []int64{e.selfID}, InitiatorID: e.selfID}
	e.cfg.Schedule(func() { e.forwardElection(msg) })

	if e.cfg.Timeout > 0 {
		time.AfterFunc(e.cfg.Timeout, func() {
			e.cfg.Schedule(func() { e.expire(round) })
		})
	}
	return true
}

// HandleElection processes an election message received from a predecessor.
func (e *Engine) HandleElection(msg *domain.Election) {
	if msg.InitiatorID == e.selfID {
		e.resolve(msg)
		return
	}

	if slices.Contains(msg.CandidateIDs, e.selfID) {
		// Circled the ring without reaching its initiator.
		e.logger.Warn("dropping election that never reached its initiator",
			"initiator_id", msg.InitiatorID,
			"candidates", msg.CandidateIDs)
		return
	}

	candidates := slices.Clone(msg.CandidateIDs)
	if len(candidates) == 0 || e.selfID > slices.Max(candidates) {
		candidates = append(candidates, e.selfID)
	}
	e.forwardElection(&domain.Election{CandidateIDs: candidates, InitiatorID: msg.InitiatorID})
}

// HandleCoordinator processes a coordinator announcement and passes it on
// unless the next hop is the announcement's initiator.
func (e *Engine) HandleCoordinator(msg *domain.Coordinator) {
	e.apply(msg)
	e.forwardCoordinator(msg)
}

// AddNode inserts a ring member and reports whether it was new.
func (e *Engine) AddNode(n domain.Node) bool {
	added := e.cfg.Ring.Add(n)
	if added {
		e.logger.Info("node added to ring", "peer_id", n.ID, "endpoint", n.Endpoint())
		e.emit(domain.EventNodeAdded, map[string]any{"nodeId": n.ID, "endpoint": n.Endpoint()})
	}
	return added
}

// RemoveNode removes a ring member. If it was the leader, the leader view is
// cleared and a new election starts (ignored if one is already running).
// It reports whether the removed node was the leader.
func (e *Engine) RemoveNode(id int64, reason string) bool {
	if id == e.selfID || !e.cfg.Ring.Has(id) {
		return false
	}

	wasLeader := e.cfg.Ring.Remove(id)
	e.mu.Lock()
	if e.leader.Known && e.leader.LeaderID == id {
		wasLeader = true
	}
	if wasLeader {
		e.leader = domain.NoLeader()
	}
	e.mu.Unlock()

	e.logger.Warn("node removed from ring",
		"peer_id", id,
		"reason", reason,
		"was_leader", wasLeader)
	e.emit(domain.EventNodeRemoved, map[string]any{
		"nodeId":    id,
		"reason":    reason,
		"wasLeader": wasLeader,
	})

	if wasLeader {
		e.notifyLeader(domain.NoLeader())
		e.Start("leader removed")
	}
	return wasLeader
}

// forwardElection sends msg to the current successor, removing dead
// successors and retrying while the message is still live.
func (e *Engine) forwardElection(msg *domain.Election) {
	if !e.electionLive(msg) {
		return
	}

	succ, ok := e.cfg.Ring.Successor()
	if !ok || succ.ID == e.selfID {
		e.becomeSoleLeader()
		return
	}

	e.cfg.Spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ForwardTimeout)
		err := e.cfg.Transport.SendElection(ctx, succ, msg)
		cancel()
		if err == nil {
			return
		}
		e.cfg.Schedule(func() {
			e.logger.Warn("election forward failed", "successor_id", succ.ID, "error", err)
			e.RemoveNode(succ.ID, "election forward failed")
			e.forwardElection(msg)
		})
	})
}

func (e *Engine) forwardCoordinator(msg *domain.Coordinator) {
	succ, ok := e.cfg.Ring.Successor()
	if !ok || succ.ID == e.selfID || succ.ID == msg.InitiatorID {
		return
	}

	e.cfg.Spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ForwardTimeout)
		err := e.cfg.Transport.SendCoordinator(ctx, succ, msg)
		cancel()
		if err == nil {
			return
		}
		e.cfg.Schedule(func() {
			e.logger.Warn("coordinator forward failed", "successor_id", succ.ID, "error", err)
			e.RemoveNode(succ.ID, "coordinator forward failed")
			e.forwardCoordinator(msg)
		})
	})
}

// electionLive reports whether msg still needs forwarding. Relayed messages
// always do; our own only while the election it belongs to is running.
func (e *Engine) electionLive(msg *domain.Election) bool {
	if msg.InitiatorID != e.selfID {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == InProgress && e.initiator == e.selfID
}

// resolve handles our own election message after a full traversal.
func (e *Engine) resolve(msg *domain.Election) {
	e.mu.Lock()
	if e.state != InProgress || e.initiator != e.selfID || len(msg.CandidateIDs) == 0 {
		e.mu.Unlock()
		e.logger.Debug("ignoring stale election message", "candidates", msg.CandidateIDs)
		return
	}
	leaderID := slices.Max(msg.CandidateIDs)
	e.state = Completed
	e.candidates = slices.Clone(msg.CandidateIDs)
	e.mu.Unlock()

	e.logger.Info("election resolved",
		"leader_id", leaderID,
		"candidates", msg.CandidateIDs)

	coord := &domain.Coordinator{LeaderID: leaderID, InitiatorID: e.selfID}
	e.apply(coord)
	e.forwardCoordinator(coord)
}

func (e *Engine) becomeSoleLeader() {
	e.mu.Lock()
	e.state = Completed
	e.mu.Unlock()

	e.logger.Info("no reachable peers, assuming leadership")
	e.apply(&domain.Coordinator{LeaderID: e.selfID, InitiatorID: e.selfID})
}

// apply installs the announced leader and returns the machine to Idle.
func (e *Engine) apply(msg *domain.Coordinator) {
	next := domain.LeaderOf(msg.LeaderID, e.selfID)

	e.mu.Lock()
	prev := e.leader
	e.leader = next
	e.state = Idle
	e.candidates = nil
	e.mu.Unlock()

	e.cfg.Ring.SetLeader(msg.LeaderID)
	e.emit(domain.EventLeaderElected, map[string]any{
		"leaderId":    msg.LeaderID,
		"initiatorId": msg.InitiatorID,
	})

	if prev != next {
		e.logger.Info("leader changed",
			"leader_id", next.LeaderID,
			"is_self", next.IsSelf)
		e.notifyLeader(next)
	}
}

// expire restarts an election that never came back.
func (e *Engine) expire(round uint64) {
	e.mu.Lock()
	stale := e.state == InProgress && e.round == round
	if stale {
		e.state = Idle
	}
	e.mu.Unlock()

	if stale {
		e.logger.Warn("election timed out, restarting")
		e.Start("election timed out")
	}
}

func (e *Engine) notifyLeader(s domain.LeaderState) {
	if e.cfg.OnLeaderChange != nil {
		e.cfg.OnLeaderChange(s)
	}
}

func (e *Engine) emit(t domain.EventType, details map[string]any) {
	if e.cfg.OnEvent != nil {
		e.cfg.OnEvent(t, details)
	}
}
