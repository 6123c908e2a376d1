// Package node assembles the shared state of one ringchat node.
//
// A Node owns the Lamport clock, ring membership, election engine, leader
// duties, event log and the event loop that serializes all of them. It is
// built once at startup and passed to every adapter; there are no package
// level registries.
package node

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/coordinator"
	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/election"
	"github.com/devansh-12/messaging-app/internal/core/eventlog"
	"github.com/devansh-12/messaging-app/internal/core/ring"
	"github.com/devansh-12/messaging-app/internal/telemetry/metric"
	"github.com/devansh-12/messaging-app/pkg/eventloop"
	"github.com/devansh-12/messaging-app/pkg/lamport"
)

// Transport carries all node-to-node traffic.
type Transport interface {
	election.Transport
	coordinator.HeartbeatSender
}

// Config configures a Node.
type Config struct {
	Self      domain.Node
	Transport Transport

	ForwardTimeout    time.Duration
	ElectionTimeout   time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	Metrics *metric.Registry
	Logger  *slog.Logger
}

// Node is the aggregate of one node's coordination state.
type Node struct {
	ID       int64
	Clock    *lamport.Clock
	Ring     *ring.Membership
	Election *election.Engine
	Leader   *coordinator.Leader
	Monitor  *coordinator.Monitor
	Log      *eventlog.Log
	Loop     *eventloop.Loop

	metrics *metric.Registry
	logger  *slog.Logger

	mu    sync.Mutex
	hooks []func(domain.LeaderState)
}

// New wires a node. Run must be called before it does any work.
func New(cfg Config) *Node {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("node_id", cfg.Self.ID)

	n := &Node{
		ID:      cfg.Self.ID,
		Clock:   lamport.New(),
		Ring:    ring.New(cfg.Self),
		Loop:    eventloop.New(logger.With("component", "eventloop")),
		metrics: cfg.Metrics,
		logger:  logger,
	}

	n.Log = eventlog.New(n.Clock, func() (int64, bool) {
		s := n.Election.Leader()
		return s.LeaderID, s.Known
	}, eventlog.WithLogger(logger))

	n.Election = election.New(election.Config{
		Ring:           n.Ring,
		Transport:      cfg.Transport,
		Schedule:       n.Submit,
		ForwardTimeout: cfg.ForwardTimeout,
		Timeout:        cfg.ElectionTimeout,
		OnLeaderChange: n.leaderChanged,
		OnEvent:        n.electionEvent,
		Logger:         logger.With("component", "election"),
	})

	n.Leader = coordinator.NewLeader(coordinator.LeaderConfig{
		Ring:     n.Ring,
		Clock:    n.Clock,
		Log:      n.Log,
		Sender:   cfg.Transport,
		Interval: cfg.HeartbeatInterval,
		OnHeartbeat: func(sent, failed int) {
			n.metrics.ObserveHeartbeats("sent", sent)
			n.metrics.ObserveHeartbeats("failed", failed)
		},
		Remove: n.RemovePeer,
		Logger: logger,
	})

	n.Monitor = coordinator.NewMonitor(coordinator.MonitorConfig{
		Ring:     n.Ring,
		Remove:   n.Election.RemoveNode,
		Schedule: n.Submit,
		Timeout:  cfg.HeartbeatTimeout,
		Logger:   logger,
	})

	return n
}

// Run drives the event loop and the leader monitor until ctx is cancelled
// or Stop is called.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go n.Monitor.Run(ctx)
	err := n.Loop.Run(ctx)
	n.Leader.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop halts the loop and leader duties.
func (n *Node) Stop() {
	n.Loop.Stop()
	n.Leader.Stop()
}

// Submit queues task on the node's loop. Tasks submitted after shutdown are
// dropped.
func (n *Node) Submit(task func()) {
	if err := n.Loop.Submit(task); err != nil {
		n.logger.Debug("task dropped", "error", err)
	}
}

// Do runs task on the loop and waits for it.
func (n *Node) Do(ctx context.Context, task func()) error {
	return n.Loop.Do(ctx, task)
}

// OnLeaderChange registers fn to run on the loop after every leader change.
func (n *Node) OnLeaderChange(fn func(domain.LeaderState)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hooks = append(n.hooks, fn)
}

// LeaderState returns the current leader view.
func (n *Node) LeaderState() domain.LeaderState {
	return n.Election.Leader()
}

// IsLeader reports whether this node is the acting leader.
func (n *Node) IsLeader() bool {
	return n.Election.IsLeader()
}

// ScheduleStartupElection starts an election after delay.
func (n *Node) ScheduleStartupElection(delay time.Duration) {
	time.AfterFunc(delay, func() {
		n.Submit(func() { n.Election.Start("startup") })
	})
}

// AddPeer adds a node to the ring on the loop.
func (n *Node) AddPeer(peer domain.Node) {
	if peer.ID == n.ID {
		return
	}
	n.Submit(func() { n.Election.AddNode(peer) })
}

// RemovePeer removes a node from the ring on the loop.
func (n *Node) RemovePeer(id int64, reason string) {
	n.Submit(func() { n.Election.RemoveNode(id, reason) })
}

// DeliverElection hands an inbound election message to the loop.
func (n *Node) DeliverElection(msg *domain.Election) {
	n.Submit(func() { n.Election.HandleElection(msg) })
}

// DeliverCoordinator hands an inbound coordinator announcement to the loop.
func (n *Node) DeliverCoordinator(msg *domain.Coordinator) {
	n.Submit(func() { n.Election.HandleCoordinator(msg) })
}

// DeliverHeartbeat hands an inbound leader heartbeat to the loop.
func (n *Node) DeliverHeartbeat(hb *domain.LeaderHeartbeat) {
	n.metrics.ObserveHeartbeats("received", 1)
	n.Submit(func() { n.Monitor.Observe(hb) })
}

func (n *Node) leaderChanged(s domain.LeaderState) {
	n.Leader.OnLeaderChange(s)
	n.Monitor.OnLeaderChange(s)

	n.mu.Lock()
	hooks := append([]func(domain.LeaderState){}, n.hooks...)
	n.mu.Unlock()
	for _, fn := range hooks {
		fn(s)
	}
}

func (n *Node) electionEvent(t domain.EventType, details map[string]any) {
	n.Log.Append(t, details)

	switch t {
	case domain.EventElectionStarted:
		n.metrics.ObserveElection("started")
	case domain.EventLeaderElected:
		n.metrics.ObserveElection("elected")
	case domain.EventNodeRemoved:
		n.metrics.ObserveElection("node_removed")
	case domain.EventNodeAdded:
		n.metrics.ObserveElection("node_added")
	}
}
