package clusterserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/hashicorp/memberlist"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/telemetry/logger"
)

// Discovery finds ring members through memberlist gossip.
//
// Each node gossips its id and peer RPC address as metadata. Join and
// leave events are translated into domain.Node values for the ring.
type Discovery struct {
	selfID     int64
	memberList *memberlist.Memberlist
	logger     *slog.Logger

	mu       sync.Mutex
	shutdown bool
	onJoin   func(domain.Node)
	onLeave  func(domain.Node)
}

// DiscoveryConfig configures the discovery mechanism.
type DiscoveryConfig struct {
	// NodeID is the ring id of the local node.
	NodeID int64

	// BindAddr and BindPort locate the gossip listener. Port 0 picks a
	// free port.
	BindAddr string
	BindPort int

	// PeerAddr is the local peer RPC endpoint (host:port) advertised to
	// other nodes.
	PeerAddr string

	// SeedNodes are gossip addresses to join at startup.
	SeedNodes []string

	Logger *slog.Logger
}

// nodeMetadata is gossiped with every member.
type nodeMetadata struct {
	NodeID   int64  `json:"nodeId"`
	PeerAddr string `json:"peerAddr"`
}

// NewDiscovery starts gossip and joins the seed nodes, if any.
// Callbacks registered later still see members that join afterwards.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	log := cfg.Logger.With("component", "discovery")

	meta, err := json.Marshal(nodeMetadata{NodeID: cfg.NodeID, PeerAddr: cfg.PeerAddr})
	if err != nil {
		return nil, fmt.Errorf("encode node metadata: %w", err)
	}

	d := &Discovery{selfID: cfg.NodeID, logger: log}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = MemberName(cfg.NodeID)
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	mlConfig.Delegate = &metadataDelegate{meta: meta}
	mlConfig.Events = &eventDelegate{discovery: d}
	mlConfig.Logger = logger.StdLogger("memberlist", log)

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	d.memberList = ml

	if len(cfg.SeedNodes) > 0 {
		n, err := ml.Join(cfg.SeedNodes)
		if err != nil {
			ml.Shutdown()
			return nil, fmt.Errorf("join seed nodes: %w", err)
		}
		log.Info("joined cluster",
			"node_id", cfg.NodeID,
			"seed_nodes", cfg.SeedNodes,
			"joined_count", n)
	} else {
		log.Info("started discovery (bootstrap mode)", "node_id", cfg.NodeID)
	}

	return d, nil
}

// MemberName is the gossip name of a ring node.
func MemberName(id int64) string {
	return "ringchat-" + strconv.FormatInt(id, 10)
}

// OnJoin registers a callback for members that join.
func (d *Discovery) OnJoin(fn func(domain.Node)) {
	d.mu.Lock()
	d.onJoin = fn
	d.mu.Unlock()
}

// OnLeave registers a callback for members that leave or fail.
func (d *Discovery) OnLeave(fn func(domain.Node)) {
	d.mu.Lock()
	d.onLeave = fn
	d.mu.Unlock()
}

// Peers returns every known remote member as a ring node.
func (d *Discovery) Peers() []domain.Node {
	var out []domain.Node
	for _, m := range d.memberList.Members() {
		n, ok := d.decode(m)
		if ok && n.ID != d.selfID {
			out = append(out, n)
		}
	}
	return out
}

// LocalAddr returns the gossip address actually bound.
func (d *Discovery) LocalAddr() string {
	local := d.memberList.LocalNode()
	return net.JoinHostPort(local.Addr.String(), strconv.Itoa(int(local.Port)))
}

// Leave broadcasts our departure.
func (d *Discovery) Leave() error {
	if err := d.memberList.Leave(0); err != nil {
		d.logger.Error("failed to leave cluster", "error", err)
		return err
	}
	d.logger.Info("left cluster")
	return nil
}

// Shutdown stops gossip. It is safe to call more than once.
func (d *Discovery) Shutdown() error {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return nil
	}
	d.shutdown = true
	d.mu.Unlock()

	if err := d.memberList.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	d.logger.Info("discovery shutdown complete")
	return nil
}

func (d *Discovery) decode(m *memberlist.Node) (domain.Node, bool) {
	var meta nodeMetadata
	if err := json.Unmarshal(m.Meta, &meta); err != nil || meta.PeerAddr == "" {
		d.logger.Warn("member without ringchat metadata", "member", m.Name)
		return domain.Node{}, false
	}
	n, err := domain.ParsePeer(strconv.FormatInt(meta.NodeID, 10) + "@" + meta.PeerAddr)
	if err != nil {
		d.logger.Warn("member with bad peer address", "member", m.Name, "error", err)
		return domain.Node{}, false
	}
	return n, true
}

// eventDelegate implements memberlist.EventDelegate.
type eventDelegate struct {
	discovery *Discovery
}

// NotifyJoin is called when a node joins.
func (e *eventDelegate) NotifyJoin(m *memberlist.Node) {
	d := e.discovery
	n, ok := d.decode(m)
	if !ok || n.ID == d.selfID {
		return
	}
	d.logger.Info("node joined", "node_id", n.ID, "peer_addr", n.Endpoint())

	d.mu.Lock()
	fn := d.onJoin
	d.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// NotifyLeave is called when a node leaves or is declared dead.
func (e *eventDelegate) NotifyLeave(m *memberlist.Node) {
	d := e.discovery
	n, ok := d.decode(m)
	if !ok || n.ID == d.selfID {
		return
	}
	d.logger.Info("node left", "node_id", n.ID)

	d.mu.Lock()
	fn := d.onLeave
	d.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// NotifyUpdate is called when a node's metadata changes.
func (e *eventDelegate) NotifyUpdate(m *memberlist.Node) {
	e.discovery.logger.Debug("node updated", "member", m.Name)
}

// metadataDelegate provides node metadata to memberlist.
type metadataDelegate struct {
	meta []byte
}

// NodeMeta returns metadata about this node (up to limit bytes).
func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return m.meta[:limit]
	}
	return m.meta
}

// NotifyMsg is called when a user message is received (not used).
func (m *metadataDelegate) NotifyMsg([]byte) {}

// GetBroadcasts is called to get broadcasts to send (not used).
func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

// LocalState returns the local state for synchronization (not used).
func (m *metadataDelegate) LocalState(join bool) []byte {
	return nil
}

// MergeRemoteState merges remote state (not used).
func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool) {}
