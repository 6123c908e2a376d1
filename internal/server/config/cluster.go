package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/domain"
)

// ResolveNodeID returns node.id, or a value derived from now when it is
// unset.
func ResolveNodeID(cfg *ServerConfig, now time.Time) int64 {
	if cfg.Node.ID != 0 {
		return cfg.Node.ID
	}
	id := now.Unix() % 10000
	if id == 0 {
		id = 10000
	}
	return id
}

// SelfNode is the ring entry other nodes use to reach this one.
func SelfNode(cfg *ServerConfig, id int64) (domain.Node, error) {
	_, portStr, err := net.SplitHostPort(cfg.Server.Peer.Addr)
	if err != nil {
		return domain.Node{}, fmt.Errorf("server.peer.addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return domain.Node{}, fmt.Errorf("server.peer.addr port %q: %w", portStr, err)
	}
	host := cfg.Server.Peer.Advertise
	if host == "" {
		host = DefaultAdvertise
	}
	return domain.Node{ID: id, Address: host, Port: port, Alive: true}, nil
}

// StaticPeers parses cluster.peers. Entries naming selfID are skipped.
func StaticPeers(cfg *ServerConfig, selfID int64) ([]domain.Node, error) {
	peers := make([]domain.Node, 0, len(cfg.Cluster.Peers))
	seen := make(map[int64]string, len(cfg.Cluster.Peers))
	for _, entry := range cfg.Cluster.Peers {
		n, err := domain.ParsePeer(entry)
		if err != nil {
			return nil, fmt.Errorf("cluster.peers: %w", err)
		}
		if prev, dup := seen[n.ID]; dup {
			return nil, fmt.Errorf("cluster.peers: id %d listed twice (%s, %s)", n.ID, prev, entry)
		}
		seen[n.ID] = entry
		if n.ID == selfID {
			continue
		}
		peers = append(peers, n)
	}
	return peers, nil
}
