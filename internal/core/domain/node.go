package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Node is a member of the election ring.
//
// Address and Port locate the node's peer endpoint. Identity is ID alone;
// ids are unique across the cluster and their natural order defines the
// ring and the election tie-break.
type Node struct {
	ID            int64     `json:"id"`
	Address       string    `json:"address"`
	Port          int       `json:"port"`
	Alive         bool      `json:"alive"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

// Endpoint returns host:port for the node's peer listener.
func (n Node) Endpoint() string {
	return net.JoinHostPort(n.Address, strconv.Itoa(n.Port))
}

// String implements fmt.Stringer.
func (n Node) String() string {
	return fmt.Sprintf("%d@%s", n.ID, n.Endpoint())
}

// ParsePeer parses a static peer entry of the form "id@host:port".
func ParsePeer(s string) (Node, error) {
	idPart, addr, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok {
		return Node{}, ErrInvalidArgument.WithDetails("peer must be id@host:port: " + s)
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return Node{}, ErrInvalidArgument.WithDetails("peer id: " + idPart).WithCause(err)
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Node{}, ErrInvalidArgument.WithDetails("peer address: " + addr).WithCause(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Node{}, ErrInvalidArgument.WithDetails("peer port: " + portStr)
	}

	return Node{ID: id, Address: host, Port: port, Alive: true}, nil
}

// LeaderState is a node's view of the current leader.
type LeaderState struct {
	LeaderID int64
	Known    bool
	IsSelf   bool
}

// NoLeader is the state before any election has completed.
func NoLeader() LeaderState {
	return LeaderState{}
}

// LeaderOf builds the state for a known leader as seen from selfID.
func LeaderOf(leaderID, selfID int64) LeaderState {
	return LeaderState{LeaderID: leaderID, Known: true, IsSelf: leaderID == selfID}
}

// Ptr returns the leader id, or nil when no leader is known.
func (s LeaderState) Ptr() *int64 {
	if !s.Known {
		return nil
	}
	id := s.LeaderID
	return &id
}
