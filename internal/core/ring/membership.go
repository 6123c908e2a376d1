// Package ring maintains the ordered membership used for ring elections.
//
// Members are kept sorted by id; the successor of a node is the next higher
// id, wrapping to the lowest. The local node is always a member. Callers
// must ask for the successor each time they need it: any Add or Remove can
// change it.
package ring

import (
	"slices"
	"sync"
	"time"

	"github.com/devansh-12/messaging-app/internal/core/domain"
)

// Membership is the set of known ring nodes. It is safe for concurrent use.
type Membership struct {
	mu        sync.RWMutex
	selfID    int64
	nodes     map[int64]domain.Node
	order     []int64
	leaderID  int64
	hasLeader bool

	listeners []func(ids []int64)
}

// New creates a membership containing only self.
func New(self domain.Node) *Membership {
	self.Alive = true
	m := &Membership{
		selfID: self.ID,
		nodes:  map[int64]domain.Node{self.ID: self},
	}
	m.reorder()
	return m
}

// SelfID returns the local node id.
func (m *Membership) SelfID() int64 {
	return m.selfID
}

// OnChange registers fn to be called with the sorted ids after every
// mutation. fn runs outside the membership lock.
func (m *Membership) OnChange(fn func(ids []int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Add inserts or overwrites a node. It reports whether the id was new.
func (m *Membership) Add(n domain.Node) bool {
	m.mu.Lock()
	_, existed := m.nodes[n.ID]
	if existed && n.LastHeartbeat.IsZero() {
		n.LastHeartbeat = m.nodes[n.ID].LastHeartbeat
	}
	n.Alive = true
	m.nodes[n.ID] = n
	m.reorder()
	ids, listeners := m.snapshotLocked()
	m.mu.Unlock()

	notify(listeners, ids)
	return !existed
}

// Remove deletes a node and reports whether it was the acting leader, in
// which case the leader is cleared and the caller should start an election.
// Removing self or an unknown id is a no-op returning false.
func (m *Membership) Remove(id int64) bool {
	m.mu.Lock()
	if id == m.selfID {
		m.mu.Unlock()
		return false
	}
	if _, ok := m.nodes[id]; !ok {
		m.mu.Unlock()
		return false
	}

	delete(m.nodes, id)
	m.reorder()
	wasLeader := m.hasLeader && m.leaderID == id
	if wasLeader {
		m.hasLeader = false
		m.leaderID = 0
	}
	ids, listeners := m.snapshotLocked()
	m.mu.Unlock()

	notify(listeners, ids)
	return wasLeader
}

// SuccessorOf returns the node after id in ring order. It returns false if
// id is not a member. A single-member ring is its own successor.
func (m *Membership) SuccessorOf(id int64) (domain.Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, found := slices.BinarySearch(m.order, id)
	if !found || len(m.order) == 0 {
		return domain.Node{}, false
	}
	next := m.order[(i+1)%len(m.order)]
	return m.nodes[next], true
}

// Successor returns the local node's successor.
func (m *Membership) Successor() (domain.Node, bool) {
	return m.SuccessorOf(m.selfID)
}

// Get returns the node with the given id.
func (m *Membership) Get(id int64) (domain.Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// Has reports whether id is a member.
func (m *Membership) Has(id int64) bool {
	_, ok := m.Get(id)
	return ok
}

// Nodes returns all members sorted by id.
func (m *Membership) Nodes() []domain.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Node, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.nodes[id])
	}
	return out
}

// Peers returns all members except self, sorted by id.
func (m *Membership) Peers() []domain.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Node, 0, len(m.order))
	for _, id := range m.order {
		if id != m.selfID {
			out = append(out, m.nodes[id])
		}
	}
	return out
}

// IDs returns the sorted member ids.
func (m *Membership) IDs() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Len returns the number of members.
func (m *Membership) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// SetLeader records the acting leader. It is a no-op for unknown ids.
func (m *Membership) SetLeader(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return
	}
	m.leaderID = id
	m.hasLeader = true
}

// ClearLeader forgets the acting leader.
func (m *Membership) ClearLeader() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaderID = 0
	m.hasLeader = false
}

// Leader returns the acting leader id, if any.
func (m *Membership) Leader() (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.leaderID, m.hasLeader
}

// MarkHeartbeat records a heartbeat from id. It returns false for unknown ids.
func (m *Membership) MarkHeartbeat(id int64, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return false
	}
	n.LastHeartbeat = at
	n.Alive = true
	m.nodes[id] = n
	return true
}

func (m *Membership) reorder() {
	order := make([]int64, 0, len(m.nodes))
	for id := range m.nodes {
		order = append(order, id)
	}
	slices.Sort(order)
	m.order = order
}

func (m *Membership) snapshotLocked() ([]int64, []func([]int64)) {
	if len(m.listeners) == 0 {
		return nil, nil
	}
	return slices.Clone(m.order), slices.Clone(m.listeners)
}

func notify(listeners []func([]int64), ids []int64) {
	for _, fn := range listeners {
		fn(ids)
	}
}
