package election

import (
	"context"
	"slices"
	"testing"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/ring"
)

// queue is a single-threaded stand-in for the event loops of every node in
// a test cluster. Sends are spawned inline, so draining the queue runs the
// whole protocol deterministically.
type queue struct {
	tasks []func()
}

func (q *queue) push(task func()) {
	q.tasks = append(q.tasks, task)
}

func (q *queue) drain(t *testing.T) {
	t.Helper()
	for i := 0; len(q.tasks) > 0; i++ {
		if i > 10000 {
			t.Fatal("queue did not settle")
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		task()
	}
}

type cluster struct {
	q       *queue
	tr      *LocalTransport
	engines map[int64]*Engine
	events  map[int64][]domain.EventType
	changes map[int64][]domain.LeaderState
}

func testNode(id int64) domain.Node {
	return domain.Node{ID: id, Address: "127.0.0.1", Port: 8700 + int(id)}
}

func newCluster(ids ...int64) *cluster {
	c := &cluster{
		q:       &queue{},
		tr:      NewLocalTransport(),
		engines: make(map[int64]*Engine),
		events:  make(map[int64][]domain.EventType),
		changes: make(map[int64][]domain.LeaderState),
	}
	for _, id := range ids {
		m := ring.New(testNode(id))
		for _, other := range ids {
			if other != id {
				m.Add(testNode(other))
			}
		}
		id := id
		e := New(Config{
			Ring:      m,
			Transport: c.tr,
			Schedule:  c.q.push,
			Spawn:     func(task func()) { task() },
			OnLeaderChange: func(s domain.LeaderState) {
				c.changes[id] = append(c.changes[id], s)
			},
			OnEvent: func(t domain.EventType, _ map[string]any) {
				c.events[id] = append(c.events[id], t)
			},
		})
		c.engines[id] = e
		c.tr.Register(e)
	}
	return c
}

func (c *cluster) assertLeader(t *testing.T, id, want int64) {
	t.Helper()
	e := c.engines[id]
	got := e.Leader()
	if !got.Known || got.LeaderID != want {
		t.Errorf("node %d leader = %+v, want %d", id, got, want)
	}
	if got.IsSelf != (id == want) {
		t.Errorf("node %d IsSelf = %v, want %v", id, got.IsSelf, id == want)
	}
	if e.State() != Idle {
		t.Errorf("node %d state = %v, want idle", id, e.State())
	}
	if rid, ok := e.cfg.Ring.Leader(); !ok || rid != want {
		t.Errorf("node %d ring leader = %d, %v; want %d", id, rid, ok, want)
	}
}

func TestEngine_HighestIDWinsFromAnyInitiator(t *testing.T) {
	for _, initiator := range []int64{3, 7, 12} {
		c := newCluster(3, 7, 12)
		if !c.engines[initiator].Start("startup") {
			t.Fatalf("Start() at %d = false", initiator)
		}
		c.q.drain(t)

		for _, id := range []int64{3, 7, 12} {
			c.assertLeader(t, id, 12)
		}
	}
}

func TestEngine_StartTwice(t *testing.T) {
	c := newCluster(3, 7, 12)
	e := c.engines[3]

	if !e.Start("first") {
		t.Fatal("first Start() = false, want true")
	}
	if e.Start("second") {
		t.Error("second Start() = true, want false while in progress")
	}
	if e.State() != InProgress {
		t.Errorf("State() = %v, want in_progress", e.State())
	}

	c.q.drain(t)
	if !e.Start("third") {
		t.Error("Start() after completion = false, want true")
	}
}

func TestEngine_DeadMemberSkipped(t *testing.T) {
	c := newCluster(3, 7, 12)
	c.tr.SetDown(12, true)

	c.engines[3].Start("startup")
	c.q.drain(t)

	c.assertLeader(t, 3, 7)
	c.assertLeader(t, 7, 7)
	if c.engines[7].cfg.Ring.Has(12) {
		t.Error("node 7 still has unreachable node 12 in its ring")
	}
	if !slices.Contains(c.events[7], domain.EventNodeRemoved) {
		t.Errorf("node 7 events = %v, want NODE_REMOVED", c.events[7])
	}
}

func TestEngine_SoleMemberElectsItself(t *testing.T) {
	c := newCluster(5)
	c.engines[5].Start("startup")
	c.q.drain(t)

	c.assertLeader(t, 5, 5)
}

func TestEngine_CollapsesToSelfWhenPeersDead(t *testing.T) {
	c := newCluster(1, 2)
	c.tr.SetDown(2, true)

	c.engines[1].Start("startup")
	c.q.drain(t)

	c.assertLeader(t, 1, 1)
	if got := c.engines[1].cfg.Ring.IDs(); !slices.Equal(got, []int64{1}) {
		t.Errorf("ring = %v, want [1]", got)
	}
}

func TestEngine_RemovingLeaderTriggersElection(t *testing.T) {
	c := newCluster(3, 7, 12)
	c.engines[3].Start("startup")
	c.q.drain(t)

	c.tr.SetDown(12, true)
	if !c.engines[3].RemoveNode(12, "heartbeat timeout") {
		t.Fatal("RemoveNode(leader) = false, want true")
	}
	if got := c.engines[3].Leader(); got.Known {
		t.Errorf("leader after removal = %+v, want none", got)
	}
	c.q.drain(t)

	c.assertLeader(t, 3, 7)
	c.assertLeader(t, 7, 7)

	changes := c.changes[7]
	last := changes[len(changes)-1]
	if !last.IsSelf || last.LeaderID != 7 {
		t.Errorf("node 7 last leader change = %+v, want self", last)
	}
}

func TestEngine_RemoveNonLeader(t *testing.T) {
	c := newCluster(3, 7, 12)
	c.engines[3].Start("startup")
	c.q.drain(t)

	if c.engines[3].RemoveNode(7, "gossip leave") {
		t.Error("RemoveNode(non-leader) = true, want false")
	}
	if c.engines[3].RemoveNode(3, "self") {
		t.Error("RemoveNode(self) = true, want false")
	}
	if c.engines[3].State() != Idle {
		t.Errorf("State() = %v, want idle", c.engines[3].State())
	}
	c.assertLeader(t, 3, 12)
}

func TestEngine_LeaderChangeCallback(t *testing.T) {
	c := newCluster(3, 7, 12)
	c.engines[7].Start("startup")
	c.q.drain(t)

	for id, changes := range c.changes {
		if len(changes) != 1 {
			t.Errorf("node %d saw %d leader changes, want 1", id, len(changes))
			continue
		}
		if changes[0].LeaderID != 12 || changes[0].IsSelf != (id == 12) {
			t.Errorf("node %d change = %+v", id, changes[0])
		}
	}

	// Re-announcing the same leader does not fire the callback again.
	c.engines[3].HandleCoordinator(&domain.Coordinator{LeaderID: 12, InitiatorID: 7})
	if len(c.changes[3]) != 1 {
		t.Errorf("node 3 saw %d leader changes, want 1", len(c.changes[3]))
	}
}

func TestEngine_StaleOwnElectionIgnored(t *testing.T) {
	c := newCluster(3, 7, 12)
	e := c.engines[3]

	e.HandleElection(&domain.Election{CandidateIDs: []int64{3, 7}, InitiatorID: 3})
	c.q.drain(t)

	if got := e.Leader(); got.Known {
		t.Errorf("leader = %+v, want none", got)
	}
}

type recordingTransport struct {
	elections    []*domain.Election
	coordinators []*domain.Coordinator
	to           []int64
}

func (r *recordingTransport) SendElection(_ context.Context, to domain.Node, msg *domain.Election) error {
	r.elections = append(r.elections, msg)
	r.to = append(r.to, to.ID)
	return nil
}

func (r *recordingTransport) SendCoordinator(_ context.Context, to domain.Node, msg *domain.Coordinator) error {
	r.coordinators = append(r.coordinators, msg)
	r.to = append(r.to, to.ID)
	return nil
}

func newRecordingEngine(self int64, others ...int64) (*Engine, *recordingTransport, *queue) {
	m := ring.New(testNode(self))
	for _, id := range others {
		m.Add(testNode(id))
	}
	rt := &recordingTransport{}
	q := &queue{}
	e := New(Config{
		Ring:      m,
		Transport: rt,
		Schedule:  q.push,
		Spawn:     func(task func()) { task() },
	})
	return e, rt, q
}

func TestEngine_RelayAppendsOnlyWhenHighest(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want []int64
	}{
		{name: "higher than all", in: []int64{3}, want: []int64{3, 7}},
		{name: "lower than one", in: []int64{3, 12}, want: []int64{3, 12}},
		{name: "empty list", in: nil, want: []int64{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rt, _ := newRecordingEngine(7, 3, 12)
			e.HandleElection(&domain.Election{CandidateIDs: tt.in, InitiatorID: 3})

			if len(rt.elections) != 1 {
				t.Fatalf("sent %d elections, want 1", len(rt.elections))
			}
			if got := rt.elections[0].CandidateIDs; !slices.Equal(got, tt.want) {
				t.Errorf("CandidateIDs = %v, want %v", got, tt.want)
			}
			if rt.to[0] != 12 {
				t.Errorf("sent to %d, want successor 12", rt.to[0])
			}
		})
	}
}

func TestEngine_DropsElectionThatCircled(t *testing.T) {
	e, rt, q := newRecordingEngine(7, 3, 12)
	e.HandleElection(&domain.Election{CandidateIDs: []int64{5, 7}, InitiatorID: 5})
	q.drain(t)

	if len(rt.elections) != 0 {
		t.Errorf("forwarded %d elections, want 0", len(rt.elections))
	}
}

func TestEngine_CoordinatorStopsBeforeInitiator(t *testing.T) {
	e, rt, _ := newRecordingEngine(7, 3, 12)

	e.HandleCoordinator(&domain.Coordinator{LeaderID: 12, InitiatorID: 12})
	if len(rt.coordinators) != 0 {
		t.Errorf("forwarded to initiator; sent %d", len(rt.coordinators))
	}

	e.HandleCoordinator(&domain.Coordinator{LeaderID: 12, InitiatorID: 3})
	if len(rt.coordinators) != 1 || rt.to[0] != 12 {
		t.Errorf("coordinators = %d to %v, want 1 to 12", len(rt.coordinators), rt.to)
	}
}

func TestEngine_ExpireRestarts(t *testing.T) {
	e, _, _ := newRecordingEngine(3, 7)
	var started int
	e.cfg.OnEvent = func(t domain.EventType, _ map[string]any) {
		if t == domain.EventElectionStarted {
			started++
		}
	}

	e.Start("startup")
	e.expire(0)
	if started != 1 {
		t.Errorf("expire(old round) restarted; started = %d", started)
	}

	e.expire(1)
	if started != 2 {
		t.Errorf("started = %d, want 2 after expiry", started)
	}
	if e.State() != InProgress {
		t.Errorf("State() = %v, want in_progress", e.State())
	}
}

func TestEngine_AddNode(t *testing.T) {
	c := newCluster(3)
	e := c.engines[3]

	if !e.AddNode(testNode(9)) {
		t.Error("AddNode(new) = false")
	}
	if e.AddNode(testNode(9)) {
		t.Error("AddNode(existing) = true")
	}
	if got := c.events[3]; !slices.Equal(got, []domain.EventType{domain.EventNodeAdded}) {
		t.Errorf("events = %v, want one NODE_ADDED", got)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{InProgress, "in_progress"},
		{Completed, "completed"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
