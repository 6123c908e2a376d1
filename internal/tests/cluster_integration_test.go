// Package tests holds end-to-end tests that run several ringchat nodes in
// one process over real loopback sockets.
package tests

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/node"
	"github.com/devansh-12/messaging-app/internal/core/service"
	"github.com/devansh-12/messaging-app/internal/server/chatserver"
	"github.com/devansh-12/messaging-app/internal/server/clusterserver"
	"github.com/devansh-12/messaging-app/internal/telemetry/metric"
)

// testNode is one fully wired ringchat node.
type testNode struct {
	self    domain.Node
	node    *node.Node
	chat    *service.ChatService
	admin   *service.AdminService
	peer    *clusterserver.Server
	chatURL string
	cancel  context.CancelFunc
}

func (tn *testNode) stop(t *testing.T) {
	t.Helper()
	tn.cancel()
	tn.node.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tn.peer.Shutdown(ctx); err != nil {
		t.Logf("peer shutdown: %v", err)
	}
}

func startNode(t *testing.T, id int64, logger *slog.Logger) *testNode {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	self := domain.Node{
		ID:      id,
		Address: "127.0.0.1",
		Port:    ln.Addr().(*net.TCPAddr).Port,
		Alive:   true,
	}
	logger = logger.With("node", id)
	metrics := metric.NewRegistry()

	transport := clusterserver.NewTransport(clusterserver.TransportConfig{
		Self:    self,
		Timeout: 500 * time.Millisecond,
		Logger:  logger,
	})
	n := node.New(node.Config{
		Self:              self,
		Transport:         transport,
		ForwardTimeout:    500 * time.Millisecond,
		ElectionTimeout:   2 * time.Second,
		HeartbeatInterval: 50 * time.Millisecond,
		HeartbeatTimeout:  400 * time.Millisecond,
		Metrics:           metrics,
		Logger:            logger,
	})

	peer := clusterserver.New(clusterserver.Config{Receiver: n, Metrics: metrics, Logger: logger})
	if err := peer.Serve(ln); err != nil {
		t.Fatalf("serve peer: %v", err)
	}

	auth, err := service.NewStaticAuthenticator(nil)
	if err != nil {
		t.Fatalf("static auth: %v", err)
	}
	chat := service.NewChatService(service.ChatConfig{
		Node:         n,
		Auth:         auth,
		Metrics:      metrics,
		LoginTimeout: 2 * time.Second,
		Logger:       logger,
	})
	ts := httptest.NewServer(chatserver.New(chatserver.Config{Chat: chat, Logger: logger}).Handler())

	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)

	tn := &testNode{
		self:    self,
		node:    n,
		chat:    chat,
		admin:   service.NewAdminService(n, chat, logger),
		peer:    peer,
		chatURL: "ws" + strings.TrimPrefix(ts.URL, "http"),
		cancel:  cancel,
	}
	t.Cleanup(func() {
		ts.Close()
		tn.stop(t)
	})
	return tn
}

// startCluster starts nodes with the given ids and tells each about the
// others, as cluster.peers would.
func startCluster(t *testing.T, ids ...int64) map[int64]*testNode {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	nodes := make(map[int64]*testNode, len(ids))
	for _, id := range ids {
		nodes[id] = startNode(t, id, logger)
	}
	for _, a := range nodes {
		for _, b := range nodes {
			if a != b {
				a.node.AddPeer(b.self)
			}
		}
	}
	return nodes
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func agreeOn(nodes map[int64]*testNode, leader int64) func() bool {
	return func() bool {
		for _, tn := range nodes {
			s := tn.node.LeaderState()
			if !s.Known || s.LeaderID != leader {
				return false
			}
		}
		return true
	}
}

func TestCluster_ElectsHighestID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	nodes := startCluster(t, 10, 20, 30)
	nodes[10].node.ScheduleStartupElection(0)

	waitFor(t, "leader 30 on every node", agreeOn(nodes, 30))

	info, err := nodes[20].admin.LeaderInfo(context.Background())
	if err != nil {
		t.Fatalf("LeaderInfo() error = %v", err)
	}
	if info.CurrentLeader == nil || *info.CurrentLeader != 30 || info.IsLeader {
		t.Errorf("LeaderInfo() = %+v, want leader 30 seen from a follower", info)
	}
	if !slices.Equal(info.RingNodes, []int64{10, 20, 30}) {
		t.Errorf("RingNodes = %v, want [10 20 30]", info.RingNodes)
	}
	waitFor(t, "heartbeats at node 10", func() bool {
		p, ok := nodes[10].node.Ring.Get(30)
		return ok && !p.LastHeartbeat.IsZero()
	})
}

func TestCluster_LeaderFailover(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	nodes := startCluster(t, 10, 20, 30)
	nodes[20].node.ScheduleStartupElection(0)
	waitFor(t, "initial leader 30", agreeOn(nodes, 30))

	nodes[30].stop(t)
	survivors := map[int64]*testNode{10: nodes[10], 20: nodes[20]}

	waitFor(t, "leader 20 after failover", agreeOn(survivors, 20))
	waitFor(t, "node 30 dropped from rings", func() bool {
		return !nodes[10].node.Ring.Has(30) && !nodes[20].node.Ring.Has(30)
	})
}

func TestCluster_AdminElectionWithoutLeaderChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	nodes := startCluster(t, 1, 2)
	nodes[1].node.ScheduleStartupElection(0)
	waitFor(t, "leader 2", agreeOn(nodes, 2))

	started, err := nodes[1].admin.TriggerElection(context.Background())
	if err != nil || !started {
		t.Fatalf("TriggerElection() = %v, %v, want started", started, err)
	}
	waitFor(t, "leader 2 re-announced", agreeOn(nodes, 2))
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, m domain.Message) {
	t.Helper()
	frame, err := domain.Encode(m)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func recv(t *testing.T, ws *websocket.Conn) domain.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	m, err := domain.Decode(frame)
	if err != nil {
		t.Fatalf("Decode(%s) error = %v", frame, err)
	}
	return m
}

func login(t *testing.T, url, user, password string) (*websocket.Conn, *domain.LoginReply) {
	t.Helper()
	ws := dial(t, url)
	send(t, ws, &domain.Login{Username: user, Password: password})
	reply, ok := recv(t, ws).(*domain.LoginReply)
	if !ok {
		t.Fatalf("login reply is %T, want *domain.LoginReply", reply)
	}
	return ws, reply
}

func TestCluster_ChatOnLeaderIsCoordinated(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	nodes := startCluster(t, 4, 8)
	nodes[4].node.ScheduleStartupElection(0)
	waitFor(t, "leader 8", agreeOn(nodes, 8))
	waitFor(t, "leader duties on 8", nodes[8].node.Leader.Active)

	url := nodes[8].chatURL
	alice, reply := login(t, url, "alice", "alice123")
	if reply.Status != domain.StatusOK || reply.CurrentLeader == nil || *reply.CurrentLeader != 8 {
		t.Fatalf("alice login = %+v, want ok with leader 8", reply)
	}
	if reply.NodeID == nil || *reply.NodeID != 8 {
		t.Errorf("nodeId = %v, want 8", reply.NodeID)
	}

	bob, _ := login(t, url, "bob", "bob123")
	if joined, ok := recv(t, alice).(*domain.System); !ok || joined.Message != "bob joined" {
		t.Fatalf("alice got %+v, want bob joined", joined)
	}

	send(t, alice, &domain.Chat{Message: "hello ring"})
	got, ok := recv(t, bob).(*domain.Chat)
	if !ok {
		t.Fatalf("bob got %T, want *domain.Chat", got)
	}
	if got.From != "alice" || got.Message != "hello ring" {
		t.Errorf("chat = %+v", got)
	}
	if got.CoordinatedBy == nil || *got.CoordinatedBy != 8 {
		t.Errorf("coordinatedBy = %v, want 8", got.CoordinatedBy)
	}

	users, err := nodes[8].admin.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if !slices.Equal(users, []string{"alice", "bob"}) {
		t.Errorf("ListUsers() = %v, want [alice bob]", users)
	}

	// Credentials are checked on followers too.
	_, reply = login(t, nodes[4].chatURL, "alice", "wrong")
	if reply.Status == domain.StatusOK {
		t.Errorf("login with wrong password = %+v, want failure", reply)
	}
}
