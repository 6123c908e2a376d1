package command

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"

	rpcv1 "github.com/devansh-12/messaging-app/api/rpc/v1"
)

// fakeAdmin is an in-memory control plane.
type fakeAdmin struct {
	mu        sync.Mutex
	users     []string
	leader    *int64
	myID      int64
	ring      []int64
	limit     int
	announced []string
	elections int
	lastAuth  string
	token     string
}

func newFakeAdmin() *fakeAdmin {
	leader := int64(7)
	return &fakeAdmin{
		users:  []string{"alice", "bob"},
		leader: &leader,
		myID:   7,
		ring:   []int64{3, 7, 12},
	}
}

// with runs fn under the fake's lock.
func (f *fakeAdmin) with(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func (f *fakeAdmin) check(h http.Header) error {
	f.lastAuth = h.Get("Authorization")
	if f.token != "" && f.lastAuth != "Bearer "+f.token {
		cerr := connect.NewError(connect.CodeUnauthenticated, errors.New("admin token required"))
		cerr.Meta().Set("X-Error-Code", "RC-AUTH-4011")
		return cerr
	}
	return nil
}

func (f *fakeAdmin) ListUsers(_ context.Context, req *connect.Request[rpcv1.ListUsersRequest]) (*connect.Response[rpcv1.ListUsersResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(req.Header()); err != nil {
		return nil, err
	}
	return connect.NewResponse(&rpcv1.ListUsersResponse{Users: append([]string{}, f.users...)}), nil
}

func (f *fakeAdmin) Announce(_ context.Context, req *connect.Request[rpcv1.AnnounceRequest]) (*connect.Response[rpcv1.AnnounceResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, req.Msg.Message)
	return connect.NewResponse(&rpcv1.AnnounceResponse{Success: true}), nil
}

func (f *fakeAdmin) Kick(_ context.Context, req *connect.Request[rpcv1.KickRequest]) (*connect.Response[rpcv1.KickResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if u == req.Msg.Username {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return connect.NewResponse(&rpcv1.KickResponse{Success: true}), nil
		}
	}
	return connect.NewResponse(&rpcv1.KickResponse{Success: false}), nil
}

func (f *fakeAdmin) GetEventLog(_ context.Context, req *connect.Request[rpcv1.GetEventLogRequest]) (*connect.Response[rpcv1.GetEventLogResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Msg.Limit != nil {
		f.limit = *req.Msg.Limit
	}
	return connect.NewResponse(&rpcv1.GetEventLogResponse{Events: []rpcv1.Event{
		{LamportTime: 4, Type: "USER_JOINED", Details: map[string]any{"username": "alice"}, WallClock: time.Now(), CoordinatorID: f.leader},
	}}), nil
}

func (f *fakeAdmin) GetLeaderInfo(context.Context, *connect.Request[rpcv1.GetLeaderInfoRequest]) (*connect.Response[rpcv1.GetLeaderInfoResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return connect.NewResponse(&rpcv1.GetLeaderInfoResponse{
		CurrentLeader: f.leader,
		MyID:          f.myID,
		IsLeader:      f.leader != nil && *f.leader == f.myID,
		RingNodes:     f.ring,
	}), nil
}

// TriggerElection makes the highest ring id the leader.
func (f *fakeAdmin) TriggerElection(context.Context, *connect.Request[rpcv1.TriggerElectionRequest]) (*connect.Response[rpcv1.TriggerElectionResponse], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elections++
	top := f.ring[len(f.ring)-1]
	f.leader = &top
	return connect.NewResponse(&rpcv1.TriggerElectionResponse{ElectionStarted: true}), nil
}

func startFake(t *testing.T, f *fakeAdmin) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(rpcv1.NewAdminServiceHandler(f))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

// harness runs ringchat-admin against one fake server with an isolated
// profile file.
type harness struct {
	t        *testing.T
	url      string
	profiles string
}

func newHarness(t *testing.T, f *fakeAdmin) *harness {
	t.Setenv("RINGCHAT_ADMIN_SERVER", "")
	t.Setenv("RINGCHAT_ADMIN_TOKEN", "")
	return &harness{
		t:        t,
		url:      startFake(t, f),
		profiles: filepath.Join(t.TempDir(), "admin.yaml"),
	}
}

// run executes the command line with --server pointing at the fake.
func (h *harness) run(args ...string) (string, error) {
	return h.runRaw("", append([]string{"--server", h.url}, args...)...)
}

// runRaw executes the command line with only --profile-file added.
func (h *harness) runRaw(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &errOut

	argv := append([]string{"ringchat-admin", "--profile-file", h.profiles}, args...)
	err := app.Run(argv)
	return out.String(), err
}
