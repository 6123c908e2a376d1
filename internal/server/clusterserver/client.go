package clusterserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"

	rpcv1 "github.com/devansh-12/messaging-app/api/rpc/v1"
	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/pkg/cmap"
)

// DefaultDialTimeout bounds one peer RPC when the caller's context has no
// deadline.
const DefaultDialTimeout = 2 * time.Second

// TransportConfig configures a Transport.
type TransportConfig struct {
	// Self is advertised on every request so receivers can add us.
	Self domain.Node

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client

	Timeout time.Duration
	Logger  *slog.Logger
}

// Transport sends election, coordinator and heartbeat messages to peers
// over the PeerService. Clients are cached per endpoint.
type Transport struct {
	self    rpcv1.PeerInfo
	http    *http.Client
	timeout time.Duration
	clients *cmap.Map[string, rpcv1.PeerServiceClient]
	opts    []connect.ClientOption
	logger  *slog.Logger
}

// NewTransport creates a peer transport.
func NewTransport(cfg TransportConfig) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDialTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Transport{
		self: rpcv1.PeerInfo{
			NodeID:  cfg.Self.ID,
			Address: cfg.Self.Address,
			Port:    cfg.Self.Port,
		},
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
		clients: cmap.New[string, rpcv1.PeerServiceClient](),
		opts:    []connect.ClientOption{connect.WithInterceptors(NewLoggingInterceptor(cfg.Logger))},
		logger:  cfg.Logger,
	}
}

// SendElection implements node.Transport.
func (t *Transport) SendElection(ctx context.Context, to domain.Node, msg *domain.Election) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()

	_, err := t.client(to).Election(ctx, connect.NewRequest(&rpcv1.ElectionRequest{
		From:         t.self,
		CandidateIDs: msg.CandidateIDs,
		InitiatorID:  msg.InitiatorID,
	}))
	return t.wrap(to, err)
}

// SendCoordinator implements node.Transport.
func (t *Transport) SendCoordinator(ctx context.Context, to domain.Node, msg *domain.Coordinator) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()

	_, err := t.client(to).Coordinator(ctx, connect.NewRequest(&rpcv1.CoordinatorRequest{
		From:        t.self,
		LeaderID:    msg.LeaderID,
		InitiatorID: msg.InitiatorID,
	}))
	return t.wrap(to, err)
}

// SendHeartbeat implements node.Transport.
func (t *Transport) SendHeartbeat(ctx context.Context, to domain.Node, hb *domain.LeaderHeartbeat) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()

	_, err := t.client(to).Heartbeat(ctx, connect.NewRequest(&rpcv1.HeartbeatRequest{
		From:      t.self,
		LeaderID:  hb.LeaderID,
		WallClock: hb.WallClock,
	}))
	return t.wrap(to, err)
}

// Forget drops the cached client for a peer that left.
func (t *Transport) Forget(peer domain.Node) {
	t.clients.Delete(peer.Endpoint())
}

// Cached returns the number of cached peer clients.
func (t *Transport) Cached() int {
	return t.clients.Count()
}

func (t *Transport) client(to domain.Node) rpcv1.PeerServiceClient {
	endpoint := to.Endpoint()
	if c, ok := t.clients.Get(endpoint); ok {
		return c
	}
	c := rpcv1.NewPeerServiceClient(t.http, "http://"+endpoint, t.opts...)
	c, _ = t.clients.GetOrSet(endpoint, c)
	return c
}

func (t *Transport) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t *Transport) wrap(to domain.Node, err error) error {
	if err == nil {
		return nil
	}
	return domain.ErrPeerUnreachable.WithDetails(fmt.Sprintf("node %d at %s", to.ID, to.Endpoint())).WithCause(err)
}
