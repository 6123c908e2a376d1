package rpcv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// PeerServiceName is the fully-qualified name of the peer service.
const PeerServiceName = "ringchat.peer.v1.PeerService"

// Peer procedures.
const (
	PeerElectionProcedure    = "/ringchat.peer.v1.PeerService/Election"
	PeerCoordinatorProcedure = "/ringchat.peer.v1.PeerService/Coordinator"
	PeerHeartbeatProcedure   = "/ringchat.peer.v1.PeerService/Heartbeat"
)

// PeerInfo identifies the sending node so the receiver can add it to its
// ring.
type PeerInfo struct {
	NodeID  int64  `json:"nodeId"`
	Address string `json:"address"`
	Port    int    `json:"port"`
}

type ElectionRequest struct {
	From         PeerInfo `json:"from"`
	CandidateIDs []int64  `json:"candidateIds"`
	InitiatorID  int64    `json:"initiatorId"`
}

type CoordinatorRequest struct {
	From        PeerInfo `json:"from"`
	LeaderID    int64    `json:"leaderId"`
	InitiatorID int64    `json:"initiatorId"`
}

type HeartbeatRequest struct {
	From      PeerInfo `json:"from"`
	LeaderID  int64    `json:"leaderId"`
	WallClock float64  `json:"wallClock"`
}

// Ack acknowledges receipt. Processing happens later on the receiver's loop.
type Ack struct{}

// PeerServiceHandler is implemented by every node.
type PeerServiceHandler interface {
	Election(context.Context, *connect.Request[ElectionRequest]) (*connect.Response[Ack], error)
	Coordinator(context.Context, *connect.Request[CoordinatorRequest]) (*connect.Response[Ack], error)
	Heartbeat(context.Context, *connect.Request[HeartbeatRequest]) (*connect.Response[Ack], error)
}

// NewPeerServiceHandler builds an HTTP handler for svc and returns the path
// to mount it on.
func NewPeerServiceHandler(svc PeerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(PeerElectionProcedure, connect.NewUnaryHandler(PeerElectionProcedure, svc.Election, opts...))
	mux.Handle(PeerCoordinatorProcedure, connect.NewUnaryHandler(PeerCoordinatorProcedure, svc.Coordinator, opts...))
	mux.Handle(PeerHeartbeatProcedure, connect.NewUnaryHandler(PeerHeartbeatProcedure, svc.Heartbeat, opts...))

	return "/" + PeerServiceName + "/", mux
}

// PeerServiceClient sends to one peer.
type PeerServiceClient interface {
	Election(context.Context, *connect.Request[ElectionRequest]) (*connect.Response[Ack], error)
	Coordinator(context.Context, *connect.Request[CoordinatorRequest]) (*connect.Response[Ack], error)
	Heartbeat(context.Context, *connect.Request[HeartbeatRequest]) (*connect.Response[Ack], error)
}

type peerServiceClient struct {
	election    *connect.Client[ElectionRequest, Ack]
	coordinator *connect.Client[CoordinatorRequest, Ack]
	heartbeat   *connect.Client[HeartbeatRequest, Ack]
}

// NewPeerServiceClient creates a client for the peer at baseURL.
func NewPeerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PeerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &peerServiceClient{
		election:    connect.NewClient[ElectionRequest, Ack](httpClient, baseURL+PeerElectionProcedure, opts...),
		coordinator: connect.NewClient[CoordinatorRequest, Ack](httpClient, baseURL+PeerCoordinatorProcedure, opts...),
		heartbeat:   connect.NewClient[HeartbeatRequest, Ack](httpClient, baseURL+PeerHeartbeatProcedure, opts...),
	}
}

func (c *peerServiceClient) Election(ctx context.Context, req *connect.Request[ElectionRequest]) (*connect.Response[Ack], error) {
	return c.election.CallUnary(ctx, req)
}

func (c *peerServiceClient) Coordinator(ctx context.Context, req *connect.Request[CoordinatorRequest]) (*connect.Response[Ack], error) {
	return c.coordinator.CallUnary(ctx, req)
}

func (c *peerServiceClient) Heartbeat(ctx context.Context, req *connect.Request[HeartbeatRequest]) (*connect.Response[Ack], error) {
	return c.heartbeat.CallUnary(ctx, req)
}
