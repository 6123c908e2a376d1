package clusterserver

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	rpcv1 "github.com/devansh-12/messaging-app/api/rpc/v1"
	"github.com/devansh-12/messaging-app/internal/core/domain"
)

// Receiver accepts inbound peer traffic. *node.Node implements it.
type Receiver interface {
	AddPeer(peer domain.Node)
	DeliverElection(msg *domain.Election)
	DeliverCoordinator(msg *domain.Coordinator)
	DeliverHeartbeat(hb *domain.LeaderHeartbeat)
}

// Handler implements the PeerService RPC handlers.
//
// Every call is acknowledged as soon as the message is queued on the
// receiver's loop; the sender never waits for election processing.
type Handler struct {
	recv   Receiver
	logger *slog.Logger
}

// NewHandler creates a new RPC handler.
func NewHandler(recv Receiver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{recv: recv, logger: logger}
}

// Election handles the Election RPC.
func (h *Handler) Election(
	ctx context.Context,
	req *connect.Request[rpcv1.ElectionRequest],
) (*connect.Response[rpcv1.Ack], error) {
	if len(req.Msg.CandidateIDs) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, domain.ErrMissingArgument.WithDetails("candidateIds"))
	}
	h.learn(req.Msg.From)

	h.logger.Debug("election received",
		"from", req.Msg.From.NodeID,
		"initiator", req.Msg.InitiatorID,
		"candidates", req.Msg.CandidateIDs)

	h.recv.DeliverElection(&domain.Election{
		CandidateIDs: append([]int64(nil), req.Msg.CandidateIDs...),
		InitiatorID:  req.Msg.InitiatorID,
	})
	return connect.NewResponse(&rpcv1.Ack{}), nil
}

// Coordinator handles the Coordinator RPC.
func (h *Handler) Coordinator(
	ctx context.Context,
	req *connect.Request[rpcv1.CoordinatorRequest],
) (*connect.Response[rpcv1.Ack], error) {
	h.learn(req.Msg.From)

	h.logger.Debug("coordinator received",
		"from", req.Msg.From.NodeID,
		"leader", req.Msg.LeaderID,
		"initiator", req.Msg.InitiatorID)

	h.recv.DeliverCoordinator(&domain.Coordinator{
		LeaderID:    req.Msg.LeaderID,
		InitiatorID: req.Msg.InitiatorID,
	})
	return connect.NewResponse(&rpcv1.Ack{}), nil
}

// Heartbeat handles the Heartbeat RPC.
func (h *Handler) Heartbeat(
	ctx context.Context,
	req *connect.Request[rpcv1.HeartbeatRequest],
) (*connect.Response[rpcv1.Ack], error) {
	h.learn(req.Msg.From)

	h.recv.DeliverHeartbeat(&domain.LeaderHeartbeat{
		LeaderID:  req.Msg.LeaderID,
		WallClock: req.Msg.WallClock,
	})
	return connect.NewResponse(&rpcv1.Ack{}), nil
}

// learn adds the sender to the ring. A node that was dropped after a failed
// send rejoins as soon as it talks to us again.
func (h *Handler) learn(from rpcv1.PeerInfo) {
	if from.NodeID == 0 && from.Address == "" {
		return
	}
	h.recv.AddPeer(domain.Node{
		ID:      from.NodeID,
		Address: from.Address,
		Port:    from.Port,
		Alive:   true,
	})
}
