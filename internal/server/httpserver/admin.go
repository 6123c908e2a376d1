package httpserver

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	rpcv1 "github.com/devansh-12/messaging-app/api/rpc/v1"
	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/service"
	"github.com/devansh-12/messaging-app/internal/telemetry/logger"
)

// AdminHandler implements rpcv1.AdminServiceHandler over service.AdminService.
// Mutating calls are logged through logger.L, so they carry the request id
// when served behind RequestID.
type AdminHandler struct {
	svc *service.AdminService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

var _ rpcv1.AdminServiceHandler = (*AdminHandler)(nil)

// ListUsers implements rpcv1.AdminServiceHandler.
func (h *AdminHandler) ListUsers(
	ctx context.Context,
	_ *connect.Request[rpcv1.ListUsersRequest],
) (*connect.Response[rpcv1.ListUsersResponse], error) {
	users, err := h.svc.ListUsers(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if users == nil {
		users = []string{}
	}
	return connect.NewResponse(&rpcv1.ListUsersResponse{Users: users}), nil
}

// Announce implements rpcv1.AdminServiceHandler.
func (h *AdminHandler) Announce(
	ctx context.Context,
	req *connect.Request[rpcv1.AnnounceRequest],
) (*connect.Response[rpcv1.AnnounceResponse], error) {
	ok, err := h.svc.Announce(ctx, req.Msg.Message)
	if err != nil {
		return nil, toConnectError(err)
	}
	logger.L(ctx).Info("admin announce", "length", len(req.Msg.Message), "delivered", ok)
	return connect.NewResponse(&rpcv1.AnnounceResponse{Success: ok}), nil
}

// Kick implements rpcv1.AdminServiceHandler.
func (h *AdminHandler) Kick(
	ctx context.Context,
	req *connect.Request[rpcv1.KickRequest],
) (*connect.Response[rpcv1.KickResponse], error) {
	if req.Msg.Username == "" {
		return nil, toConnectError(domain.ErrMissingArgument.WithDetails("username"))
	}
	ok, err := h.svc.Kick(ctx, req.Msg.Username)
	if err != nil {
		return nil, toConnectError(err)
	}
	logger.L(ctx).Info("admin kick", "username", req.Msg.Username, "kicked", ok)
	return connect.NewResponse(&rpcv1.KickResponse{Success: ok}), nil
}

// GetEventLog implements rpcv1.AdminServiceHandler.
func (h *AdminHandler) GetEventLog(
	ctx context.Context,
	req *connect.Request[rpcv1.GetEventLogRequest],
) (*connect.Response[rpcv1.GetEventLogResponse], error) {
	limit := -1
	if req.Msg.Limit != nil {
		limit = *req.Msg.Limit
	}
	entries, err := h.svc.EventLog(ctx, limit)
	if err != nil {
		return nil, toConnectError(err)
	}

	events := make([]rpcv1.Event, 0, len(entries))
	for _, e := range entries {
		events = append(events, rpcv1.Event{
			LamportTime:   e.LamportTime,
			Type:          string(e.Type),
			Details:       e.Details,
			WallClock:     e.WallClock,
			CoordinatorID: e.CoordinatorID,
		})
	}
	return connect.NewResponse(&rpcv1.GetEventLogResponse{Events: events}), nil
}

// GetLeaderInfo implements rpcv1.AdminServiceHandler.
func (h *AdminHandler) GetLeaderInfo(
	ctx context.Context,
	_ *connect.Request[rpcv1.GetLeaderInfoRequest],
) (*connect.Response[rpcv1.GetLeaderInfoResponse], error) {
	info, err := h.svc.LeaderInfo(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&rpcv1.GetLeaderInfoResponse{
		CurrentLeader: info.CurrentLeader,
		MyID:          info.MyID,
		IsLeader:      info.IsLeader,
		RingNodes:     info.RingNodes,
	}), nil
}

// TriggerElection implements rpcv1.AdminServiceHandler.
func (h *AdminHandler) TriggerElection(
	ctx context.Context,
	_ *connect.Request[rpcv1.TriggerElectionRequest],
) (*connect.Response[rpcv1.TriggerElectionResponse], error) {
	started, err := h.svc.TriggerElection(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&rpcv1.TriggerElectionResponse{ElectionStarted: started}), nil
}

// NewAdminAuthInterceptor rejects admin calls whose bearer token does not
// hash to tokenHash. An empty tokenHash accepts every call.
func NewAdminAuthInterceptor(tokenHash string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if tokenHash != "" && !bearerValid(req.Header().Get(rpcv1.AdminTokenHeader), tokenHash) {
				return nil, toConnectError(domain.ErrAdminUnauthorized)
			}
			return next(ctx, req)
		}
	}
}

// toConnectError maps a domain error onto the closest Connect code.
func toConnectError(err error) error {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return connect.NewError(connect.CodeInternal, errors.New(domain.ErrInternal.Message))
	}

	code := connect.CodeInternal
	switch httpStatus(de.Code) {
	case 400:
		code = connect.CodeInvalidArgument
	case 401:
		code = connect.CodeUnauthenticated
	case 403:
		code = connect.CodePermissionDenied
	case 404:
		code = connect.CodeNotFound
	case 409:
		code = connect.CodeAlreadyExists
	case 429:
		code = connect.CodeResourceExhausted
	case 503:
		code = connect.CodeUnavailable
	}

	cerr := connect.NewError(code, errors.New(de.Message))
	cerr.Meta().Set("X-Error-Code", de.Code)
	return cerr
}
