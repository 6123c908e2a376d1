package rpcv1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
)

// AdminServiceName is the fully-qualified name of the admin service.
const AdminServiceName = "ringchat.admin.v1.AdminService"

// Admin procedures.
const (
	AdminListUsersProcedure       = "/ringchat.admin.v1.AdminService/ListUsers"
	AdminAnnounceProcedure        = "/ringchat.admin.v1.AdminService/Announce"
	AdminKickProcedure            = "/ringchat.admin.v1.AdminService/Kick"
	AdminGetEventLogProcedure     = "/ringchat.admin.v1.AdminService/GetEventLog"
	AdminGetLeaderInfoProcedure   = "/ringchat.admin.v1.AdminService/GetLeaderInfo"
	AdminTriggerElectionProcedure = "/ringchat.admin.v1.AdminService/TriggerElection"
)

// AdminTokenHeader carries the admin bearer token.
const AdminTokenHeader = "Authorization"

type ListUsersRequest struct{}

type ListUsersResponse struct {
	Users []string `json:"users"`
}

type AnnounceRequest struct {
	Message string `json:"message"`
}

type AnnounceResponse struct {
	Success bool `json:"success"`
}

type KickRequest struct {
	Username string `json:"username"`
}

type KickResponse struct {
	Success bool `json:"success"`
}

type GetEventLogRequest struct {
	// Limit caps the number of most recent entries returned. Nil selects the
	// server default of 50; zero returns no entries.
	Limit *int `json:"limit,omitempty"`
}

// Event is one event log entry.
type Event struct {
	LamportTime   int64          `json:"lamportTime"`
	Type          string         `json:"type"`
	Details       map[string]any `json:"details"`
	WallClock     time.Time      `json:"wallClock"`
	CoordinatorID *int64         `json:"coordinatorId"`
}

type GetEventLogResponse struct {
	Events []Event `json:"events"`
}

type GetLeaderInfoRequest struct{}

type GetLeaderInfoResponse struct {
	CurrentLeader *int64  `json:"currentLeader"`
	MyID          int64   `json:"myId"`
	IsLeader      bool    `json:"isLeader"`
	RingNodes     []int64 `json:"ringNodes"`
}

type TriggerElectionRequest struct{}

type TriggerElectionResponse struct {
	ElectionStarted bool `json:"electionStarted"`
}

// AdminServiceHandler is implemented by the control plane.
type AdminServiceHandler interface {
	ListUsers(context.Context, *connect.Request[ListUsersRequest]) (*connect.Response[ListUsersResponse], error)
	Announce(context.Context, *connect.Request[AnnounceRequest]) (*connect.Response[AnnounceResponse], error)
	Kick(context.Context, *connect.Request[KickRequest]) (*connect.Response[KickResponse], error)
	GetEventLog(context.Context, *connect.Request[GetEventLogRequest]) (*connect.Response[GetEventLogResponse], error)
	GetLeaderInfo(context.Context, *connect.Request[GetLeaderInfoRequest]) (*connect.Response[GetLeaderInfoResponse], error)
	TriggerElection(context.Context, *connect.Request[TriggerElectionRequest]) (*connect.Response[TriggerElectionResponse], error)
}

// NewAdminServiceHandler builds an HTTP handler for svc and returns the
// path to mount it on.
func NewAdminServiceHandler(svc AdminServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AdminListUsersProcedure, connect.NewUnaryHandler(AdminListUsersProcedure, svc.ListUsers, opts...))
	mux.Handle(AdminAnnounceProcedure, connect.NewUnaryHandler(AdminAnnounceProcedure, svc.Announce, opts...))
	mux.Handle(AdminKickProcedure, connect.NewUnaryHandler(AdminKickProcedure, svc.Kick, opts...))
	mux.Handle(AdminGetEventLogProcedure, connect.NewUnaryHandler(AdminGetEventLogProcedure, svc.GetEventLog, opts...))
	mux.Handle(AdminGetLeaderInfoProcedure, connect.NewUnaryHandler(AdminGetLeaderInfoProcedure, svc.GetLeaderInfo, opts...))
	mux.Handle(AdminTriggerElectionProcedure, connect.NewUnaryHandler(AdminTriggerElectionProcedure, svc.TriggerElection, opts...))

	return "/" + AdminServiceName + "/", mux
}

// AdminServiceClient calls the control plane.
type AdminServiceClient interface {
	ListUsers(context.Context, *connect.Request[ListUsersRequest]) (*connect.Response[ListUsersResponse], error)
	Announce(context.Context, *connect.Request[AnnounceRequest]) (*connect.Response[AnnounceResponse], error)
	Kick(context.Context, *connect.Request[KickRequest]) (*connect.Response[KickResponse], error)
	GetEventLog(context.Context, *connect.Request[GetEventLogRequest]) (*connect.Response[GetEventLogResponse], error)
	GetLeaderInfo(context.Context, *connect.Request[GetLeaderInfoRequest]) (*connect.Response[GetLeaderInfoResponse], error)
	TriggerElection(context.Context, *connect.Request[TriggerElectionRequest]) (*connect.Response[TriggerElectionResponse], error)
}

type adminServiceClient struct {
	listUsers       *connect.Client[ListUsersRequest, ListUsersResponse]
	announce        *connect.Client[AnnounceRequest, AnnounceResponse]
	kick            *connect.Client[KickRequest, KickResponse]
	getEventLog     *connect.Client[GetEventLogRequest, GetEventLogResponse]
	getLeaderInfo   *connect.Client[GetLeaderInfoRequest, GetLeaderInfoResponse]
	triggerElection *connect.Client[TriggerElectionRequest, TriggerElectionResponse]
}

// NewAdminServiceClient creates a client for the control plane at baseURL,
// for example http://localhost:8000.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AdminServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &adminServiceClient{
		listUsers:       connect.NewClient[ListUsersRequest, ListUsersResponse](httpClient, baseURL+AdminListUsersProcedure, opts...),
		announce:        connect.NewClient[AnnounceRequest, AnnounceResponse](httpClient, baseURL+AdminAnnounceProcedure, opts...),
		kick:            connect.NewClient[KickRequest, KickResponse](httpClient, baseURL+AdminKickProcedure, opts...),
		getEventLog:     connect.NewClient[GetEventLogRequest, GetEventLogResponse](httpClient, baseURL+AdminGetEventLogProcedure, opts...),
		getLeaderInfo:   connect.NewClient[GetLeaderInfoRequest, GetLeaderInfoResponse](httpClient, baseURL+AdminGetLeaderInfoProcedure, opts...),
		triggerElection: connect.NewClient[TriggerElectionRequest, TriggerElectionResponse](httpClient, baseURL+AdminTriggerElectionProcedure, opts...),
	}
}

func (c *adminServiceClient) ListUsers(ctx context.Context, req *connect.Request[ListUsersRequest]) (*connect.Response[ListUsersResponse], error) {
	return c.listUsers.CallUnary(ctx, req)
}

func (c *adminServiceClient) Announce(ctx context.Context, req *connect.Request[AnnounceRequest]) (*connect.Response[AnnounceResponse], error) {
	return c.announce.CallUnary(ctx, req)
}

func (c *adminServiceClient) Kick(ctx context.Context, req *connect.Request[KickRequest]) (*connect.Response[KickResponse], error) {
	return c.kick.CallUnary(ctx, req)
}

func (c *adminServiceClient) GetEventLog(ctx context.Context, req *connect.Request[GetEventLogRequest]) (*connect.Response[GetEventLogResponse], error) {
	return c.getEventLog.CallUnary(ctx, req)
}

func (c *adminServiceClient) GetLeaderInfo(ctx context.Context, req *connect.Request[GetLeaderInfoRequest]) (*connect.Response[GetLeaderInfoResponse], error) {
	return c.getLeaderInfo.CallUnary(ctx, req)
}

func (c *adminServiceClient) TriggerElection(ctx context.Context, req *connect.Request[TriggerElectionRequest]) (*connect.Response[TriggerElectionResponse], error) {
	return c.triggerElection.CallUnary(ctx, req)
}
