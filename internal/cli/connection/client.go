package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	rpcv1 "github.com/devansh-12/messaging-app/api/rpc/v1"
	"github.com/devansh-12/messaging-app/internal/infra/buildinfo"
)

// DefaultTimeout bounds one admin call.
const DefaultTimeout = 10 * time.Second

// Client calls one node's admin API.
type Client struct {
	baseURL string
	http    *http.Client
	admin   rpcv1.AdminServiceClient
}

// NewClient creates a client for server, which may omit the scheme.
func NewClient(server, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	hc := &http.Client{Timeout: timeout}

	return &Client{
		baseURL: baseURL,
		http:    hc,
		admin: rpcv1.NewAdminServiceClient(hc, baseURL,
			connect.WithInterceptors(headerInterceptor(token))),
	}
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Users returns the usernames online on the node.
func (c *Client) Users(ctx context.Context) ([]string, error) {
	resp, err := c.admin.ListUsers(ctx, connect.NewRequest(&rpcv1.ListUsersRequest{}))
	if err != nil {
		return nil, describe(err)
	}
	return resp.Msg.Users, nil
}

// Announce sends a system message to every local client.
func (c *Client) Announce(ctx context.Context, message string) (bool, error) {
	resp, err := c.admin.Announce(ctx, connect.NewRequest(&rpcv1.AnnounceRequest{Message: message}))
	if err != nil {
		return false, describe(err)
	}
	return resp.Msg.Success, nil
}

// Kick disconnects a user. It reports false if the user was not online.
func (c *Client) Kick(ctx context.Context, username string) (bool, error) {
	resp, err := c.admin.Kick(ctx, connect.NewRequest(&rpcv1.KickRequest{Username: username}))
	if err != nil {
		return false, describe(err)
	}
	return resp.Msg.Success, nil
}

// Events returns the most recent event log entries, oldest first.
func (c *Client) Events(ctx context.Context, limit int) ([]rpcv1.Event, error) {
	resp, err := c.admin.GetEventLog(ctx, connect.NewRequest(&rpcv1.GetEventLogRequest{Limit: &limit}))
	if err != nil {
		return nil, describe(err)
	}
	return resp.Msg.Events, nil
}

// Leader returns the node's view of the ring and its leader.
func (c *Client) Leader(ctx context.Context) (*rpcv1.GetLeaderInfoResponse, error) {
	resp, err := c.admin.GetLeaderInfo(ctx, connect.NewRequest(&rpcv1.GetLeaderInfoRequest{}))
	if err != nil {
		return nil, describe(err)
	}
	return resp.Msg, nil
}

// Elect asks the node to start an election.
func (c *Client) Elect(ctx context.Context) (bool, error) {
	resp, err := c.admin.TriggerElection(ctx, connect.NewRequest(&rpcv1.TriggerElectionRequest{}))
	if err != nil {
		return false, describe(err)
	}
	return resp.Msg.ElectionStarted, nil
}

// Health probes GET /health and returns the reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body.Status, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return body.Status, nil
}

func headerInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token != "" {
				req.Header().Set(rpcv1.AdminTokenHeader, "Bearer "+token)
			}
			req.Header().Set("User-Agent", userAgent())
			return next(ctx, req)
		}
	}
}

func userAgent() string {
	return "ringchat-admin/" + buildinfo.Version
}

// describe turns a Connect error into "[RC-XXX-NNNN] message" when the
// server attached a ringchat error code.
func describe(err error) error {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return err
	}
	code := cerr.Meta().Get("X-Error-Code")
	if code == "" {
		code = cerr.Code().String()
	}
	return fmt.Errorf("[%s] %s", code, cerr.Message())
}
