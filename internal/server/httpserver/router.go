package httpserver

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	rpcv1 "github.com/devansh-12/messaging-app/api/rpc/v1"
	"github.com/devansh-12/messaging-app/internal/core/service"
	"github.com/devansh-12/messaging-app/internal/server/clusterserver"
	"github.com/devansh-12/messaging-app/internal/telemetry/metric"
)

// RouterConfig holds configuration for the admin router.
type RouterConfig struct {
	Admin   *service.AdminService
	Metrics *metric.Registry
	Ready   ReadinessCheck

	// AdminTokenHash is the SHA-256 hex of the admin bearer token. Empty
	// disables token checks.
	AdminTokenHash string

	// MetricsAuthRequired puts /metrics behind the admin token as well.
	MetricsAuthRequired bool

	// AllowList restricts admin calls to these IPs or CIDRs.
	AllowList []string

	// RateLimit is the per-IP request rate for admin calls. Zero disables it.
	RateLimit int

	Logger *slog.Logger
}

// NewRouter builds the admin listener's handler.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	log := cfg.Logger

	mux := http.NewServeMux()

	mux.Handle("GET /health", http.HandlerFunc(handleHealth))
	mux.Handle("GET /ready", handleReady(cfg.Ready))

	metricsAuth := ""
	if cfg.MetricsAuthRequired {
		metricsAuth = cfg.AdminTokenHash
	}
	mux.Handle("GET /metrics", TokenAuth(metricsAuth)(cfg.Metrics.Handler()))

	if cfg.Admin != nil {
		interceptors := append(
			[]connect.Interceptor{NewAdminAuthInterceptor(cfg.AdminTokenHash)},
			clusterserver.DefaultInterceptors(log, cfg.Metrics)...,
		)
		path, handler := rpcv1.NewAdminServiceHandler(
			NewAdminHandler(cfg.Admin),
			connect.WithInterceptors(interceptors...),
		)
		mux.Handle(path, Chain(handler,
			NetworkACL(cfg.AllowList, log),
			RateLimit(cfg.RateLimit),
		))
	}

	// Order: RequestID -> Recover -> Audit -> routes
	return Chain(mux,
		RequestID(log),
		Recover(log),
		Audit(log),
	)
}
