package clusterserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	rpcv1 "github.com/devansh-12/messaging-app/api/rpc/v1"
	"github.com/devansh-12/messaging-app/internal/telemetry/metric"
)

var errPanic = errors.New("internal server error: panic recovered")

// NewLoggingInterceptor logs each unary call on either side of the wire.
// Heartbeats, and requests without a procedure, log at debug.
func NewLoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			call := req.Spec()
			attrs := []any{
				"method", call.Procedure,
				"peer", req.Peer().Addr,
				"client", call.IsClient,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case err != nil:
				logger.WarnContext(ctx, "rpc error", append(attrs, "error", err)...)
			case call.Procedure == "" || isHeartbeat(call.Procedure):
				logger.DebugContext(ctx, "rpc", attrs...)
			default:
				logger.InfoContext(ctx, "rpc", attrs...)
			}
			return resp, err
		}
	}
}

// NewRecoveryInterceptor turns a handler panic into CodeInternal.
func NewRecoveryInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (resp connect.AnyResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "rpc panic recovered", "method", req.Spec().Procedure, "panic", r)
					resp, err = nil, connect.NewError(connect.CodeInternal, errPanic)
				}
			}()
			return next(ctx, req)
		}
	}
}

// NewMetricsInterceptor counts calls and observes latency per procedure and
// result code.
func NewMetricsInterceptor(m *metric.Registry) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			m.ObserveRequest(req.Spec().Procedure, code, time.Since(start).Seconds())
			return resp, err
		}
	}
}

// DefaultInterceptors is the server-side chain, outermost first.
func DefaultInterceptors(logger *slog.Logger, m *metric.Registry) []connect.Interceptor {
	return []connect.Interceptor{
		NewRecoveryInterceptor(logger),
		NewMetricsInterceptor(m),
		NewLoggingInterceptor(logger),
	}
}

func isHeartbeat(procedure string) bool {
	return procedure == rpcv1.PeerHeartbeatProcedure
}
