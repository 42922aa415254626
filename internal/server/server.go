package server

import (
	"log/slog"

	"google.golang.org/grpc"

	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCServer wires the verification service and the standard health
// service behind the request-context interceptor.
func NewGRPCServer(svc VerificationServer, tokens TokenVerifier, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts, grpc.ChainUnaryInterceptor(UnaryInterceptor(tokens, logger)))
	s := grpc.NewServer(opts...)
	RegisterVerificationServer(s, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	// empty string means overall server health
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, hs
}

// ServerOptions derives transport limits from configuration. Receipt uploads
// arrive as a single message, so the receive limit bounds the upload size.
func ServerOptions(cfg common.ServerConfig) []grpc.ServerOption {
	var opts []grpc.ServerOption
	if cfg.MaxRecvMB > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.MaxRecvMB<<20))
	}
	return opts
}
