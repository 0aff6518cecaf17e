package grpcx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const healthMethodPrefix = "/grpc.health.v1.Health/"

// NewServer builds a traced gRPC server with a health service. Every unary call is
// tagged with a request id, logged, and shielded from handler panics.
func NewServer(logger *slog.Logger, extra ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unaryServerInterceptor(logger)),
	}
	opts = append(opts, extra...)

	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// unaryServerInterceptor adopts the caller's x-request-id or mints one, echoes it in the
// response header and writes one log line per call. Successful health checks log at debug.
func unaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		id := incomingRequestID(ctx)
		if id == "" {
			id = NewRequestID()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		ctx = WithRequestID(ctx, id)
		start := time.Now()

		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in grpc handler", "request_id", id, "method", info.FullMethod, "panic", rec)
				err = status.Error(codes.Internal, "internal error")
			}
			code := status.Code(err)
			level := slog.LevelInfo
			switch {
			case code == codes.Internal || code == codes.Unknown || code == codes.DataLoss:
				level = slog.LevelError
			case code != codes.OK:
				level = slog.LevelWarn
			case strings.HasPrefix(info.FullMethod, healthMethodPrefix):
				level = slog.LevelDebug
			}
			logger.Log(ctx, level, "grpc request",
				"request_id", id,
				"method", info.FullMethod,
				"code", code.String(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()
		return handler(ctx, req)
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Serve runs srv on lis until ctx is cancelled, then stops it gracefully.
func Serve(ctx context.Context, srv *grpc.Server, lis net.Listener, logger *slog.Logger) {
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	logger.Info("grpc server starting", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Error("grpc server error", "err", err)
	}
	logger.Info("grpc server stopped")
}
