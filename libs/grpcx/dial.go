package grpcx

import (
	"context"
	"fmt"
	"time"

	"github.com/62saybyetopain/new-reservation-system/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

// Dial opens a traced, plaintext client connection. The connection is lazy; errors surface on the first call.
func Dial(addr string, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(forwardRequestID),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	return grpc.NewClient(addr, append(opts, extra...)...)
}

// forwardRequestID copies the caller's request id into outgoing metadata. An id set by
// the HTTP middleware wins over one set with WithRequestID.
func forwardRequestID(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	id := httpx.RequestIDFromContext(ctx)
	if id == "" {
		id = RequestIDFromContext(ctx)
	}
	if id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, id)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// CheckHealth asks the health service at addr whether service is SERVING. The call
// carries a request id so a failure can be matched with the server's log line.
func CheckHealth(ctx context.Context, addr, service string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id := RequestIDFromContext(ctx)
	if id == "" {
		id = NewRequestID()
		ctx = WithRequestID(ctx, id)
	}

	conn, err := Dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("health check %s (request %s): %w", service, id, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s is %s (request %s)", service, resp.GetStatus(), id)
	}
	return nil
}
