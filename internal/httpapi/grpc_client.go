package httpapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"recruitgate.org/internal/audit"
)

// HealthClient queries a gRPC health service, e.g. the portal's.
type HealthClient struct {
	conn *grpc.ClientConn
	svc  healthpb.HealthClient
}

// DialHealth connects to target. Without options the transport is insecure.
func DialHealth(target string, opts ...grpc.DialOption) (*HealthClient, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial health %s: %w", target, err)
	}
	return &HealthClient{conn: conn, svc: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the underlying connection.
func (c *HealthClient) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Serving reports whether service is SERVING. An empty service asks for the
// server as a whole.
func (c *HealthClient) Serving(ctx context.Context, service string) (bool, error) {
	resp, err := c.svc.Check(outgoingWithRequestID(ctx), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func outgoingWithRequestID(ctx context.Context) context.Context {
	if rid := audit.RequestIDFromContext(ctx); rid != "" {
		return metadata.AppendToOutgoingContext(ctx, "x-request-id", rid)
	}
	return ctx
}
