package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

const defaultDialTimeout = 3 * time.Second

// errUnreachable marks a health endpoint that never became ready.
var errUnreachable = errors.New("grpc health endpoint unreachable")

// GRPCStatus answers service availability with the standard gRPC health protocol.
type GRPCStatus struct {
	Endpoint    string
	Service     string
	DialTimeout time.Duration
	// DebugSink receives the raw health response as JSON when set.
	DebugSink io.Writer
}

// Available reports SERVING for the configured service. An unknown service reads as unavailable.
func (g GRPCStatus) Available(ctx context.Context) (bool, error) {
	endpoint := strings.TrimSpace(g.Endpoint)
	if endpoint == "" {
		return false, errors.New("grpc health endpoint is empty")
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return false, fmt.Errorf("create grpc client %s: %w", endpoint, err)
	}
	defer conn.Close()

	if err := g.ready(ctx, conn); err != nil {
		return false, fmt.Errorf("connect grpc health endpoint %s: %w", endpoint, err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: g.Service})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("grpc health check: %w", err)
	}

	if g.DebugSink != nil {
		if raw, err := protojson.Marshal(resp); err == nil {
			_, _ = g.DebugSink.Write(append(raw, '\n'))
		}
	}

	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// ready waits for conn to become Ready within the dial timeout.
// A transient failure ends the wait at once with errUnreachable.
func (g GRPCStatus) ready(ctx context.Context, conn *grpc.ClientConn) error {
	timeout := g.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure, connectivity.Shutdown:
			return fmt.Errorf("%w: connection %s", errUnreachable, strings.ToLower(state.String()))
		}

		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("%w: still %s after %s", errUnreachable, strings.ToLower(state.String()), timeout)
		}
	}
}
