package grpcapi

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func dialHealth(t *testing.T, h *Health) grpc_health_v1.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(zap.NewNop())
	h.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return grpc_health_v1.NewHealthClient(conn)
}

func servingStatus(client grpc_health_v1.HealthClient) grpc_health_v1.HealthCheckResponse_ServingStatus {
	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN
	}
	return resp.GetStatus()
}

func TestHealth(t *testing.T) {
	h := NewHealth()
	client := dialHealth(t, h)

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, servingStatus(client))

	h.SetServing()
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, servingStatus(client))

	h.Shutdown()
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, servingStatus(client))
}

func TestHealth_Watch(t *testing.T) {
	h := NewHealth()
	h.SetServing()
	client := dialHealth(t, h)

	var failing atomic.Bool
	failing.Store(true)
	ping := func(ctx context.Context) error {
		if failing.Load() {
			return errors.New("db unreachable")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Watch(ctx, 5*time.Millisecond, ping, zap.NewNop())

	assert.Eventually(t, func() bool {
		return servingStatus(client) == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, time.Second, 10*time.Millisecond)

	failing.Store(false)
	assert.Eventually(t, func() bool {
		return servingStatus(client) == grpc_health_v1.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)
}
