package clients

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T) (*health.Server, string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return hs, lis.Addr().String()
}

func TestIsSettlementWorkerHealthy(t *testing.T) {
	hs, addr := startHealthServer(t)
	c, err := NewGRPCClients(addr, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// unknown service until registered
	assert.False(t, c.IsSettlementWorkerHealthy(ctx))

	hs.SetServingStatus(SettlementServiceName, healthpb.HealthCheckResponse_SERVING)
	assert.True(t, c.IsSettlementWorkerHealthy(ctx))

	hs.SetServingStatus(SettlementServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	assert.False(t, c.IsSettlementWorkerHealthy(ctx))
}

func TestIsSettlementWorkerHealthy_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	c, err := NewGRPCClients(addr, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.False(t, c.IsSettlementWorkerHealthy(ctx))
}

func TestIsSettlementWorkerHealthy_NilClients(t *testing.T) {
	var c *GRPCClients
	assert.False(t, c.IsSettlementWorkerHealthy(context.Background()))
	c.Close()
}
