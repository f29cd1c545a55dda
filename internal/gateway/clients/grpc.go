package clients

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SettlementServiceName is the health service name the worker registers.
const SettlementServiceName = "settlement.Worker"

type GRPCClients struct {
	Health         healthpb.HealthClient
	settlementConn *grpc.ClientConn
	logger         *zap.Logger
}

// NewGRPCClients dials the settlement worker lazily; the worker does not
// need to be up for the gateway to start.
func NewGRPCClients(target string, logger *zap.Logger) (*GRPCClients, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("settlement worker connection failed: %w", err)
	}

	return &GRPCClients{
		Health:         healthpb.NewHealthClient(conn),
		settlementConn: conn,
		logger:         logger,
	}, nil
}

// IsSettlementWorkerHealthy reports whether the worker answers SERVING.
func (c *GRPCClients) IsSettlementWorkerHealthy(ctx context.Context) bool {
	if c == nil || c.Health == nil {
		return false
	}
	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: SettlementServiceName})
	if err != nil {
		c.logger.Debug("Settlement worker health check failed", zap.Error(err))
		return false
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (c *GRPCClients) Close() {
	if c != nil && c.settlementConn != nil {
		c.settlementConn.Close()
	}
}
