package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"syntra-settlement/config"
	"syntra-settlement/internal/database"
	"syntra-settlement/internal/gateway/clients"
	"syntra-settlement/internal/services/points"
	"syntra-settlement/internal/verifone"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := config.NewLogger(cfg.Server.Environment, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to db", zap.Error(err))
	}
	if err := database.MigrateSettlementDB(db); err != nil {
		logger.Fatal("Failed to migrate settlement database", zap.Error(err))
	}

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		logger.Fatal("Failed to listen", zap.Error(err))
	}

	s := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus(clients.SettlementServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	if cfg.Verifone.Enabled {
		ledger := points.NewLedger(db, logger, cfg.Points.EarnRate)
		loyalty := verifone.NewClient(cfg.Verifone, logger)
		go func() {
			defer close(done)
			runPointsSync(ctx, ledger, loyalty, cfg.Sync, logger)
		}()
	} else {
		logger.Info("Loyalty service disabled, scheduled points sync is off")
		close(done)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down settlement worker...")
		healthServer.Shutdown()
		s.GracefulStop()
	}()

	logger.Info("Settlement worker listening", zap.String("address", lis.Addr().String()))
	if err := s.Serve(lis); err != nil {
		logger.Fatal("Failed to serve", zap.Error(err))
	}
	<-done
	logger.Info("Settlement worker exited")
}
