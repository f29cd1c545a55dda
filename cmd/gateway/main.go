package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"syntra-settlement/config"
	"syntra-settlement/internal/catalog"
	"syntra-settlement/internal/database"
	"syntra-settlement/internal/events"
	"syntra-settlement/internal/gateway/clients"
	"syntra-settlement/internal/gateway/handlers"
	"syntra-settlement/internal/gateway/middleware"
	"syntra-settlement/internal/services/bogo"
	"syntra-settlement/internal/services/checkout"
	"syntra-settlement/internal/services/coupon"
	"syntra-settlement/internal/services/invoicesync"
	"syntra-settlement/internal/services/points"
	"syntra-settlement/internal/utils"
	"syntra-settlement/internal/verifone"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := config.NewLogger(cfg.Server.Environment, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to db", zap.Error(err))
	}
	if err := database.MigrateSettlementDB(db); err != nil {
		logger.Fatal("Failed to migrate settlement database", zap.Error(err))
	}

	// Redis only backs the catalog cache and event fan-out; both degrade
	// to no-ops without it.
	var redisClient *redis.Client
	if rdb, err := config.NewRedisClient(cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, running without cache and events", zap.Error(err))
	} else {
		redisClient = rdb
		defer redisClient.Close()
	}

	tokens, err := utils.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("Invalid auth configuration", zap.Error(err))
	}
	rateLimit, err := middleware.RateLimit(cfg.RateLimit.Rate)
	if err != nil {
		logger.Fatal("Invalid rate limit configuration", zap.Error(err))
	}

	grpcClients, err := clients.NewGRPCClients(cfg.Server.GRPCTarget, logger)
	if err != nil {
		logger.Warn("Settlement worker client unavailable", zap.Error(err))
	}
	defer grpcClients.Close()

	catalogStore := catalog.NewStore(db, redisClient, logger, cfg.Catalog)
	couponService := coupon.NewService(db, catalogStore, logger)
	bogoEngine := bogo.NewEngine(catalogStore, logger)
	ledger := points.NewLedger(db, logger, cfg.Points.EarnRate)
	checkoutService := checkout.NewService(db, couponService, bogoEngine, ledger, logger)

	orderStore := invoicesync.NewGormOrderStore(db)
	verifoneClient := verifone.NewClient(cfg.Verifone, logger)
	invoiceJob := invoicesync.NewJob(orderStore, verifoneClient, ledger, events.NewPublisher(redisClient), logger)

	h := handlers.NewSettlementHTTPHandler(handlers.SettlementDeps{
		Checkout:        checkoutService,
		Bogo:            bogoEngine,
		Coupons:         couponService,
		Points:          ledger,
		Invoices:        invoiceJob,
		Orders:          orderStore,
		InvoicesEnabled: cfg.Verifone.Enabled,
		Logger:          logger,
	})

	var worker WorkerHealth
	if grpcClients != nil {
		worker = grpcClients
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.HTTPPort,
		Handler:      newRouter(h, tokens, rateLimit, worker),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	logger.Info("Settlement gateway listening",
		zap.String("address", srv.Addr),
		zap.Bool("verifone_enabled", cfg.Verifone.Enabled),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// In-flight invoice jobs carry their own timeout.
	invoiceJob.Wait()
	logger.Info("Gateway exited")
}
