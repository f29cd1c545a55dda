package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"syntra-settlement/internal/gateway/handlers"
	"syntra-settlement/internal/gateway/middleware"
	"syntra-settlement/internal/utils"
)

// WorkerHealth reports on the settlement worker process.
type WorkerHealth interface {
	IsSettlementWorkerHealthy(ctx context.Context) bool
}

func newRouter(h *handlers.SettlementHTTPHandler, tokens *utils.TokenManager, rateLimit gin.HandlerFunc, worker WorkerHealth) *gin.Engine {
	r := gin.New()

	r.Use(middleware.CORS())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	if rateLimit != nil {
		r.Use(rateLimit)
	}

	// --- Public API Group ---
	public := r.Group("/api/v1")
	public.Use(middleware.OptionalJWTAuth(tokens))
	{
		checkout := public.Group("/checkout")
		{
			checkout.POST("/bogo", h.ComputeBogo)
			checkout.POST("/quote", h.Quote)
			checkout.POST("/settle", h.Settle)
		}

		coupons := public.Group("/coupons")
		{
			coupons.POST("/validate", h.ValidateCoupon)
			coupons.POST("/auto-apply", h.AutoApplyCoupon)
		}
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(tokens))
	{
		points := protected.Group("/points")
		{
			points.POST("/spend", h.SpendPoints)
			points.GET("/balance", h.PointsBalance)
		}
	}

	r.POST("/webhooks/payment", h.PaymentWebhook)

	r.GET("/health", healthCheckHandler())
	r.GET("/health/detailed", detailedHealthCheckHandler(worker))

	return r
}

func healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"message":   "Server is running",
			"timestamp": time.Now(),
		})
	}
}

func detailedHealthCheckHandler(worker WorkerHealth) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		services := map[string]interface{}{
			"settlement_worker": checkServiceHealth(worker != nil && worker.IsSettlementWorkerHealthy(ctx)),
		}

		overallStatus := "healthy"
		for _, service := range services {
			if serviceMap, ok := service.(map[string]interface{}); ok {
				if serviceMap["status"] != "healthy" {
					overallStatus = "degraded"
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"overall_status": overallStatus,
			"services":       services,
			"timestamp":      time.Now(),
		})
	}
}

func checkServiceHealth(isHealthy bool) map[string]interface{} {
	if !isHealthy {
		return map[string]interface{}{
			"status":  "unavailable",
			"message": "Service not reachable or not serving",
		}
	}
	return map[string]interface{}{
		"status":  "healthy",
		"message": "Service is responding",
	}
}
