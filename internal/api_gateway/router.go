package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adhub-billing-ledger/internal/api_gateway/handler"
	"github.com/adhub-billing-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	paymentHandler *handler.PaymentHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	ledgerHandler *handler.LedgerHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Account operations
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:id", accountHandler.GetByID)
			accounts.POST("/:id/adjustments", accountHandler.Adjust)
			accounts.GET("/:id/ledger", ledgerHandler.GetByAccountID)
			accounts.GET("/:id/ledger/verify", ledgerHandler.Verify)
		}

		// Payment operations
		payments := v1.Group("/payments")
		{
			payments.POST("", paymentHandler.Create)
			payments.GET("/:id", paymentHandler.GetByID)
		}

		// Subscription purchases
		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.POST("/:id/purchase", subscriptionHandler.Purchase)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
