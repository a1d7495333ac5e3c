package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/api_gateway"
	"github.com/adhub-billing-ledger/internal/api_gateway/service"
	"github.com/adhub-billing-ledger/internal/balance"
	"github.com/adhub-billing-ledger/internal/config"
	"github.com/adhub-billing-ledger/internal/data/postgres"
	"github.com/adhub-billing-ledger/internal/logger"
	"github.com/adhub-billing-ledger/internal/platform/messaging/producers"
	"github.com/adhub-billing-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize database with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer (publishes settlement requests)
	kafkaProducer, err := producers.NewPaymentReqMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize API Gateway Kafka producer", "error", err)
		os.Exit(1)
	}

	annualDiscount, err := decimal.NewFromString(cfg.Balance.AnnualDiscount)
	if err != nil {
		log.Error("Invalid BALANCE_ANNUAL_DISCOUNT value", "value", cfg.Balance.AnnualDiscount, "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	paymentRepo := postgres.NewPaymentRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	subscriptionRepo := postgres.NewSubscriptionRepository(log, postgresDB)

	// Initialize the balance core shared by synchronous operations
	guard := balance.NewIdempotencyGuard(log, paymentRepo, balance.DedupePolicy{
		Window:           cfg.Balance.DedupeWindow,
		IncludeReference: cfg.Balance.DedupeIncludeReference,
	})
	engine := balance.NewMutationEngine(log, postgresDB.Pool(), accountRepo, ledgerRepo, paymentRepo, outboxRepo, guard)
	coordinator := balance.NewSubscriptionCoordinator(log, postgresDB.Pool(), engine, guard, accountRepo, paymentRepo, subscriptionRepo, annualDiscount)

	// Initialize services
	accountService := service.NewAccountService(accountRepo, engine)
	paymentService := service.NewPaymentService(log, paymentRepo, kafkaProducer)
	subscriptionService := service.NewSubscriptionService(log, subscriptionRepo, coordinator)
	ledgerService := service.NewLedgerService(log, ledgerRepo)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, accountService, paymentService, subscriptionService, ledgerService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = kafkaProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
