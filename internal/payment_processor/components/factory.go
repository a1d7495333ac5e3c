package components

import (
	"log/slog"

	"github.com/adhub-billing-ledger/internal/balance"
	"github.com/adhub-billing-ledger/internal/config"
	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/outbox"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/payment_processor/service"
	"github.com/adhub-billing-ledger/internal/platform/persistence"
)

// CreateProcessingService creates a new ProcessingService with all its dependencies.
func CreateProcessingService(
	pgDB *persistence.PostgresDB,
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	paymentRepo payment.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProcessingService {
	guard := balance.NewIdempotencyGuard(logger, paymentRepo, balance.DedupePolicy{
		Window:           cfg.Balance.DedupeWindow,
		IncludeReference: cfg.Balance.DedupeIncludeReference,
	})
	engine := balance.NewMutationEngine(logger, pgDB.Pool(), accountRepo, ledgerRepo, paymentRepo, outboxRepo, guard)

	validator := NewRequestValidator(paymentRepo, logger)
	failureRecorder := NewFailureRecorder(paymentRepo, logger)

	baseService := service.NewProcessingService(
		pgDB.Pool(),
		engine,
		guard,
		paymentRepo,
		validator,
		failureRecorder,
		logger,
	)

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)

	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
