package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/adhub-billing-ledger/internal/balance"
	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/subscription"
)

// SubscriptionServiceImpl implements the SubscriptionService interface
type SubscriptionServiceImpl struct {
	subscriptionRepo subscription.Repository
	coordinator      balance.Coordinator
	logger           *slog.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(logger *slog.Logger, subscriptionRepo subscription.Repository, coordinator balance.Coordinator) SubscriptionService {
	return &SubscriptionServiceImpl{
		subscriptionRepo: subscriptionRepo,
		coordinator:      coordinator,
		logger:           logger,
	}
}

// Purchase delegates to the balance coordinator, which owns the transaction
// covering the debit and the activation.
func (s *SubscriptionServiceImpl) Purchase(ctx context.Context, accountID, subscriptionID uuid.UUID, period subscription.BillingPeriod, idempotencyKey *string, correlationID string) (*payment.Payment, *ledger.Entry, error) {
	return s.coordinator.PurchaseFromBalance(ctx, accountID, subscriptionID, period, idempotencyKey, correlationID)
}

// GetPlanByID retrieves a subscription plan by its ID
func (s *SubscriptionServiceImpl) GetPlanByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return s.subscriptionRepo.GetByID(ctx, id)
}
