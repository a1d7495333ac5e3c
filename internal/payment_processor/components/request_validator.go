package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/payment_processor/service"
)

type RequestValidatorImpl struct {
	payments payment.Repository
	logger   *slog.Logger
}

func NewRequestValidator(payments payment.Repository, logger *slog.Logger) service.PaymentValidator {
	return &RequestValidatorImpl{
		payments: payments,
		logger:   logger,
	}
}

// Validate checks payment request validity
func (v *RequestValidatorImpl) Validate(ctx context.Context, request *shared.PaymentRequest) error {
	logger := v.logger
	if request.CorrelationID != "" {
		logger = v.logger.With("correlation_id", request.CorrelationID)
	}

	if !shared.ValidOperationType(request.Operation) {
		logger.Error("Unknown operation type", "payment_id", request.PaymentID.String(), "operation", request.Operation)
		return shared.ErrInvalidOperationType
	}

	// Subscription purchases run synchronously against the coordinator; they
	// never travel through the queue.
	if request.Operation == shared.OperationSubscriptionPayment {
		logger.Error("Subscription payment on async path", "payment_id", request.PaymentID.String())
		return shared.ErrInvalidOperationType
	}

	if request.Amount.IsNegative() {
		logger.Error("Negative amount", "payment_id", request.PaymentID.String(), "amount", request.Amount.String())
		return fmt.Errorf("amount must not be negative: %s: %w", request.Amount.String(), shared.ErrInvalidAmount)
	}
	if request.Amount.IsZero() && request.Operation != shared.OperationAdjustment {
		logger.Error("Zero amount", "payment_id", request.PaymentID.String(), "operation", request.Operation)
		return shared.ErrInvalidAmount
	}

	return nil
}

// CheckProcessed reports whether the payment already reached a terminal state
func (v *RequestValidatorImpl) CheckProcessed(ctx context.Context, request *shared.PaymentRequest) (bool, error) {
	logger := v.logger
	if request.CorrelationID != "" {
		logger = v.logger.With("correlation_id", request.CorrelationID)
	}

	existing, err := v.payments.GetByID(ctx, request.PaymentID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound{}) {
			return false, nil // Row will be recreated during settlement
		}
		logger.Error("Failed to check payment for redelivery", "payment_id", request.PaymentID.String(), "error", err)
		return false, fmt.Errorf("redelivery check failed for payment %s: %w", request.PaymentID.String(), err)
	}

	if existing.Terminal() {
		logger.Info("Payment already settled, skipping", "payment_id", request.PaymentID.String(), "status", existing.Status)
		return true, nil
	}

	return false, nil
}
