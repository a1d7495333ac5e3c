package components

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/payment_processor/service"
)

type FailureRecorderImpl struct {
	payments payment.Repository
	logger   *slog.Logger
}

func NewFailureRecorder(payments payment.Repository, logger *slog.Logger) service.FailureRecorder {
	return &FailureRecorderImpl{
		payments: payments,
		logger:   logger,
	}
}

// RecordFailure marks the request's payment FAILED, creating the row first
// when the gateway's PENDING record never made it to the store.
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, request *shared.PaymentRequest, reason shared.FailureReason) error {
	logger := r.logger
	if request.CorrelationID != "" {
		logger = r.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Recording failed payment", "payment_id", request.PaymentID.String(), "reason", string(reason))

	existing, err := r.payments.GetByID(ctx, request.PaymentID)
	if err != nil && !errors.Is(err, payment.ErrPaymentNotFound{}) {
		logger.Error("Failed to look up payment before recording failure", "payment_id", request.PaymentID.String(), "error", err)
		return err
	}

	if existing != nil {
		if existing.Terminal() {
			logger.Info("Payment already terminal, leaving as is", "payment_id", request.PaymentID.String(), "status", existing.Status)
			return nil
		}
		if err := r.payments.MarkFailed(ctx, request.PaymentID, string(reason)); err != nil {
			logger.Error("Failed to mark payment FAILED", "payment_id", request.PaymentID.String(), "error", err)
			return err
		}
		return nil
	}

	p := payment.New(request.AccountID, request.Amount, request.Operation, payment.MethodBalance, request.IdempotencyKey, nil)
	p.ID = request.PaymentID
	p.Status = shared.PaymentStatusFailed
	p.FailureReason = string(reason)
	now := time.Now().UTC()
	p.ProcessedAt = &now

	if err := r.payments.Create(ctx, p); err != nil {
		logger.Error("Failed to create FAILED payment", "payment_id", request.PaymentID.String(), "error", err)
		return err
	}
	return nil
}
