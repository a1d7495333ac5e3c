package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adhub-billing-ledger/internal/balance"
	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/platform/persistence"
)

// casRetries bounds how often a settlement restarts after losing the
// optimistic lock race before the message goes back to Kafka for redelivery.
const casRetries = 3

type ProcessingServiceImpl struct {
	db              persistence.TxBeginner
	engine          balance.Engine
	guard           balance.Guard
	payments        payment.Repository
	validator       PaymentValidator
	failureRecorder FailureRecorder
	logger          *slog.Logger
}

func NewProcessingService(
	db persistence.TxBeginner,
	engine balance.Engine,
	guard balance.Guard,
	payments payment.Repository,
	validator PaymentValidator,
	failureRecorder FailureRecorder,
	logger *slog.Logger,
) ProcessingService {
	return &ProcessingServiceImpl{
		db:              db,
		engine:          engine,
		guard:           guard,
		payments:        payments,
		validator:       validator,
		failureRecorder: failureRecorder,
		logger:          logger,
	}
}

// ProcessPayment settles one payment request against the account balance. A
// nil return acknowledges the Kafka message; business rejections mark the
// payment FAILED and still return nil, only infrastructure errors propagate
// so the message is redelivered.
func (s *ProcessingServiceImpl) ProcessPayment(ctx context.Context, request *shared.PaymentRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Processing payment", "payment_id", request.PaymentID.String(), "account_id", request.AccountID.String())

	// 1. Validate the request
	if err := s.validator.Validate(ctx, request); err != nil {
		logger.Error("Payment validation failed", "payment_id", request.PaymentID.String(), "error", err)

		reason := shared.FailureReasonInvalidAmount
		if errors.Is(err, shared.ErrInvalidOperationType) {
			reason = shared.FailureReasonUnknownError
		}

		if recordErr := s.failureRecorder.RecordFailure(ctx, request, reason); recordErr != nil {
			logger.Error("Failed to record payment failure", "payment_id", request.PaymentID.String(), "error", recordErr)
		}
		return nil // Acknowledge the message
	}

	// 2. Skip redelivered messages whose payment already settled
	skip, err := s.validator.CheckProcessed(ctx, request)
	if err != nil {
		return err // Let Kafka retry
	}
	if skip {
		return nil
	}

	// 3. Screen for duplicates. The request's own payment row is excluded via
	// the reference id, so redeliveries of a PENDING payment pass through.
	params := balance.DeltaParams{
		AccountID:      request.AccountID,
		Amount:         request.SignedAmount(),
		Operation:      request.Operation,
		ReferenceID:    &request.PaymentID,
		IdempotencyKey: request.IdempotencyKey,
		CorrelationID:  request.CorrelationID,
	}
	if err := s.guard.Check(ctx, params); err != nil {
		reason, terminal := failureReasonFor(err)
		if !terminal {
			return err // Let Kafka retry
		}
		logger.Warn("Payment rejected by duplicate screen", "payment_id", request.PaymentID.String(), "reason", string(reason))
		if recordErr := s.failureRecorder.RecordFailure(ctx, request, reason); recordErr != nil {
			logger.Error("Failed to record duplicate rejection", "payment_id", request.PaymentID.String(), "error", recordErr)
		}
		return nil
	}

	// 4. Settle, restarting the transaction on optimistic lock races
	for attempt := 0; attempt < casRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.settleOnce(ctx, request, params)
		if err == nil {
			logger.Info("Payment settled", "payment_id", request.PaymentID.String(), "account_id", request.AccountID.String())
			return nil
		}

		if errors.Is(err, account.ErrVersionConflict{}) {
			logger.Warn("Lost optimistic lock race, retrying",
				"payment_id", request.PaymentID.String(), "attempt", attempt+1)
			continue
		}

		reason, terminal := failureReasonFor(err)
		if !terminal {
			logger.Error("Settlement failed", "payment_id", request.PaymentID.String(), "error", err)
			return err // Let Kafka retry
		}

		logger.Warn("Payment rejected", "payment_id", request.PaymentID.String(), "reason", string(reason))
		if recordErr := s.failureRecorder.RecordFailure(ctx, request, reason); recordErr != nil {
			logger.Error("Failed to record payment failure", "payment_id", request.PaymentID.String(), "error", recordErr)
		}
		return nil
	}

	// Redelivery restarts the whole pipeline with a fresh version read.
	return fmt.Errorf("payment %s lost the optimistic lock race %d times", request.PaymentID.String(), casRetries)
}

// settleOnce runs one settlement attempt in its own transaction: ensure the
// PENDING payment row exists, apply the delta and mark the payment SUCCESS.
func (s *ProcessingServiceImpl) settleOnce(ctx context.Context, request *shared.PaymentRequest, params balance.DeltaParams) (err error) {
	var tx pgx.Tx
	tx, err = s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for payment %s: %w", request.PaymentID.String(), err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error("Failed to rollback transaction", "payment_id", request.PaymentID.String(), "error", rbErr)
			}
		}
	}()

	payments := s.payments.WithTx(tx)

	// The gateway normally creates the PENDING row before publishing; recreate
	// it here when the request outlived a lost row.
	if _, err = payments.GetByID(ctx, request.PaymentID); err != nil {
		if !errors.Is(err, payment.ErrPaymentNotFound{}) {
			return err
		}
		p := payment.New(request.AccountID, request.Amount, request.Operation, payment.MethodBalance, request.IdempotencyKey, nil)
		p.ID = request.PaymentID
		if err = payments.Create(ctx, p); err != nil {
			return err
		}
	}

	if _, err = s.engine.ApplyDeltaInTx(ctx, tx, params); err != nil {
		return err
	}

	if err = payments.MarkSuccess(ctx, request.PaymentID, time.Now().UTC()); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit settlement for payment %s: %w", request.PaymentID.String(), err)
	}
	return nil
}

// failureReasonFor maps an error to a terminal failure reason. The second
// return is false for errors that should go back to Kafka instead of marking
// the payment FAILED.
func failureReasonFor(err error) (shared.FailureReason, bool) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound{}):
		return shared.FailureReasonAccountNotFound, true
	case errors.Is(err, account.ErrInsufficientBalance):
		return shared.FailureReasonInsufficientBalance, true
	case errors.Is(err, shared.ErrInvalidAmount):
		return shared.FailureReasonInvalidAmount, true
	case errors.Is(err, payment.DuplicateOperationError{}):
		return shared.FailureReasonDuplicateOperation, true
	case errors.Is(err, payment.ErrOperationInFlight):
		return shared.FailureReasonOperationInFlight, true
	default:
		return shared.FailureReasonUnknownError, false
	}
}
