package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/platform/messaging/producers"
)

// PaymentServiceImpl implements the PaymentService interface
type PaymentServiceImpl struct {
	paymentRepo payment.Repository
	producer    producers.MessagePublisher
	logger      *slog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(logger *slog.Logger, paymentRepo payment.Repository, producer producers.MessagePublisher) PaymentService {
	return &PaymentServiceImpl{
		paymentRepo: paymentRepo,
		producer:    producer,
		logger:      logger,
	}
}

// CreatePayment records a PENDING payment and queues the request for the
// processor. The bool return is true when an idempotency key replay short
// circuited to an existing payment.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, request *shared.PaymentRequest) (*payment.Payment, bool, error) {
	if request.IdempotencyKey != nil && *request.IdempotencyKey != "" {
		existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, *request.IdempotencyKey)
		if err != nil {
			s.logger.Error("Failed to check for existing payment with idempotency key",
				"idempotency_key", *request.IdempotencyKey,
				"error", err,
			)
			return nil, false, err
		}

		if existing != nil {
			s.logger.Info("Found existing payment with idempotency key",
				"idempotency_key", *request.IdempotencyKey,
				"payment_id", existing.ID.String(),
				"status", string(existing.Status),
			)
			return existing, true, nil
		}
	}

	// The PENDING row is written before the publish so clients can poll the
	// payment immediately, and so the key is reserved against racing replays.
	p := payment.New(request.AccountID, request.Amount, request.Operation, payment.MethodBalance, request.IdempotencyKey, nil)
	p.ID = request.PaymentID
	if err := s.paymentRepo.Create(ctx, p); err != nil {
		var dupKey payment.ErrDuplicateIdempotencyKey
		if errors.As(err, &dupKey) {
			existing, lookupErr := s.paymentRepo.GetByIdempotencyKey(ctx, dupKey.Key)
			if lookupErr == nil && existing != nil {
				return existing, true, nil
			}
		}
		s.logger.Error("Failed to create pending payment",
			"payment_id", request.PaymentID.String(),
			"account_id", request.AccountID.String(),
			"error", err,
		)
		return nil, false, err
	}

	key := request.PaymentID.String()
	if err := s.producer.Publish(ctx, key, request); err != nil {
		s.logger.Error("Failed to publish payment request",
			"payment_id", request.PaymentID.String(),
			"account_id", request.AccountID.String(),
			"operation", string(request.Operation),
			"amount", request.Amount.String(),
			"error", err,
		)
		return nil, false, err
	}

	s.logger.Info("Payment request published",
		"payment_id", request.PaymentID.String(),
		"account_id", request.AccountID.String(),
		"operation", string(request.Operation),
		"amount", request.Amount.String(),
	)

	return p, false, nil
}

// GetPaymentByID retrieves a payment by its ID. Returns nil if not found
func (s *PaymentServiceImpl) GetPaymentByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	res, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound{}) {
			s.logger.Info("Payment not found", "payment_id", id.String())
			return nil, nil
		}
		s.logger.Error("Failed to get payment by ID", "payment_id", id.String(), "error", err)
		return nil, err
	}
	return res, nil
}
