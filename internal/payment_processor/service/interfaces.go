package service

import (
	"context"

	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// ProcessingService defines the interface for settling payment requests.
type ProcessingService interface {
	ProcessPayment(ctx context.Context, request *shared.PaymentRequest) error
}

// PaymentValidator validates payment requests before settlement
type PaymentValidator interface {
	Validate(ctx context.Context, request *shared.PaymentRequest) error

	// CheckProcessed reports whether the payment row referenced by the request
	// is already terminal, meaning a redelivered message can be acknowledged
	// without touching the balance again.
	CheckProcessed(ctx context.Context, request *shared.PaymentRequest) (bool, error)
}

// FailureRecorder handles recording failed payments
type FailureRecorder interface {
	RecordFailure(ctx context.Context, request *shared.PaymentRequest, reason shared.FailureReason) error
}
