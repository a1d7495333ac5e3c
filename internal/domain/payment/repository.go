package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// ErrOperationInFlight means a matching payment (same dedupe scope key) was
// created inside the trailing dedup window without an explicit idempotency
// key. The caller should back off rather than resubmit immediately.
var ErrOperationInFlight = errors.New("matching operation already in flight")

// Repository manages payment persistence. The idempotency_key column carries a
// unique constraint, so a concurrent insert with a reserved key surfaces as
// ErrDuplicateIdempotencyKey instead of a silent second payment.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// GetByIdempotencyKey returns (nil, nil) when no payment holds the key.
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)

	// FindRecent looks for a payment on the account with the same operation
	// type and amount (and same subscription reference, when given) created at
	// or after since, excluding excludeID so a request never collides with its
	// own row. Returns (nil, nil) when nothing matches.
	FindRecent(ctx context.Context, accountID uuid.UUID, operation shared.OperationType, amount decimal.Decimal, subscriptionID *uuid.UUID, since time.Time, excludeID *uuid.UUID) (*Payment, error)

	MarkSuccess(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	WithTx(tx pgx.Tx) Repository
}

// DuplicateOperationError means an idempotency key was already consumed by an
// earlier payment. The referenced payment is the authoritative result.
type DuplicateOperationError struct {
	PaymentID uuid.UUID
}

func (e DuplicateOperationError) Error() string {
	return "duplicate operation: idempotency key already used by payment " + e.PaymentID.String()
}

// Is matches any DuplicateOperationError when the target carries a nil id.
func (e DuplicateOperationError) Is(target error) bool {
	t, ok := target.(DuplicateOperationError)
	if !ok {
		return false
	}
	if t.PaymentID == uuid.Nil {
		return true
	}
	return e.PaymentID == t.PaymentID
}

// ErrDuplicateIdempotencyKey indicates the unique constraint on
// idempotency_key rejected an insert.
type ErrDuplicateIdempotencyKey struct {
	Key string
}

func (e ErrDuplicateIdempotencyKey) Error() string {
	return "idempotency key already reserved: " + e.Key
}

// ErrPaymentNotFound indicates missing payment
type ErrPaymentNotFound struct {
	PaymentID uuid.UUID
}

func (e ErrPaymentNotFound) Error() string {
	return "payment not found: " + e.PaymentID.String()
}

// Is matches any ErrPaymentNotFound when the target carries a nil payment id.
func (e ErrPaymentNotFound) Is(target error) bool {
	t, ok := target.(ErrPaymentNotFound)
	if !ok {
		return false
	}
	if t.PaymentID == uuid.Nil {
		return true
	}
	return e.PaymentID == t.PaymentID
}
