package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// Method identifies how a payment is funded.
type Method string

const (
	MethodBalance  Method = "BALANCE"
	MethodExternal Method = "EXTERNAL"
)

// Payment is the collaborator record a balance mutation settles. The core only
// drives its status machine: PENDING -> SUCCESS on a committed debit/credit,
// PENDING -> FAILED on a validation failure. Both outcomes are terminal here;
// refunds create new, linked records instead of mutating these.
type Payment struct {
	ID             uuid.UUID            `json:"id"`
	AccountID      uuid.UUID            `json:"account_id"`
	Amount         decimal.Decimal      `json:"amount"` // always positive; operation determines direction
	Operation      shared.OperationType `json:"operation"`
	Status         shared.PaymentStatus `json:"status"`
	Method         Method               `json:"method"`
	IdempotencyKey *string              `json:"idempotency_key,omitempty"`
	SubscriptionID *uuid.UUID           `json:"subscription_id,omitempty"`
	FailureReason  string               `json:"failure_reason,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ProcessedAt    *time.Time           `json:"processed_at,omitempty"`
}

// New creates a PENDING payment.
func New(accountID uuid.UUID, amount decimal.Decimal, op shared.OperationType, method Method, idempotencyKey *string, subscriptionID *uuid.UUID) *Payment {
	return &Payment{
		ID:             uuid.New(),
		AccountID:      accountID,
		Amount:         amount,
		Operation:      op,
		Status:         shared.PaymentStatusPending,
		Method:         method,
		IdempotencyKey: idempotencyKey,
		SubscriptionID: subscriptionID,
		CreatedAt:      time.Now().UTC(),
	}
}

// Terminal reports whether the payment reached SUCCESS or FAILED.
func (p *Payment) Terminal() bool {
	return p.Status == shared.PaymentStatusSuccess || p.Status == shared.PaymentStatusFailed
}
