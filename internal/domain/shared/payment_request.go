package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOperationType = errors.New("invalid operation type")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

// PaymentRequest defines a Kafka message for asynchronous payment processing.
// Amount is always positive; Operation determines the sign of the applied delta.
type PaymentRequest struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	AccountID      uuid.UUID       `json:"account_id"`
	Operation      OperationType   `json:"operation"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	CorrelationID  string          `json:"correlation_id"`
	Timestamp      time.Time       `json:"timestamp"`
}

// SignedAmount returns the delta this request applies to the account balance.
func (r *PaymentRequest) SignedAmount() decimal.Decimal {
	if r.Operation == OperationWithdrawal {
		return r.Amount.Neg()
	}
	return r.Amount
}
