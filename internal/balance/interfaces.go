// Package balance implements the balance mutation core: guarded, versioned
// account updates with an append-only audit trail. Every mutation runs inside
// a single database transaction covering the account CAS, the ledger append
// and the outbox write.
package balance

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/domain/subscription"
)

// DeltaParams describes one requested balance mutation. Amount is signed:
// negative debits, positive credits, zero is allowed only for adjustments
// recorded as audit markers.
type DeltaParams struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	Operation      shared.OperationType
	ReferenceID    *uuid.UUID // payment row this delta settles, nil before the row exists
	SubscriptionID *uuid.UUID
	IdempotencyKey *string
	CorrelationID  string
}

// Guard screens a requested mutation against prior payments before any state
// is written. It returns DuplicateOperationError, ErrOperationInFlight or nil.
type Guard interface {
	Check(ctx context.Context, params DeltaParams) error
}

// Engine applies guarded balance mutations.
type Engine interface {
	// ApplyDelta runs the full pipeline: guard check, payment record, CAS
	// update, ledger append and outbox write, all in one transaction it owns.
	ApplyDelta(ctx context.Context, params DeltaParams) (*payment.Payment, *ledger.Entry, error)

	// ApplyDeltaInTx is the raw mutation primitive for callers that own their
	// transaction. It performs no guard check and no payment bookkeeping.
	ApplyDeltaInTx(ctx context.Context, tx pgx.Tx, params DeltaParams) (*ledger.Entry, error)
}

// Coordinator purchases subscriptions from account balance: the debit and the
// activation commit or roll back together.
type Coordinator interface {
	PurchaseFromBalance(ctx context.Context, accountID, subscriptionID uuid.UUID, period subscription.BillingPeriod, idempotencyKey *string, correlationID string) (*payment.Payment, *ledger.Entry, error)
}
