package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/domain/subscription"
)

// AccountService defines the interface for account operations
type AccountService interface {
	// CreateAccount opens a fresh account with zero balance and version 1
	CreateAccount(ctx context.Context) (*account.Account, error)

	// GetAccountByID retrieves an account by its ID
	// Returns ErrAccountNotFound if the account doesn't exist
	GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error)

	// Adjust applies a signed manual correction to the account balance. It
	// settles synchronously and returns the payment record and ledger entry.
	Adjust(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, idempotencyKey *string, correlationID string) (*payment.Payment, *ledger.Entry, error)
}

// PaymentService defines the interface for asynchronous payment operations
type PaymentService interface {
	// CreatePayment records a PENDING payment and queues it for settlement.
	// When the request carries an idempotency key that an earlier payment
	// already consumed, the earlier payment is returned instead and nothing
	// is queued.
	CreatePayment(ctx context.Context, request *shared.PaymentRequest) (*payment.Payment, bool, error)

	// GetPaymentByID retrieves a payment by its ID
	// Returns nil if the payment is not found
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
}

// SubscriptionService defines the interface for subscription purchases
type SubscriptionService interface {
	// Purchase debits the plan cost from the account balance and activates
	// the subscription, both in one transaction.
	Purchase(ctx context.Context, accountID, subscriptionID uuid.UUID, period subscription.BillingPeriod, idempotencyKey *string, correlationID string) (*payment.Payment, *ledger.Entry, error)

	// GetPlanByID retrieves a subscription plan by its ID
	GetPlanByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error)
}

// LedgerService defines the interface for reading the audit trail
type LedgerService interface {
	// GetEntriesByAccountID retrieves the paginated ledger history of an
	// account in commit order. Returns entries, total count, and any error.
	GetEntriesByAccountID(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Entry, int64, error)

	// VerifyChain re-checks the balance-chain invariant over the account's
	// full history. Returns the number of verified entries; an IntegrityError
	// means the chain is broken.
	VerifyChain(ctx context.Context, accountID uuid.UUID) (int64, error)
}
