package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository defines account persistence operations. CompareAndSwap is the
// single chokepoint for balance mutation: no other method touches balance or
// version.
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// CompareAndSwap conditionally writes newBalance and increments version by
	// one, succeeding only if the stored version still equals expectedVersion.
	// Returns ErrVersionConflict when another writer committed first.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error

	// ActivateSubscription sets the subscription fields on the account. It does
	// not touch balance or version; the paired debit goes through CompareAndSwap
	// in the same transaction.
	ActivateSubscription(ctx context.Context, id uuid.UUID, subscriptionID uuid.UUID, start, end time.Time) error

	WithTx(tx pgx.Tx) Repository
}

// ErrVersionConflict indicates the optimistic lock lost the race: the stored
// version moved between read and conditional update. No state was changed.
type ErrVersionConflict struct {
	AccountID uuid.UUID
}

func (e ErrVersionConflict) Error() string {
	return "version conflict on account: " + e.AccountID.String()
}

// Is matches any ErrVersionConflict when the target carries a nil account id.
func (e ErrVersionConflict) Is(target error) bool {
	t, ok := target.(ErrVersionConflict)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

// Is matches any ErrAccountNotFound when the target carries a nil account id.
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	if t.AccountID == uuid.Nil {
		return true
	}
	return e.AccountID == t.AccountID
}
