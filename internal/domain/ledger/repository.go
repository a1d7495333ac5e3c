package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages the append-only ledger. Append must run inside the same
// transaction as the account mutation the entry documents; there is no update
// or delete.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// GetByAccountID returns entries in creation order (ascending), which for a
	// single account is the commit order of the mutations they document.
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
	GetByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*Entry, error)

	// LastByAccountID returns the most recent entry, or ErrEntryNotFound when
	// the account has no ledger history yet.
	LastByAccountID(ctx context.Context, accountID uuid.UUID) (*Entry, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	EntryID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.EntryID.String()
}

// Is matches any ErrEntryNotFound when the target carries a nil entry id.
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.EntryID == uuid.Nil {
		return true
	}
	return e.EntryID == t.EntryID
}

// IntegrityError indicates a fingerprint collision or a broken balance chain.
// It aborts the surrounding transaction and is never retried automatically;
// it signals a programming or entropy defect, not a transient condition.
type IntegrityError struct {
	AccountID   uuid.UUID
	Fingerprint string
	Reason      string
}

func (e IntegrityError) Error() string {
	return "ledger integrity violation on account " + e.AccountID.String() + ": " + e.Reason
}

// Is matches any IntegrityError regardless of the offending account or entry.
func (e IntegrityError) Is(target error) bool {
	_, ok := target.(IntegrityError)
	return ok
}
