package ledger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// Entry is one immutable audit record of a balance-affecting operation.
// Entries for an account form a chain: each entry's BalanceBefore equals the
// previous entry's BalanceAfter, which makes the sequence equivalent to the
// commit order of the account mutations it documents.
type Entry struct {
	ID            uuid.UUID            `json:"id" bson:"id"`
	AccountID     uuid.UUID            `json:"account_id" bson:"account_id"`
	Amount        decimal.Decimal      `json:"amount" bson:"amount"` // signed: positive credit, negative debit
	Operation     shared.OperationType `json:"operation" bson:"operation"`
	ReferenceID   *uuid.UUID           `json:"reference_id,omitempty" bson:"reference_id,omitempty"`
	BalanceBefore decimal.Decimal      `json:"balance_before" bson:"balance_before"`
	BalanceAfter  decimal.Decimal      `json:"balance_after" bson:"balance_after"`
	Fingerprint   string               `json:"fingerprint" bson:"fingerprint"`
	CorrelationID string               `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt     time.Time            `json:"created_at" bson:"created_at"`
}

// NewEntry builds a chained entry and computes its fingerprint. It returns an
// IntegrityError if the before/after balances do not connect through amount.
func NewEntry(accountID uuid.UUID, amount decimal.Decimal, op shared.OperationType, referenceID *uuid.UUID, balanceBefore, balanceAfter decimal.Decimal) (*Entry, error) {
	if !balanceBefore.Add(amount).Equal(balanceAfter) {
		return nil, IntegrityError{
			AccountID: accountID,
			Reason:    fmt.Sprintf("balance chain broken: %s + %s != %s", balanceBefore, amount, balanceAfter),
		}
	}

	e := &Entry{
		ID:            uuid.New(),
		AccountID:     accountID,
		Amount:        amount,
		Operation:     op,
		ReferenceID:   referenceID,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		CreatedAt:     time.Now().UTC(),
	}

	fp, err := e.computeFingerprint()
	if err != nil {
		return nil, err
	}
	e.Fingerprint = fp

	return e, nil
}

// computeFingerprint hashes every entry field plus a random nonce, so two
// entries with identical business fields still fingerprint differently.
func (e *Entry) computeFingerprint() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to read fingerprint nonce: %w", err)
	}

	ref := ""
	if e.ReferenceID != nil {
		ref = e.ReferenceID.String()
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%d|",
		e.ID,
		e.AccountID,
		e.Amount,
		e.Operation,
		ref,
		e.BalanceBefore,
		e.BalanceAfter,
		e.CreatedAt.UnixNano(),
	)
	h.Write(nonce)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChain checks the balance-chain invariant over entries ordered by
// creation time: entries[i].BalanceAfter must equal entries[i+1].BalanceBefore,
// and every entry must connect its own before/after through its amount.
func VerifyChain(entries []*Entry) error {
	for i, e := range entries {
		if !e.BalanceBefore.Add(e.Amount).Equal(e.BalanceAfter) {
			return IntegrityError{
				AccountID:   e.AccountID,
				Fingerprint: e.Fingerprint,
				Reason:      fmt.Sprintf("entry %d does not balance: %s + %s != %s", i, e.BalanceBefore, e.Amount, e.BalanceAfter),
			}
		}
		if i > 0 && !entries[i-1].BalanceAfter.Equal(e.BalanceBefore) {
			return IntegrityError{
				AccountID:   e.AccountID,
				Fingerprint: e.Fingerprint,
				Reason:      fmt.Sprintf("chain gap between entries %d and %d: %s != %s", i-1, i, entries[i-1].BalanceAfter, e.BalanceBefore),
			}
		}
	}
	return nil
}
