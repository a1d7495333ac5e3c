package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/outbox"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/platform/persistence"
)

// casRetries bounds how often ApplyDelta restarts after losing the optimistic
// lock race before surfacing ErrVersionConflict to the caller.
const casRetries = 3

// MutationEngine is the single write path for account balances. Every mutation
// is a read-modify-CAS cycle paired with a ledger append and an outbox write
// in one transaction; there is no code path that touches balance directly.
type MutationEngine struct {
	db       persistence.TxBeginner
	accounts account.Repository
	entries  ledger.Repository
	payments payment.Repository
	outbox   outbox.Repository
	guard    Guard
	logger   *slog.Logger
	now      func() time.Time
}

// NewMutationEngine wires the engine against its stores and guard
func NewMutationEngine(
	logger *slog.Logger,
	db persistence.TxBeginner,
	accounts account.Repository,
	entries ledger.Repository,
	payments payment.Repository,
	outboxRepo outbox.Repository,
	guard Guard,
) *MutationEngine {
	return &MutationEngine{
		db:       db,
		accounts: accounts,
		entries:  entries,
		payments: payments,
		outbox:   outboxRepo,
		guard:    guard,
		logger:   logger,
		now:      time.Now,
	}
}

// ApplyDeltaInTx applies one signed delta inside the caller's transaction:
// read the account, project the new balance, CAS it, append the chained
// ledger entry and stage the outbox message. No guard check and no payment
// bookkeeping happen here.
func (e *MutationEngine) ApplyDeltaInTx(ctx context.Context, tx pgx.Tx, params DeltaParams) (*ledger.Entry, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	accounts := e.accounts.WithTx(tx)

	acc, err := accounts.GetByID(ctx, params.AccountID)
	if err != nil {
		return nil, err
	}

	newBalance, err := acc.ProjectedBalance(params.Amount)
	if err != nil {
		return nil, err
	}

	if err := accounts.CompareAndSwap(ctx, acc.ID, acc.Version, newBalance); err != nil {
		return nil, err
	}

	entry, err := ledger.NewEntry(acc.ID, params.Amount, params.Operation, params.ReferenceID, acc.Balance, newBalance)
	if err != nil {
		return nil, err
	}
	entry.CorrelationID = params.CorrelationID

	if err := e.entries.WithTx(tx).Append(ctx, entry); err != nil {
		return nil, err
	}

	message, err := outbox.NewMessage(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox message: %w", err)
	}
	if err := e.outbox.WithTx(tx).Create(ctx, message); err != nil {
		return nil, err
	}

	return entry, nil
}

// ApplyDelta is the public mutation operation: guard check, PENDING payment
// record, delta application and settlement, all in a transaction the engine
// owns. Losing the CAS race restarts the transaction up to casRetries times.
func (e *MutationEngine) ApplyDelta(ctx context.Context, params DeltaParams) (*payment.Payment, *ledger.Entry, error) {
	if err := validateParams(params); err != nil {
		return nil, nil, err
	}

	if err := e.guard.Check(ctx, params); err != nil {
		return nil, nil, err
	}

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		p, entry, err := e.applyOnce(ctx, params)
		if err == nil {
			return p, entry, nil
		}
		if errors.Is(err, account.ErrVersionConflict{}) {
			e.logger.Warn("Lost optimistic lock race, retrying",
				"account_id", params.AccountID.String(),
				"attempt", attempt+1)
			lastErr = err
			continue
		}

		if errors.Is(err, account.ErrInsufficientBalance) {
			e.recordFailure(ctx, params, shared.FailureReasonInsufficientBalance)
		}
		return nil, nil, err
	}

	e.recordFailure(ctx, params, shared.FailureReasonVersionConflict)
	return nil, nil, lastErr
}

// applyOnce runs one guarded mutation attempt in its own transaction
func (e *MutationEngine) applyOnce(ctx context.Context, params DeltaParams) (p *payment.Payment, entry *ledger.Entry, err error) {
	var tx pgx.Tx
	tx, err = e.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				e.logger.Error("Failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	p = payment.New(params.AccountID, params.Amount.Abs(), params.Operation, payment.MethodBalance, params.IdempotencyKey, params.SubscriptionID)

	payments := e.payments.WithTx(tx)
	if err = payments.Create(ctx, p); err != nil {
		return nil, nil, err
	}

	txParams := params
	txParams.ReferenceID = &p.ID

	entry, err = e.ApplyDeltaInTx(ctx, tx, txParams)
	if err != nil {
		return nil, nil, err
	}

	processedAt := e.now().UTC()
	if err = payments.MarkSuccess(ctx, p.ID, processedAt); err != nil {
		return nil, nil, err
	}
	p.Status = shared.PaymentStatusSuccess
	p.ProcessedAt = &processedAt

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	e.logger.Info("Balance mutation committed",
		"account_id", params.AccountID.String(),
		"payment_id", p.ID.String(),
		"operation", string(params.Operation),
		"amount", params.Amount.String())
	return p, entry, nil
}

// recordFailure stores a FAILED payment outside the rolled-back transaction so
// the rejection stays visible to clients polling the payment.
func (e *MutationEngine) recordFailure(ctx context.Context, params DeltaParams, reason shared.FailureReason) {
	p := payment.New(params.AccountID, params.Amount.Abs(), params.Operation, payment.MethodBalance, nil, params.SubscriptionID)
	p.Status = shared.PaymentStatusFailed
	p.FailureReason = string(reason)
	processedAt := e.now().UTC()
	p.ProcessedAt = &processedAt

	if err := e.payments.Create(ctx, p); err != nil {
		e.logger.Error("Failed to record payment failure",
			"account_id", params.AccountID.String(),
			"reason", string(reason),
			"error", err)
	}
}

func validateParams(params DeltaParams) error {
	if !shared.ValidOperationType(params.Operation) {
		return shared.ErrInvalidOperationType
	}
	if params.Amount.IsZero() && params.Operation != shared.OperationAdjustment {
		return shared.ErrInvalidAmount
	}
	return nil
}
