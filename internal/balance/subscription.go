package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/domain/subscription"
	"github.com/adhub-billing-ledger/internal/platform/persistence"
)

// SubscriptionCoordinator performs the atomic purchase of a subscription from
// account balance: the debit, the payment settlement and the activation land
// in one transaction or not at all.
type SubscriptionCoordinator struct {
	db             persistence.TxBeginner
	engine         Engine
	guard          Guard
	accounts       account.Repository
	payments       payment.Repository
	subscriptions  subscription.Repository
	annualDiscount decimal.Decimal
	logger         *slog.Logger
	now            func() time.Time
}

// NewSubscriptionCoordinator wires the coordinator. annualDiscount scales the
// twelve-month price on yearly purchases (1 = no discount).
func NewSubscriptionCoordinator(
	logger *slog.Logger,
	db persistence.TxBeginner,
	engine Engine,
	guard Guard,
	accounts account.Repository,
	payments payment.Repository,
	subscriptions subscription.Repository,
	annualDiscount decimal.Decimal,
) *SubscriptionCoordinator {
	return &SubscriptionCoordinator{
		db:             db,
		engine:         engine,
		guard:          guard,
		accounts:       accounts,
		payments:       payments,
		subscriptions:  subscriptions,
		annualDiscount: annualDiscount,
		logger:         logger,
		now:            time.Now,
	}
}

// PurchaseFromBalance debits the subscription cost and activates the plan on
// the account. Duplicate screening runs before any write; a failed debit
// leaves a FAILED payment and no activation.
func (c *SubscriptionCoordinator) PurchaseFromBalance(ctx context.Context, accountID, subscriptionID uuid.UUID, period subscription.BillingPeriod, idempotencyKey *string, correlationID string) (*payment.Payment, *ledger.Entry, error) {
	sub, err := c.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, nil, err
	}

	cost, err := sub.Cost(period, c.annualDiscount)
	if err != nil {
		return nil, nil, err
	}

	params := DeltaParams{
		AccountID:      accountID,
		Amount:         cost.Neg(),
		Operation:      shared.OperationSubscriptionPayment,
		SubscriptionID: &subscriptionID,
		IdempotencyKey: idempotencyKey,
		CorrelationID:  correlationID,
	}

	if err := c.guard.Check(ctx, params); err != nil {
		return nil, nil, err
	}

	p, entry, err := c.purchaseOnce(ctx, params, period)
	if err != nil {
		if errors.Is(err, account.ErrInsufficientBalance) {
			c.recordFailure(ctx, params, shared.FailureReasonInsufficientBalance)
		}
		return nil, nil, err
	}

	c.logger.Info("Subscription purchased from balance",
		"account_id", accountID.String(),
		"subscription_id", subscriptionID.String(),
		"period", string(period),
		"amount", cost.String())
	return p, entry, nil
}

func (c *SubscriptionCoordinator) purchaseOnce(ctx context.Context, params DeltaParams, period subscription.BillingPeriod) (p *payment.Payment, entry *ledger.Entry, err error) {
	var tx pgx.Tx
	tx, err = c.db.Begin(ctx)
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
				c.logger.Error("Failed to rollback purchase transaction", "error", rbErr)
			}
		}
	}()

	p = payment.New(params.AccountID, params.Amount.Abs(), params.Operation, payment.MethodBalance, params.IdempotencyKey, params.SubscriptionID)

	payments := c.payments.WithTx(tx)
	if err = payments.Create(ctx, p); err != nil {
		return nil, nil, err
	}

	txParams := params
	txParams.ReferenceID = &p.ID

	entry, err = c.engine.ApplyDeltaInTx(ctx, tx, txParams)
	if err != nil {
		return nil, nil, err
	}

	processedAt := c.now().UTC()
	if err = payments.MarkSuccess(ctx, p.ID, processedAt); err != nil {
		return nil, nil, err
	}
	p.Status = shared.PaymentStatusSuccess
	p.ProcessedAt = &processedAt

	start := processedAt
	end := periodEnd(start, period)
	if err = c.accounts.WithTx(tx).ActivateSubscription(ctx, params.AccountID, *params.SubscriptionID, start, end); err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return p, entry, nil
}

func (c *SubscriptionCoordinator) recordFailure(ctx context.Context, params DeltaParams, reason shared.FailureReason) {
	p := payment.New(params.AccountID, params.Amount.Abs(), params.Operation, payment.MethodBalance, nil, params.SubscriptionID)
	p.Status = shared.PaymentStatusFailed
	p.FailureReason = string(reason)
	processedAt := c.now().UTC()
	p.ProcessedAt = &processedAt

	if err := c.payments.Create(ctx, p); err != nil {
		c.logger.Error("Failed to record purchase failure",
			"account_id", params.AccountID.String(),
			"reason", string(reason),
			"error", err)
	}
}

func periodEnd(start time.Time, period subscription.BillingPeriod) time.Time {
	if period == subscription.PeriodYear {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
