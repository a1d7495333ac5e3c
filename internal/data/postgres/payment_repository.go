package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/platform/persistence"
)

// PaymentRepository implements the payment.Repository interface for PostgreSQL
type PaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPaymentRepository creates a new PostgreSQL payment repository
func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *PaymentRepository) WithTx(tx pgx.Tx) payment.Repository {
	return &PaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new payment. The unique constraint on idempotency_key acts
// as the key reservation: a concurrent insert with the same key surfaces as
// ErrDuplicateIdempotencyKey.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (id, account_id, amount, operation, status, method, idempotency_key, subscription_id, failure_reason, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		p.ID,
		p.AccountID,
		p.Amount,
		p.Operation,
		p.Status,
		p.Method,
		p.IdempotencyKey,
		p.SubscriptionID,
		p.FailureReason,
		p.CreatedAt,
		p.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			key := ""
			if p.IdempotencyKey != nil {
				key = *p.IdempotencyKey
			}
			return payment.ErrDuplicateIdempotencyKey{Key: key}
		}
		r.logger.Error("Failed to create payment", "id", p.ID.String(), "error", err)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := selectPayment + ` WHERE id = $1`

	p, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound{PaymentID: id}
		}
		r.logger.Error("Failed to get payment", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return p, nil
}

// GetByIdempotencyKey retrieves the payment holding an idempotency key.
// Returns (nil, nil) when no payment holds the key.
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	query := selectPayment + ` WHERE idempotency_key = $1`

	p, err := r.scanOne(r.querier.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment by idempotency key", "error", err)
		return nil, fmt.Errorf("failed to get payment by idempotency key: %w", err)
	}

	return p, nil
}

// FindRecent looks for a payment on the account with the same operation type
// and amount (and same subscription reference when given) created at or after
// since. The caller's own row is excluded via excludeID. FAILED payments do
// not count: a failed attempt should not block an immediate retry.
func (r *PaymentRepository) FindRecent(ctx context.Context, accountID uuid.UUID, operation shared.OperationType, amount decimal.Decimal, subscriptionID *uuid.UUID, since time.Time, excludeID *uuid.UUID) (*payment.Payment, error) {
	query := selectPayment + `
		WHERE account_id = $1
		  AND operation = $2
		  AND amount = $3
		  AND status <> $4
		  AND created_at >= $5
		  AND ($6::uuid IS NULL OR subscription_id = $6)
		  AND ($7::uuid IS NULL OR id <> $7)
		ORDER BY created_at DESC
		LIMIT 1
	`

	p, err := r.scanOne(r.querier.QueryRow(ctx, query, accountID, operation, amount, shared.PaymentStatusFailed, since, subscriptionID, excludeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find recent payment", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to find recent payment: %w", err)
	}

	return p, nil
}

// MarkSuccess transitions a payment to SUCCESS with the given processing time
func (r *PaymentRepository) MarkSuccess(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	query := `
		UPDATE payments
		SET status = $1, processed_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, shared.PaymentStatusSuccess, processedAt, id)
	if err != nil {
		r.logger.Error("Failed to mark payment success", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark payment success: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrPaymentNotFound{PaymentID: id}
	}

	return nil
}

// MarkFailed transitions a payment to FAILED with a failure reason
func (r *PaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE payments
		SET status = $1, failure_reason = $2, processed_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, shared.PaymentStatusFailed, reason, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark payment failed", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrPaymentNotFound{PaymentID: id}
	}

	return nil
}

const selectPayment = `
	SELECT id, account_id, amount, operation, status, method, idempotency_key, subscription_id, failure_reason, created_at, processed_at
	FROM payments`

func (r *PaymentRepository) scanOne(row pgx.Row) (*payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.Amount,
		&p.Operation,
		&p.Status,
		&p.Method,
		&p.IdempotencyKey,
		&p.SubscriptionID,
		&p.FailureReason,
		&p.CreatedAt,
		&p.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
