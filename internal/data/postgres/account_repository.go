// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the billing system.
package postgres

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
	"github.com/adhub-billing-ledger/internal/platform/persistence"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(), // Initialize with the pool
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls. The returned repository will use the provided
// transaction for all database operations.
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx, // Use the transaction
		logger:  r.logger,
	}
}

// Create stores a new account in the database
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, balance, version, subscription_id, subscription_start, subscription_end, not_expired, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.Balance,
		acc.Version,
		acc.SubscriptionID,
		acc.SubscriptionStart,
		acc.SubscriptionEnd,
		acc.NotExpired,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create account", "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `
		SELECT id, balance, version, subscription_id, subscription_start, subscription_end, not_expired, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var acc account.Account
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&acc.ID,
		&acc.Balance,
		&acc.Version,
		&acc.SubscriptionID,
		&acc.SubscriptionStart,
		&acc.SubscriptionEnd,
		&acc.NotExpired,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acc, nil
}

// CompareAndSwap writes the new balance only if the stored version still equals
// expectedVersion, incrementing version by one. A zero row count means another
// writer committed between our read and this update.
func (r *AccountRepository) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`

	result, err := r.querier.Exec(ctx, query, newBalance, id, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update account balance", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update account balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrVersionConflict{AccountID: id}
	}

	return nil
}

// ActivateSubscription sets the subscription fields on the account. Balance and
// version are left alone; the paired debit goes through CompareAndSwap in the
// same transaction.
func (r *AccountRepository) ActivateSubscription(ctx context.Context, id uuid.UUID, subscriptionID uuid.UUID, start, end time.Time) error {
	query := `
		UPDATE accounts
		SET subscription_id = $1, subscription_start = $2, subscription_end = $3, not_expired = TRUE, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, subscriptionID, start, end, id)
	if err != nil {
		r.logger.Error("Failed to activate subscription", "id", id.String(), "error", err)
		return fmt.Errorf("failed to activate subscription: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{AccountID: id}
	}

	return nil
}
