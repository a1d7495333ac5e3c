package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/platform/persistence"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL.
// The ledger_entries table is append-only; there is no update or delete path.
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the append lands in the
// same transaction as the balance mutation it documents.
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append inserts a new ledger entry. A unique violation on the fingerprint
// column is surfaced as an IntegrityError, which aborts the surrounding
// transaction rather than being retried.
func (r *LedgerRepository) Append(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, amount, operation, reference_id, balance_before, balance_after, fingerprint, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.Amount,
		entry.Operation,
		entry.ReferenceID,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.Fingerprint,
		entry.CorrelationID,
		entry.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ledger.IntegrityError{
				AccountID:   entry.AccountID,
				Fingerprint: entry.Fingerprint,
				Reason:      "fingerprint collision",
			}
		}
		r.logger.Error("Failed to append ledger entry",
			"account_id", entry.AccountID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// GetByID retrieves a ledger entry by its ID
func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	query := `
		SELECT id, account_id, amount, operation, reference_id, balance_before, balance_after, fingerprint, correlation_id, created_at
		FROM ledger_entries
		WHERE id = $1
	`

	entry, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{EntryID: id}
		}
		r.logger.Error("Failed to get ledger entry", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return entry, nil
}

// GetByAccountID returns an account's entries in creation order, which for a
// single account matches the commit order of the mutations they document.
func (r *LedgerRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	query := `
		SELECT id, account_id, amount, operation, reference_id, balance_before, balance_after, fingerprint, correlation_id, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get ledger entries", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// CountByAccountID returns the number of ledger entries for an account
func (r *LedgerRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM ledger_entries
		WHERE account_id = $1
	`

	var count int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		r.logger.Error("Failed to count ledger entries", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

// GetByReferenceID retrieves entries linked to a payment or other reference
func (r *LedgerRepository) GetByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*ledger.Entry, error) {
	query := `
		SELECT id, account_id, amount, operation, reference_id, balance_before, balance_after, fingerprint, correlation_id, created_at
		FROM ledger_entries
		WHERE reference_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, referenceID)
	if err != nil {
		r.logger.Error("Failed to get ledger entries by reference", "reference_id", referenceID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entries by reference: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// LastByAccountID returns the most recent entry for an account, or
// ErrEntryNotFound when the account has no ledger history yet.
func (r *LedgerRepository) LastByAccountID(ctx context.Context, accountID uuid.UUID) (*ledger.Entry, error) {
	query := `
		SELECT id, account_id, amount, operation, reference_id, balance_before, balance_after, fingerprint, correlation_id, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	entry, err := r.scanOne(r.querier.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{EntryID: uuid.Nil}
		}
		r.logger.Error("Failed to get last ledger entry", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get last ledger entry: %w", err)
	}

	return entry, nil
}

func (r *LedgerRepository) scanOne(row pgx.Row) (*ledger.Entry, error) {
	var entry ledger.Entry
	err := row.Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.Amount,
		&entry.Operation,
		&entry.ReferenceID,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&entry.Fingerprint,
		&entry.CorrelationID,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *LedgerRepository) scanAll(rows pgx.Rows) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.Amount,
			&entry.Operation,
			&entry.ReferenceID,
			&entry.BalanceBefore,
			&entry.BalanceAfter,
			&entry.Fingerprint,
			&entry.CorrelationID,
			&entry.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan ledger entry", "error", err)
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger entries", "error", err)
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return entries, nil
}
