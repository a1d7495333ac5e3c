package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/shared"
)

func newTestEntry(t *testing.T) *ledger.Entry {
	t.Helper()
	entry, err := ledger.NewEntry(
		uuid.New(),
		decimal.RequireFromString("-50.00"),
		shared.OperationWithdrawal,
		nil,
		decimal.RequireFromString("200.00"),
		decimal.RequireFromString("150.00"),
	)
	require.NoError(t, err)
	return entry
}

func TestLedgerRepository_Append(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	entry := newTestEntry(t)

	query := `
		INSERT INTO ledger_entries \(id, account_id, amount, operation, reference_id, balance_before, balance_after, fingerprint, correlation_id, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(entry.ID, entry.AccountID, entry.Amount, entry.Operation, entry.ReferenceID, entry.BalanceBefore, entry.BalanceAfter, entry.Fingerprint, entry.CorrelationID, entry.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Append(ctx, entry)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fingerprint collision", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_fingerprint_key"}
		mock.ExpectExec(query).
			WithArgs(entry.ID, entry.AccountID, entry.Amount, entry.Operation, entry.ReferenceID, entry.BalanceBefore, entry.BalanceAfter, entry.Fingerprint, entry.CorrelationID, entry.CreatedAt).
			WillReturnError(pgErr)

		err := repo.Append(ctx, entry)
		assert.Error(t, err)
		var integrityErr ledger.IntegrityError
		assert.ErrorAs(t, err, &integrityErr)
		assert.Equal(t, entry.AccountID, integrityErr.AccountID)
		assert.Equal(t, entry.Fingerprint, integrityErr.Fingerprint)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("insert failed")
		mock.ExpectExec(query).
			WithArgs(entry.ID, entry.AccountID, entry.Amount, entry.Operation, entry.ReferenceID, entry.BalanceBefore, entry.BalanceAfter, entry.Fingerprint, entry.CorrelationID, entry.CreatedAt).
			WillReturnError(dbErr)

		err := repo.Append(ctx, entry)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to append ledger entry")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func entryRows(entries ...*ledger.Entry) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "account_id", "amount", "operation", "reference_id", "balance_before", "balance_after", "fingerprint", "correlation_id", "created_at"})
	for _, e := range entries {
		rows.AddRow(e.ID, e.AccountID, e.Amount, e.Operation, e.ReferenceID, e.BalanceBefore, e.BalanceAfter, e.Fingerprint, e.CorrelationID, e.CreatedAt)
	}
	return rows
}

func TestLedgerRepository_GetByAccountID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	entry := newTestEntry(t)

	query := `
		SELECT id, account_id, amount, operation, reference_id, balance_before, balance_after, fingerprint, correlation_id, created_at
		FROM ledger_entries
		WHERE account_id = \$1
		ORDER BY created_at ASC
		LIMIT \$2 OFFSET \$3
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(entry.AccountID, 20, 0).WillReturnRows(entryRows(entry))

		entries, err := repo.GetByAccountID(ctx, entry.AccountID, 20, 0)
		assert.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, entry.ID, entries[0].ID)
		assert.True(t, entry.Amount.Equal(entries[0].Amount))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(entry.AccountID, 20, 0).WillReturnRows(entryRows())

		entries, err := repo.GetByAccountID(ctx, entry.AccountID, 20, 0)
		assert.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("query failed")
		mock.ExpectQuery(query).WithArgs(entry.AccountID, 20, 0).WillReturnError(dbErr)

		entries, err := repo.GetByAccountID(ctx, entry.AccountID, 20, 0)
		assert.Error(t, err)
		assert.Nil(t, entries)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_CountByAccountID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	accountID := uuid.New()

	query := `
		SELECT COUNT\(\*\)
		FROM ledger_entries
		WHERE account_id = \$1
	`

	mock.ExpectQuery(query).WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(5)))

	count, err := repo.CountByAccountID(ctx, accountID)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_LastByAccountID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	entry := newTestEntry(t)

	query := `
		SELECT id, account_id, amount, operation, reference_id, balance_before, balance_after, fingerprint, correlation_id, created_at
		FROM ledger_entries
		WHERE account_id = \$1
		ORDER BY created_at DESC
		LIMIT 1
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(entry.AccountID).WillReturnRows(entryRows(entry))

		got, err := repo.LastByAccountID(ctx, entry.AccountID)
		assert.NoError(t, err)
		assert.Equal(t, entry.ID, got.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no history", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(entry.AccountID).WillReturnError(pgx.ErrNoRows)

		got, err := repo.LastByAccountID(ctx, entry.AccountID)
		assert.Error(t, err)
		assert.Nil(t, got)
		var notFoundErr ledger.ErrEntryNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_WithTx(t *testing.T) {
	logger := newTestLogger()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	originalRepo := &LedgerRepository{querier: mockPool, logger: logger}

	mockPool.ExpectBegin()
	pgxTx, err := mockPool.Begin(context.Background())
	require.NoError(t, err)

	txRepo := originalRepo.WithTx(pgxTx)

	assert.NotNil(t, txRepo)
	assert.Equal(t, pgxTx, txRepo.(*LedgerRepository).querier)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
