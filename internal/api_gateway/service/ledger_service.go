package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/adhub-billing-ledger/internal/domain/ledger"
)

// LedgerServiceImpl implements the LedgerService interface
type LedgerServiceImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(logger *slog.Logger, ledgerRepo ledger.Repository) LedgerService {
	return &LedgerServiceImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// GetEntriesByAccountID retrieves paginated ledger history for an account
// Returns entries, total count, and any error
func (s *LedgerServiceImpl) GetEntriesByAccountID(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.ledgerRepo.GetByAccountID(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.ledgerRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// VerifyChain loads the full history of an account and re-checks the balance
// chain invariant entry by entry.
func (s *LedgerServiceImpl) VerifyChain(ctx context.Context, accountID uuid.UUID) (int64, error) {
	total, err := s.ledgerRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	entries, err := s.ledgerRepo.GetByAccountID(ctx, accountID, int(total), 0)
	if err != nil {
		return 0, err
	}

	if err := ledger.VerifyChain(entries); err != nil {
		s.logger.Error("Ledger chain verification failed", "account_id", accountID.String(), "error", err)
		return int64(len(entries)), err
	}

	return int64(len(entries)), nil
}
