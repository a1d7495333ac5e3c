package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/balance"
	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accountRepo account.Repository
	engine      balance.Engine
}

// NewAccountService creates a new account service
func NewAccountService(accountRepo account.Repository, engine balance.Engine) AccountService {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		engine:      engine,
	}
}

// CreateAccount opens a fresh account with zero balance
func (s *AccountServiceImpl) CreateAccount(ctx context.Context) (*account.Account, error) {
	acc := account.NewAccount()

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	return acc, nil
}

// GetAccountByID retrieves an account by its ID, returns ErrAccountNotFound if not found
func (s *AccountServiceImpl) GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// Adjust applies a signed manual correction through the mutation engine. Zero
// amounts are allowed and produce an audit marker without a balance change.
func (s *AccountServiceImpl) Adjust(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, idempotencyKey *string, correlationID string) (*payment.Payment, *ledger.Entry, error) {
	return s.engine.ApplyDelta(ctx, balance.DeltaParams{
		AccountID:      accountID,
		Amount:         amount,
		Operation:      shared.OperationAdjustment,
		IdempotencyKey: idempotencyKey,
		CorrelationID:  correlationID,
	})
}
