package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/adhub-billing-ledger/internal/balance"
	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error {
	args := m.Called(ctx, id, expectedVersion, newBalance)
	return args.Error(0)
}

func (m *MockAccountRepository) ActivateSubscription(ctx context.Context, id uuid.UUID, subscriptionID uuid.UUID, start, end time.Time) error {
	args := m.Called(ctx, id, subscriptionID, start, end)
	return args.Error(0)
}

func (m *MockAccountRepository) WithTx(tx pgx.Tx) account.Repository {
	m.Called(tx)
	return m
}

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) ApplyDelta(ctx context.Context, params balance.DeltaParams) (*payment.Payment, *ledger.Entry, error) {
	args := m.Called(ctx, params)
	var p *payment.Payment
	if args.Get(0) != nil {
		p = args.Get(0).(*payment.Payment)
	}
	var entry *ledger.Entry
	if args.Get(1) != nil {
		entry = args.Get(1).(*ledger.Entry)
	}
	return p, entry, args.Error(2)
}

func (m *MockEngine) ApplyDeltaInTx(ctx context.Context, tx pgx.Tx, params balance.DeltaParams) (*ledger.Entry, error) {
	args := m.Called(ctx, tx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func TestAccountService_CreateAccount(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockAccountRepository)
		svc := NewAccountService(mockRepo, new(MockEngine))

		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(acc *account.Account) bool {
			return acc.Balance.IsZero() && acc.Version == 1 && acc.ID != uuid.Nil
		})).Return(nil)

		acc, err := svc.CreateAccount(context.Background())

		require.NoError(t, err)
		assert.True(t, acc.Balance.IsZero())
		assert.Equal(t, int64(1), acc.Version)

		mockRepo.AssertExpectations(t)
	})

	t.Run("RepoError", func(t *testing.T) {
		mockRepo := new(MockAccountRepository)
		svc := NewAccountService(mockRepo, new(MockEngine))

		mockRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("database connection lost"))

		acc, err := svc.CreateAccount(context.Background())

		require.Error(t, err)
		assert.Nil(t, acc)
		mockRepo.AssertExpectations(t)
	})
}

func TestAccountService_Adjust(t *testing.T) {
	t.Run("BuildsAdjustmentDelta", func(t *testing.T) {
		mockRepo := new(MockAccountRepository)
		mockEngine := new(MockEngine)
		svc := NewAccountService(mockRepo, mockEngine)

		accountID := uuid.New()
		amount := decimal.RequireFromString("-12.50")
		key := "adj-2024-117"
		p := payment.New(accountID, amount.Abs(), shared.OperationAdjustment, payment.MethodBalance, &key, nil)
		entry := &ledger.Entry{ID: uuid.New(), AccountID: accountID, Amount: amount}

		mockEngine.On("ApplyDelta", mock.Anything, mock.MatchedBy(func(params balance.DeltaParams) bool {
			return params.AccountID == accountID &&
				params.Amount.Equal(amount) &&
				params.Operation == shared.OperationAdjustment &&
				params.IdempotencyKey != nil && *params.IdempotencyKey == key &&
				params.CorrelationID == "corr-9"
		})).Return(p, entry, nil)

		gotPayment, gotEntry, err := svc.Adjust(context.Background(), accountID, amount, &key, "corr-9")

		require.NoError(t, err)
		assert.Equal(t, p, gotPayment)
		assert.Equal(t, entry, gotEntry)

		mockEngine.AssertExpectations(t)
	})

	t.Run("EngineErrorPropagates", func(t *testing.T) {
		mockRepo := new(MockAccountRepository)
		mockEngine := new(MockEngine)
		svc := NewAccountService(mockRepo, mockEngine)

		accountID := uuid.New()
		mockEngine.On("ApplyDelta", mock.Anything, mock.Anything).Return(nil, nil, account.ErrInsufficientBalance)

		_, _, err := svc.Adjust(context.Background(), accountID, decimal.RequireFromString("-500.00"), nil, "corr-9")

		assert.ErrorIs(t, err, account.ErrInsufficientBalance)
		mockEngine.AssertExpectations(t)
	})
}

var (
	_ account.Repository = (*MockAccountRepository)(nil)
	_ balance.Engine     = (*MockEngine)(nil)
)
