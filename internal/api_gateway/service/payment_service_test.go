package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
	"github.com/adhub-billing-ledger/internal/platform/messaging/producers"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindRecent(ctx context.Context, accountID uuid.UUID, operation shared.OperationType, amount decimal.Decimal, subscriptionID *uuid.UUID, since time.Time, excludeID *uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, accountID, operation, amount, subscriptionID, since, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) MarkSuccess(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	args := m.Called(ctx, id, processedAt)
	return args.Error(0)
}

func (m *MockPaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockPaymentRepository) WithTx(tx pgx.Tx) payment.Repository {
	m.Called(tx)
	return m
}

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newPaymentRequest(key *string) *shared.PaymentRequest {
	return &shared.PaymentRequest{
		PaymentID:      uuid.New(),
		AccountID:      uuid.New(),
		Operation:      shared.OperationDeposit,
		Amount:         decimal.RequireFromString("50.00"),
		IdempotencyKey: key,
		CorrelationID:  "corr-1",
		Timestamp:      time.Now().UTC(),
	}
}

func TestPaymentService_CreatePayment(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("CreatesAndPublishes", func(t *testing.T) {
		mockRepo := new(MockPaymentRepository)
		mockProducer := new(MockMessagePublisher)
		svc := NewPaymentService(logger, mockRepo, mockProducer)

		request := newPaymentRequest(nil)
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *payment.Payment) bool {
			return p.ID == request.PaymentID &&
				p.AccountID == request.AccountID &&
				p.Status == shared.PaymentStatusPending
		})).Return(nil)
		mockProducer.On("Publish", mock.Anything, request.PaymentID.String(), request).Return(nil)

		p, replayed, err := svc.CreatePayment(context.Background(), request)

		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, request.PaymentID, p.ID)
		assert.Equal(t, shared.PaymentStatusPending, p.Status)

		mockRepo.AssertExpectations(t)
		mockProducer.AssertExpectations(t)
	})

	t.Run("KeyReplayReturnsExistingWithoutPublishing", func(t *testing.T) {
		mockRepo := new(MockPaymentRepository)
		mockProducer := new(MockMessagePublisher)
		svc := NewPaymentService(logger, mockRepo, mockProducer)

		key := "pay-2024-802"
		request := newPaymentRequest(&key)
		existing := payment.New(request.AccountID, request.Amount, request.Operation, payment.MethodBalance, &key, nil)
		existing.Status = shared.PaymentStatusSuccess
		mockRepo.On("GetByIdempotencyKey", mock.Anything, key).Return(existing, nil)

		p, replayed, err := svc.CreatePayment(context.Background(), request)

		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, existing.ID, p.ID)

		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mockProducer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RacingReplayFallsBackToExisting", func(t *testing.T) {
		mockRepo := new(MockPaymentRepository)
		mockProducer := new(MockMessagePublisher)
		svc := NewPaymentService(logger, mockRepo, mockProducer)

		key := "pay-2024-803"
		request := newPaymentRequest(&key)
		winner := payment.New(request.AccountID, request.Amount, request.Operation, payment.MethodBalance, &key, nil)

		// The key is free at lookup time but another request inserts it first.
		mockRepo.On("GetByIdempotencyKey", mock.Anything, key).Return(nil, nil).Once()
		mockRepo.On("Create", mock.Anything, mock.Anything).Return(payment.ErrDuplicateIdempotencyKey{Key: key})
		mockRepo.On("GetByIdempotencyKey", mock.Anything, key).Return(winner, nil).Once()

		p, replayed, err := svc.CreatePayment(context.Background(), request)

		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, winner.ID, p.ID)

		mockProducer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})

	t.Run("PublishFailurePropagates", func(t *testing.T) {
		mockRepo := new(MockPaymentRepository)
		mockProducer := new(MockMessagePublisher)
		svc := NewPaymentService(logger, mockRepo, mockProducer)

		request := newPaymentRequest(nil)
		mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		mockProducer.On("Publish", mock.Anything, request.PaymentID.String(), request).Return(errors.New("broker unreachable"))

		p, replayed, err := svc.CreatePayment(context.Background(), request)

		require.Error(t, err)
		assert.Nil(t, p)
		assert.False(t, replayed)

		mockRepo.AssertExpectations(t)
		mockProducer.AssertExpectations(t)
	})

	t.Run("KeyLookupFailurePropagates", func(t *testing.T) {
		mockRepo := new(MockPaymentRepository)
		mockProducer := new(MockMessagePublisher)
		svc := NewPaymentService(logger, mockRepo, mockProducer)

		key := "pay-2024-804"
		request := newPaymentRequest(&key)
		mockRepo.On("GetByIdempotencyKey", mock.Anything, key).Return(nil, errors.New("database connection lost"))

		_, _, err := svc.CreatePayment(context.Background(), request)

		require.Error(t, err)
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mockRepo.AssertExpectations(t)
	})
}

func TestPaymentService_GetPaymentByID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Found", func(t *testing.T) {
		mockRepo := new(MockPaymentRepository)
		svc := NewPaymentService(logger, mockRepo, new(MockMessagePublisher))

		p := payment.New(uuid.New(), decimal.RequireFromString("10.00"), shared.OperationDeposit, payment.MethodExternal, nil, nil)
		mockRepo.On("GetByID", mock.Anything, p.ID).Return(p, nil)

		res, err := svc.GetPaymentByID(context.Background(), p.ID)

		require.NoError(t, err)
		assert.Equal(t, p, res)
		mockRepo.AssertExpectations(t)
	})

	t.Run("NotFoundReturnsNil", func(t *testing.T) {
		mockRepo := new(MockPaymentRepository)
		svc := NewPaymentService(logger, mockRepo, new(MockMessagePublisher))

		id := uuid.New()
		mockRepo.On("GetByID", mock.Anything, id).Return(nil, payment.ErrPaymentNotFound{PaymentID: id})

		res, err := svc.GetPaymentByID(context.Background(), id)

		require.NoError(t, err)
		assert.Nil(t, res)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RepoErrorPropagates", func(t *testing.T) {
		mockRepo := new(MockPaymentRepository)
		svc := NewPaymentService(logger, mockRepo, new(MockMessagePublisher))

		id := uuid.New()
		mockRepo.On("GetByID", mock.Anything, id).Return(nil, errors.New("database connection lost"))

		res, err := svc.GetPaymentByID(context.Background(), id)

		require.Error(t, err)
		assert.Nil(t, res)
		mockRepo.AssertExpectations(t)
	})
}

var (
	_ payment.Repository         = (*MockPaymentRepository)(nil)
	_ producers.MessagePublisher = (*MockMessagePublisher)(nil)
)
