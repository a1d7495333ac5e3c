package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/shared"
)

type MockLedgerArchive struct {
	mock.Mock
}

func (m *MockLedgerArchive) Archive(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerArchive) GetByFingerprint(ctx context.Context, fingerprint string) (*ledger.Entry, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerArchive) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerArchive) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerArchive) GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, startTime, endTime, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func newArchiveEntry(t *testing.T) *ledger.Entry {
	t.Helper()
	entry, err := ledger.NewEntry(
		uuid.New(),
		decimal.RequireFromString("100.00"),
		shared.OperationDeposit,
		nil,
		decimal.Zero,
		decimal.RequireFromString("100.00"),
	)
	if err != nil {
		t.Fatalf("failed to build entry: %v", err)
	}
	return entry
}

func TestMockLedgerArchive_Archive(t *testing.T) {
	mockArchive := &MockLedgerArchive{}
	ctx := context.Background()
	entry := newArchiveEntry(t)

	mockArchive.On("Archive", ctx, entry).Return(nil)

	err := mockArchive.Archive(ctx, entry)
	assert.NoError(t, err)
	mockArchive.AssertExpectations(t)
}

func TestMockLedgerArchive_GetByFingerprint(t *testing.T) {
	mockArchive := &MockLedgerArchive{}
	ctx := context.Background()
	entry := newArchiveEntry(t)

	t.Run("found", func(t *testing.T) {
		mockArchive.On("GetByFingerprint", ctx, entry.Fingerprint).Return(entry, nil).Once()

		got, err := mockArchive.GetByFingerprint(ctx, entry.Fingerprint)
		assert.NoError(t, err)
		assert.Equal(t, entry, got)
	})

	t.Run("missing", func(t *testing.T) {
		mockArchive.On("GetByFingerprint", ctx, "absent").
			Return(nil, ledger.ErrEntryNotFound{EntryID: uuid.Nil}).Once()

		got, err := mockArchive.GetByFingerprint(ctx, "absent")
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ledger.ErrEntryNotFound{})
	})

	mockArchive.AssertExpectations(t)
}

func TestMockLedgerArchive_GetByAccountID(t *testing.T) {
	mockArchive := &MockLedgerArchive{}
	ctx := context.Background()
	entry := newArchiveEntry(t)

	mockArchive.On("GetByAccountID", ctx, entry.AccountID, 20, 0).Return([]*ledger.Entry{entry}, nil)
	mockArchive.On("CountByAccountID", ctx, entry.AccountID).Return(int64(1), nil)

	entries, err := mockArchive.GetByAccountID(ctx, entry.AccountID, 20, 0)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)

	count, err := mockArchive.CountByAccountID(ctx, entry.AccountID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	mockArchive.AssertExpectations(t)
}

func TestMockLedgerArchive_ArchiveError(t *testing.T) {
	mockArchive := &MockLedgerArchive{}
	ctx := context.Background()
	entry := newArchiveEntry(t)

	expectedErr := errors.New("archive unavailable")
	mockArchive.On("Archive", ctx, entry).Return(expectedErr)

	err := mockArchive.Archive(ctx, entry)
	assert.ErrorIs(t, err, expectedErr)
	mockArchive.AssertExpectations(t)
}

func TestNewLedgerArchiveRepository_Type(t *testing.T) {
	repo := &LedgerArchiveRepository{logger: slog.Default()}
	assert.NotNil(t, repo)
	assert.IsType(t, &LedgerArchiveRepository{}, repo)
}
