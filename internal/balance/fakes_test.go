package balance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/adhub-billing-ledger/internal/domain/account"
	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/outbox"
	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// fakeStore is an in-memory stand-in for PostgreSQL with real compare-and-swap
// semantics. Writes made through a fakeTx are undone when the tx rolls back,
// so the engine's transaction discipline is observable from tests.
type fakeStore struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]*account.Account
	payments     map[uuid.UUID]*payment.Payment
	entries      []*ledger.Entry
	fingerprints map[string]struct{}
	idemKeys     map[string]uuid.UUID
	messages     []*outbox.Message
	nextMsgID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:     make(map[uuid.UUID]*account.Account),
		payments:     make(map[uuid.UUID]*payment.Payment),
		fingerprints: make(map[string]struct{}),
		idemKeys:     make(map[string]uuid.UUID),
	}
}

func (s *fakeStore) addAccount(balance string) *account.Account {
	acc := account.NewAccount()
	acc.Balance = decimal.RequireFromString(balance)
	s.mu.Lock()
	s.accounts[acc.ID] = acc
	s.mu.Unlock()
	return acc
}

func (s *fakeStore) account(id uuid.UUID) account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

func (s *fakeStore) accountEntries(id uuid.UUID) []*ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ledger.Entry
	for _, e := range s.entries {
		if e.AccountID == id {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeStore) paymentsByStatus(status shared.PaymentStatus) []*payment.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*payment.Payment
	for _, p := range s.payments {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}

// fakeTx implements pgx.Tx over the fake store. It collects undo closures for
// every write and replays them in reverse on rollback.
type fakeTx struct {
	store *fakeStore
	mu    sync.Mutex
	undo  []func()
	done  bool
}

func (t *fakeTx) pushUndo(fn func()) {
	t.mu.Lock()
	t.undo = append(t.undo, fn)
	t.mu.Unlock()
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	return nil
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, nil
}
func (t *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                                { return pgx.LargeObjects{} }
func (t *fakeTx) Conn() *pgx.Conn                                               { return nil }

// fakeDB satisfies persistence.TxBeginner
type fakeDB struct {
	store *fakeStore
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{store: d.store}, nil
}

func txOf(tx pgx.Tx) *fakeTx {
	if ft, ok := tx.(*fakeTx); ok {
		return ft
	}
	return nil
}

// fakeAccountRepo implements account.Repository against the fake store
type fakeAccountRepo struct {
	store *fakeStore
	tx    *fakeTx
}

func (r *fakeAccountRepo) WithTx(tx pgx.Tx) account.Repository {
	return &fakeAccountRepo{store: r.store, tx: txOf(tx)}
}

func (r *fakeAccountRepo) Create(ctx context.Context, acc *account.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *acc
	r.store.accounts[acc.ID] = &cp
	return nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	acc, ok := r.store.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound{AccountID: id}
	}
	cp := *acc
	return &cp, nil
}

func (r *fakeAccountRepo) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	acc, ok := r.store.accounts[id]
	if !ok {
		return account.ErrAccountNotFound{AccountID: id}
	}
	if acc.Version != expectedVersion {
		return account.ErrVersionConflict{AccountID: id}
	}
	prevBalance, prevVersion := acc.Balance, acc.Version
	acc.Balance = newBalance
	acc.Version++
	if r.tx != nil {
		r.tx.pushUndo(func() {
			acc.Balance = prevBalance
			acc.Version = prevVersion
		})
	}
	return nil
}

func (r *fakeAccountRepo) ActivateSubscription(ctx context.Context, id uuid.UUID, subscriptionID uuid.UUID, start, end time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	acc, ok := r.store.accounts[id]
	if !ok {
		return account.ErrAccountNotFound{AccountID: id}
	}
	prev := *acc
	subID := subscriptionID
	startCp, endCp := start, end
	acc.SubscriptionID = &subID
	acc.SubscriptionStart = &startCp
	acc.SubscriptionEnd = &endCp
	acc.NotExpired = true
	if r.tx != nil {
		r.tx.pushUndo(func() { *acc = prev })
	}
	return nil
}

// fakeLedgerRepo implements ledger.Repository against the fake store
type fakeLedgerRepo struct {
	store *fakeStore
	tx    *fakeTx
}

func (r *fakeLedgerRepo) WithTx(tx pgx.Tx) ledger.Repository {
	return &fakeLedgerRepo{store: r.store, tx: txOf(tx)}
}

func (r *fakeLedgerRepo) Append(ctx context.Context, entry *ledger.Entry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, dup := r.store.fingerprints[entry.Fingerprint]; dup {
		return ledger.IntegrityError{AccountID: entry.AccountID, Fingerprint: entry.Fingerprint, Reason: "fingerprint collision"}
	}
	r.store.fingerprints[entry.Fingerprint] = struct{}{}
	r.store.entries = append(r.store.entries, entry)
	if r.tx != nil {
		r.tx.pushUndo(func() {
			delete(r.store.fingerprints, entry.Fingerprint)
			for i, e := range r.store.entries {
				if e == entry {
					r.store.entries = append(r.store.entries[:i], r.store.entries[i+1:]...)
					break
				}
			}
		})
	}
	return nil
}

func (r *fakeLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, ledger.ErrEntryNotFound{EntryID: id}
}

func (r *fakeLedgerRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	return r.store.accountEntries(accountID), nil
}

func (r *fakeLedgerRepo) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return int64(len(r.store.accountEntries(accountID))), nil
}

func (r *fakeLedgerRepo) GetByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*ledger.Entry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*ledger.Entry
	for _, e := range r.store.entries {
		if e.ReferenceID != nil && *e.ReferenceID == referenceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) LastByAccountID(ctx context.Context, accountID uuid.UUID) (*ledger.Entry, error) {
	entries := r.store.accountEntries(accountID)
	if len(entries) == 0 {
		return nil, ledger.ErrEntryNotFound{EntryID: uuid.Nil}
	}
	return entries[len(entries)-1], nil
}

// fakePaymentRepo implements payment.Repository against the fake store
type fakePaymentRepo struct {
	store *fakeStore
	tx    *fakeTx
}

func (r *fakePaymentRepo) WithTx(tx pgx.Tx) payment.Repository {
	return &fakePaymentRepo{store: r.store, tx: txOf(tx)}
}

func (r *fakePaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if p.IdempotencyKey != nil {
		if _, taken := r.store.idemKeys[*p.IdempotencyKey]; taken {
			return payment.ErrDuplicateIdempotencyKey{Key: *p.IdempotencyKey}
		}
		r.store.idemKeys[*p.IdempotencyKey] = p.ID
	}
	cp := *p
	r.store.payments[p.ID] = &cp
	if r.tx != nil {
		key := p.IdempotencyKey
		id := p.ID
		r.tx.pushUndo(func() {
			delete(r.store.payments, id)
			if key != nil {
				delete(r.store.idemKeys, *key)
			}
		})
	}
	return nil
}

func (r *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[id]
	if !ok {
		return nil, payment.ErrPaymentNotFound{PaymentID: id}
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.idemKeys[key]
	if !ok {
		return nil, nil
	}
	cp := *r.store.payments[id]
	return &cp, nil
}

func (r *fakePaymentRepo) FindRecent(ctx context.Context, accountID uuid.UUID, operation shared.OperationType, amount decimal.Decimal, subscriptionID *uuid.UUID, since time.Time, excludeID *uuid.UUID) (*payment.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.payments {
		if p.AccountID != accountID || p.Operation != operation || !p.Amount.Equal(amount) {
			continue
		}
		if p.Status == shared.PaymentStatusFailed {
			continue
		}
		if p.CreatedAt.Before(since) {
			continue
		}
		if subscriptionID != nil && (p.SubscriptionID == nil || *p.SubscriptionID != *subscriptionID) {
			continue
		}
		if excludeID != nil && p.ID == *excludeID {
			continue
		}
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakePaymentRepo) MarkSuccess(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[id]
	if !ok {
		return payment.ErrPaymentNotFound{PaymentID: id}
	}
	prev := *p
	p.Status = shared.PaymentStatusSuccess
	processedCp := processedAt
	p.ProcessedAt = &processedCp
	if r.tx != nil {
		r.tx.pushUndo(func() { *p = prev })
	}
	return nil
}

func (r *fakePaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[id]
	if !ok {
		return payment.ErrPaymentNotFound{PaymentID: id}
	}
	p.Status = shared.PaymentStatusFailed
	p.FailureReason = reason
	return nil
}

// fakeOutboxRepo implements outbox.Repository against the fake store
type fakeOutboxRepo struct {
	store *fakeStore
	tx    *fakeTx
}

func (r *fakeOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return &fakeOutboxRepo{store: r.store, tx: txOf(tx)}
}

func (r *fakeOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextMsgID++
	message.ID = r.store.nextMsgID
	r.store.messages = append(r.store.messages, message)
	if r.tx != nil {
		r.tx.pushUndo(func() {
			for i, m := range r.store.messages {
				if m == message {
					r.store.messages = append(r.store.messages[:i], r.store.messages[i+1:]...)
					break
				}
			}
		})
	}
	return nil
}

func (r *fakeOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*outbox.Message
	for _, m := range r.store.messages {
		if m.Status == shared.OutboxStatusPending {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.messages {
		if m.ID == id {
			m.Status = status
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (r *fakeOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.messages {
		if m.ID == id {
			m.Attempts++
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (r *fakeOutboxRepo) Delete(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, m := range r.store.messages {
		if m.ID == id {
			r.store.messages = append(r.store.messages[:i], r.store.messages[i+1:]...)
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (r *fakeOutboxRepo) GetByEntryID(ctx context.Context, entryID uuid.UUID) (*outbox.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.messages {
		if m.EntryID == entryID {
			return m, nil
		}
	}
	return nil, outbox.ErrMessageNotFound{ID: 0}
}
