package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// Message stores a committed ledger entry for reliable archival. It is written
// in the same transaction as the entry, then drained by the outbox poller into
// the archive read model.
type Message struct {
	ID            int64               `json:"id"`
	EntryID       uuid.UUID           `json:"entry_id"`
	AccountID     uuid.UUID           `json:"account_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(entry *ledger.Entry) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	return &Message{
		EntryID:   entry.ID,
		AccountID: entry.AccountID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetLedgerEntry extracts the ledger entry from the payload
func (m *Message) GetLedgerEntry() (*ledger.Entry, error) {
	var entry ledger.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
