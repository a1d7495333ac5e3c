package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adhub-billing-ledger/internal/domain/ledger"
	"github.com/adhub-billing-ledger/internal/domain/outbox"
	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// ArchivePublisher moves committed outbox messages into the archive read model
type ArchivePublisher interface {
	PublishToArchive(ctx context.Context, message *outbox.Message) error
}

// Archiver is the write surface of the archive store. The implementation must
// treat a fingerprint collision as success so redelivered messages stay
// idempotent.
type Archiver interface {
	Archive(ctx context.Context, entry *ledger.Entry) error
}

// ArchivePublisherImpl implements ArchivePublisher
type ArchivePublisherImpl struct {
	outboxRepo outbox.Repository
	archive    Archiver
	logger     *slog.Logger
}

// NewArchivePublisher creates a new publisher
func NewArchivePublisher(
	outboxRepo outbox.Repository,
	archive Archiver,
	logger *slog.Logger,
) ArchivePublisher {
	return &ArchivePublisherImpl{
		outboxRepo: outboxRepo,
		archive:    archive,
		logger:     logger,
	}
}

// PublishToArchive writes the message's ledger entry to the archive and marks
// the message PROCESSED.
func (p *ArchivePublisherImpl) PublishToArchive(ctx context.Context, message *outbox.Message) error {
	entry, err := message.GetLedgerEntry()
	if err != nil {
		p.logger.Error("Failed to unmarshal ledger entry from outbox payload",
			"outbox_id", message.ID, "entry_id", message.EntryID, "error", err,
		)
		// A corrupt payload never becomes readable; park the message instead
		// of retrying it forever.
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if entry.CorrelationID != "" {
		logger = p.logger.With("correlation_id", entry.CorrelationID)
	}

	logger.Info("Publishing outbox message to archive", "outbox_id", message.ID, "entry_id", entry.ID)

	if err := p.archive.Archive(ctx, entry); err != nil {
		logger.Error("Failed to archive ledger entry", "outbox_id", message.ID, "entry_id", entry.ID, "error", err)
		return fmt.Errorf("failed to archive entry %s: %w", entry.ID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "entry_id", entry.ID, "error", err,
		)
		return fmt.Errorf("archive write for %s OK, but failed to mark outbox %d as PROCESSED: %w", entry.ID, message.ID, err)
	}

	logger.Info("Outbox message archived and marked as PROCESSED", "outbox_id", message.ID, "entry_id", entry.ID)
	return nil
}
