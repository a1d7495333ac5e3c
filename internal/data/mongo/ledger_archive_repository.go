// Package mongo provides the MongoDB read model for archived ledger entries.
// The archive is fed by the outbox poller and never participates in balance
// mutation; the PostgreSQL ledger stays the source of truth.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/adhub-billing-ledger/internal/domain/ledger"
)

const (
	// ArchiveCollectionName is the name of the ledger archive collection
	ArchiveCollectionName = "ledger_archive"
)

// LedgerArchiveRepository stores copies of committed ledger entries for
// reporting queries. Fingerprint uniqueness makes redelivery from the outbox
// poller idempotent.
type LedgerArchiveRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewLedgerArchiveRepository creates a new MongoDB archive repository and
// ensures the unique fingerprint index exists.
func NewLedgerArchiveRepository(ctx context.Context, logger *slog.Logger, db *mongo.Database) (*LedgerArchiveRepository, error) {
	collection := db.Collection(ArchiveCollectionName)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "fingerprint", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprint index: %w", err)
	}

	return &LedgerArchiveRepository{
		db:     db,
		logger: logger,
	}, nil
}

// Archive stores a copy of a committed ledger entry. A duplicate fingerprint
// means the entry was already archived and is treated as success.
func (r *LedgerArchiveRepository) Archive(ctx context.Context, entry *ledger.Entry) error {
	collection := r.db.Collection(ArchiveCollectionName)

	_, err := collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Debug("Ledger entry already archived",
				"entry_id", entry.ID.String(),
				"fingerprint", entry.Fingerprint)
			return nil
		}
		r.logger.Error("Failed to archive ledger entry",
			"entry_id", entry.ID.String(),
			"error", err)
		return fmt.Errorf("failed to archive ledger entry: %w", err)
	}

	return nil
}

// GetByFingerprint retrieves an archived entry by its fingerprint.
// Returns ErrEntryNotFound if no entry carries the fingerprint.
func (r *LedgerArchiveRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*ledger.Entry, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{"fingerprint": fingerprint}
	var entry ledger.Entry
	err := collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{EntryID: uuid.Nil}
		}
		r.logger.Error("Failed to get archived ledger entry",
			"fingerprint", fingerprint,
			"error", err)
		return nil, fmt.Errorf("failed to get archived ledger entry: %w", err)
	}

	return &entry, nil
}

// GetByAccountID retrieves paginated archived entries for an account.
// Results are sorted by creation time in descending order (newest first).
func (r *LedgerArchiveRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{"account_id": accountID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}). // Sort by created_at in descending order
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get archived ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get archived ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*ledger.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode archived ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode archived ledger entries: %w", err)
	}

	return entries, nil
}

// CountByAccountID counts the archived entries for an account
func (r *LedgerArchiveRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{"account_id": accountID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count archived ledger entries",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count archived ledger entries: %w", err)
	}

	return count, nil
}

// GetByTimeRange retrieves paginated archived entries within the specified
// time window, newest first.
func (r *LedgerArchiveRepository) GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*ledger.Entry, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{
		"created_at": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}). // Sort by created_at in descending order
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get archived ledger entries by time range",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to get archived ledger entries by time range: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*ledger.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode archived ledger entries",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to decode archived ledger entries: %w", err)
	}

	return entries, nil
}
