package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adhub-billing-ledger/internal/domain/subscription"
	"github.com/adhub-billing-ledger/internal/platform/persistence"
)

// SubscriptionRepository implements the subscription.Repository interface for
// PostgreSQL. The catalog is read-only from the application's point of view.
type SubscriptionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewSubscriptionRepository creates a new PostgreSQL subscription repository
func NewSubscriptionRepository(logger *slog.Logger, db *persistence.PostgresDB) subscription.Repository {
	return &SubscriptionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// GetByID retrieves a subscription plan by its ID
func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	query := `
		SELECT id, name, amount
		FROM subscriptions
		WHERE id = $1
	`

	var sub subscription.Subscription
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&sub.ID,
		&sub.Name,
		&sub.Amount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscription.ErrSubscriptionNotFound{SubscriptionID: id}
		}
		r.logger.Error("Failed to get subscription", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}
