package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhub-billing-ledger/internal/domain/payment"
	"github.com/adhub-billing-ledger/internal/domain/shared"
)

// DedupePolicy tunes the implicit duplicate screen. Window is the trailing
// interval inside which a keyless payment with the same scope counts as a
// duplicate; zero turns the screen off. IncludeReference widens the scope key
// with the subscription reference, so retries for different plans never
// shadow each other.
type DedupePolicy struct {
	Window           time.Duration
	IncludeReference bool
}

// IdempotencyGuard implements the two-layer duplicate screen: an explicit
// idempotency key lookup, and a trailing recency window for keyless requests.
type IdempotencyGuard struct {
	payments payment.Repository
	policy   DedupePolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewIdempotencyGuard creates a guard backed by the payment store
func NewIdempotencyGuard(logger *slog.Logger, payments payment.Repository, policy DedupePolicy) *IdempotencyGuard {
	return &IdempotencyGuard{
		payments: payments,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// Check screens the requested mutation. A payment whose ID equals
// params.ReferenceID is the caller's own record and never counts as a
// duplicate. On the explicit-key layer, PENDING matches surface as
// ErrOperationInFlight and settled matches as DuplicateOperationError
// carrying the authoritative payment ID. Window matches are always
// ErrOperationInFlight: without a key there is no consumed key to reference,
// only a suspiciously recent lookalike.
func (g *IdempotencyGuard) Check(ctx context.Context, params DeltaParams) error {
	if params.IdempotencyKey != nil && *params.IdempotencyKey != "" {
		return g.checkKey(ctx, params)
	}
	return g.checkWindow(ctx, params)
}

func (g *IdempotencyGuard) checkKey(ctx context.Context, params DeltaParams) error {
	existing, err := g.payments.GetByIdempotencyKey(ctx, *params.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("idempotency key lookup failed: %w", err)
	}
	if existing == nil {
		return nil
	}
	if params.ReferenceID != nil && existing.ID == *params.ReferenceID {
		return nil
	}

	if existing.Status == shared.PaymentStatusPending {
		g.logger.Warn("Matching payment still in flight",
			"payment_id", existing.ID.String(),
			"account_id", params.AccountID.String())
		return payment.ErrOperationInFlight
	}

	g.logger.Info("Idempotency key already consumed",
		"payment_id", existing.ID.String(),
		"account_id", params.AccountID.String())
	return payment.DuplicateOperationError{PaymentID: existing.ID}
}

// checkWindow screens keyless requests against the trailing window. The scope
// key is (account, operation, |amount|) plus the subscription reference when
// the policy includes it. A non-positive window disables the screen.
func (g *IdempotencyGuard) checkWindow(ctx context.Context, params DeltaParams) error {
	if g.policy.Window <= 0 {
		return nil
	}

	subscriptionScope := params.SubscriptionID
	if !g.policy.IncludeReference {
		subscriptionScope = nil
	}

	since := g.now().Add(-g.policy.Window)
	recent, err := g.payments.FindRecent(ctx, params.AccountID, params.Operation, params.Amount.Abs(), subscriptionScope, since, params.ReferenceID)
	if err != nil {
		return fmt.Errorf("recency lookup failed: %w", err)
	}
	if recent == nil {
		return nil
	}

	g.logger.Warn("Matching payment inside dedupe window",
		"payment_id", recent.ID.String(),
		"account_id", params.AccountID.String(),
		"status", string(recent.Status),
		"window", g.policy.Window.String())
	return payment.ErrOperationInFlight
}
