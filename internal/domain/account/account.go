package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	// ErrInsufficientBalance means the requested debit would take the balance
	// below zero. No state change has happened when this is returned.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Account represents a user's spendable balance. Balance and Version are only
// ever mutated through Repository.CompareAndSwap; Version increments by exactly
// one per successful mutation and serves as the optimistic-lock token.
type Account struct {
	ID                uuid.UUID       `json:"id"`
	Balance           decimal.Decimal `json:"balance"`
	Version           int64           `json:"version"`
	SubscriptionID    *uuid.UUID      `json:"subscription_id,omitempty"`
	SubscriptionStart *time.Time      `json:"subscription_start,omitempty"`
	SubscriptionEnd   *time.Time      `json:"subscription_end,omitempty"`
	NotExpired        bool            `json:"not_expired"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewAccount creates a fresh account with zero balance and version 1.
func NewAccount() *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.New(),
		Balance:   decimal.Zero,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProjectedBalance returns the balance this account would have after applying
// the signed delta, and ErrInsufficientBalance if the result is negative.
// It performs no mutation; persisting the result is the engine's job.
func (a *Account) ProjectedBalance(delta decimal.Decimal) (decimal.Decimal, error) {
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Decimal{}, ErrInsufficientBalance
	}
	return next, nil
}

// HasActiveSubscription reports whether the account currently holds a
// non-expired subscription.
func (a *Account) HasActiveSubscription(now time.Time) bool {
	if a.SubscriptionID == nil || a.SubscriptionEnd == nil {
		return false
	}
	return a.NotExpired && a.SubscriptionEnd.After(now)
}
