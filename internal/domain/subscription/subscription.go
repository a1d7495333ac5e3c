package subscription

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInvalidBillingPeriod = errors.New("invalid billing period")
)

// BillingPeriod selects the charge cadence for a subscription purchase.
type BillingPeriod string

const (
	PeriodMonth BillingPeriod = "month"
	PeriodYear  BillingPeriod = "year"
)

// Valid reports whether the period is one of the supported cadences.
func (p BillingPeriod) Valid() bool {
	return p == PeriodMonth || p == PeriodYear
}

// Subscription is a collaborator entity: the core consults its price to size
// the debit and flips the account's activation fields, nothing more.
type Subscription struct {
	ID     uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"` // monthly price
}

var twelve = decimal.NewFromInt(12)

// Cost returns the final charge for the period. An annual purchase is twelve
// monthly charges scaled by annualDiscount (1 = no discount). The result is
// rounded to two fractional digits before the engine sees it.
func (s *Subscription) Cost(period BillingPeriod, annualDiscount decimal.Decimal) (decimal.Decimal, error) {
	switch period {
	case PeriodMonth:
		return s.Amount.Round(2), nil
	case PeriodYear:
		return s.Amount.Mul(twelve).Mul(annualDiscount).Round(2), nil
	default:
		return decimal.Decimal{}, ErrInvalidBillingPeriod
	}
}
