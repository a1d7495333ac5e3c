package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Repository provides read access to the subscription catalog. The core never
// writes subscriptions; plan management belongs to a collaborator service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
}

// ErrSubscriptionNotFound indicates missing subscription
type ErrSubscriptionNotFound struct {
	SubscriptionID uuid.UUID
}

func (e ErrSubscriptionNotFound) Error() string {
	return "subscription not found: " + e.SubscriptionID.String()
}

// Is matches any ErrSubscriptionNotFound when the target carries a nil id.
func (e ErrSubscriptionNotFound) Is(target error) bool {
	t, ok := target.(ErrSubscriptionNotFound)
	if !ok {
		return false
	}
	if t.SubscriptionID == uuid.Nil {
		return true
	}
	return e.SubscriptionID == t.SubscriptionID
}
