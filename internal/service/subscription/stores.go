// internal/service/subscription/stores.go
package subscription

import (
	"context"

	"compatlab-service/internal/domain/subscription"

	"github.com/jackc/pgx/v5"
)

// SubscriptionStore is the slice of the subscription repository this
// service depends on. *postgres.SubscriptionRepository satisfies it.
type SubscriptionStore interface {
	Create(ctx context.Context, s *subscription.Subscription) error
	FindByID(ctx context.Context, id int64) (*subscription.Subscription, error)
	FindActiveByOwner(ctx context.Context, ownerID int64) (*subscription.Subscription, error)
	UpdateStatus(ctx context.Context, id int64, status subscription.Status) error
	UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status subscription.Status) error
	CountMembers(ctx context.Context, subscriptionID int64) (int, error)
}
