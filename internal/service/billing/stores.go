// internal/service/billing/stores.go
package billing

import (
	"context"
	"time"

	domainbilling "compatlab-service/internal/domain/billing"
	"compatlab-service/internal/domain/credit"
	"compatlab-service/internal/domain/plan"
	"compatlab-service/internal/domain/subscription"
	"compatlab-service/internal/domain/sysconfig"
	"compatlab-service/internal/domain/user"

	"github.com/jackc/pgx/v5"
)

// Persistence seams for the billing services. The postgres repositories
// satisfy all of them; tests substitute in-memory fakes.

type EventStore interface {
	BeginProcessing(ctx context.Context, eventID, eventType string, payload []byte) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkProcessedWithTx(ctx context.Context, tx pgx.Tx, eventID string) error
}

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error)
	FindBySubscription(ctx context.Context, subscriptionID int64) ([]user.User, error)
	MarkMadePurchaseWithTx(ctx context.Context, tx pgx.Tx, userID int64) error
	LinkSubscriptionWithTx(ctx context.Context, tx pgx.Tx, userID, subscriptionID int64) (int64, error)
	UnlinkAllFromSubscription(ctx context.Context, tx pgx.Tx, subscriptionID int64) error
}

type SubscriptionStore interface {
	FindByID(ctx context.Context, id int64) (*subscription.Subscription, error)
	FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*subscription.Subscription, error)
	CreateWithTx(ctx context.Context, tx pgx.Tx, s *subscription.Subscription) error
	UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status subscription.Status) error
	SetStripeIDWithTx(ctx context.Context, tx pgx.Tx, id int64, stripeSubscriptionID string) error
	SetBillingPeriodWithTx(ctx context.Context, tx pgx.Tx, id int64, periodEnd time.Time, cancelAtPeriodEnd bool) error
	DeactivateOthersWithTx(ctx context.Context, tx pgx.Tx, ownerID, keepID int64) error
}

type PlanStore interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
}

type PacketStore interface {
	InsertIdempotentWithTx(ctx context.Context, tx pgx.Tx, p *credit.Packet) (bool, error)
}

type PurchaseStore interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, c *domainbilling.Compra) error
	FindBySessionID(ctx context.Context, sessionID string) (*domainbilling.Compra, error)
	RecordRevenueWithTx(ctx context.Context, tx pgx.Tx, rec *domainbilling.Receita) error
}

type AuditStore interface {
	CreateWithTx(ctx context.Context, tx pgx.Tx, log *domainbilling.AuditLog) error
}

// ConfigSource yields the current pricing configuration. The ledger
// service provides it, cache included.
type ConfigSource interface {
	CurrentConfig(ctx context.Context) (*sysconfig.SystemConfig, error)
}

type TxBeginner interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}
