// internal/service/subscription/subscription_service_test.go
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	domain "compatlab-service/internal/domain/subscription"
	"compatlab-service/internal/service/billing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

type fakeSubStore struct {
	statuses map[int64]domain.Status
}

func (f *fakeSubStore) Create(ctx context.Context, s *domain.Subscription) error { return nil }
func (f *fakeSubStore) FindByID(ctx context.Context, id int64) (*domain.Subscription, error) {
	return nil, pgx.ErrNoRows
}
func (f *fakeSubStore) FindActiveByOwner(ctx context.Context, ownerID int64) (*domain.Subscription, error) {
	return nil, pgx.ErrNoRows
}
func (f *fakeSubStore) UpdateStatus(ctx context.Context, id int64, status domain.Status) error {
	f.statuses[id] = status
	return nil
}
func (f *fakeSubStore) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, id int64, status domain.Status) error {
	f.statuses[id] = status
	return nil
}
func (f *fakeSubStore) CountMembers(ctx context.Context, subscriptionID int64) (int, error) {
	return 0, nil
}

type fakeGateway struct {
	status string
	err    error
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (*billing.CheckoutSession, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeGateway) GetSubscriptionStatus(ctx context.Context, subscriptionID string) (string, error) {
	return f.status, f.err
}
func (f *fakeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return nil
}
func (f *fakeGateway) EnsureCustomer(ctx context.Context, email, name string) (string, error) {
	return "cus_fake", nil
}

func driftFixture(gw *fakeGateway) (*SubscriptionService, *fakeSubStore) {
	store := &fakeSubStore{statuses: map[int64]domain.Status{}}
	svc := &SubscriptionService{subRepo: store, gateway: gw, logger: zap.NewNop()}
	return svc, store
}

func stripeSub(id int64, status domain.Status, stripeID string) *domain.Subscription {
	return &domain.Subscription{
		ID:                   id,
		Status:               status,
		StripeSubscriptionID: sql.NullString{String: stripeID, Valid: stripeID != ""},
	}
}

func TestRepairStatusDriftReconciles(t *testing.T) {
	svc, store := driftFixture(&fakeGateway{status: "past_due"})
	sub := stripeSub(3, domain.StatusAtiva, "sub_1")

	svc.repairStatusDrift(context.Background(), sub)

	assert.Equal(t, domain.StatusInativa, sub.Status)
	assert.Equal(t, domain.StatusInativa, store.statuses[3])
}

func TestRepairStatusDriftAgreementIsNoop(t *testing.T) {
	svc, store := driftFixture(&fakeGateway{status: "active"})
	sub := stripeSub(3, domain.StatusAtiva, "sub_1")

	svc.repairStatusDrift(context.Background(), sub)

	assert.Equal(t, domain.StatusAtiva, sub.Status)
	assert.Empty(t, store.statuses)
}

func TestRepairStatusDriftVanishedCancels(t *testing.T) {
	gw := &fakeGateway{err: &stripe.Error{Code: stripe.ErrorCodeResourceMissing}}
	svc, store := driftFixture(gw)
	sub := stripeSub(3, domain.StatusAtiva, "sub_1")

	svc.repairStatusDrift(context.Background(), sub)

	assert.Equal(t, domain.StatusCancelada, sub.Status)
	assert.Equal(t, domain.StatusCancelada, store.statuses[3])
}

func TestRepairStatusDriftTransientServesLocal(t *testing.T) {
	gw := &fakeGateway{err: errors.New("connection refused")}
	svc, store := driftFixture(gw)
	sub := stripeSub(3, domain.StatusAtiva, "sub_1")

	svc.repairStatusDrift(context.Background(), sub)

	assert.Equal(t, domain.StatusAtiva, sub.Status)
	assert.Empty(t, store.statuses)
}

func TestRepairStatusDriftSkipsWithoutStripeID(t *testing.T) {
	svc, store := driftFixture(&fakeGateway{status: "canceled"})
	sub := stripeSub(3, domain.StatusAtiva, "")

	svc.repairStatusDrift(context.Background(), sub)

	assert.Equal(t, domain.StatusAtiva, sub.Status)
	assert.Empty(t, store.statuses)
}
